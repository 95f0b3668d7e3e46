// Package service implements Gather's business logic.
//
// The package is organized around the seat allocator: every mutation of
// an event's seat state (register, unregister, capacity change, delete)
// runs inside that event's serialization domain, a per-event mutex held
// for the full read-decide-write cycle. Decisions for different events
// never contend.
//
// The broadcaster fans committed availability snapshots out to watchers.
// Publish is called while the domain is still held, so every subscriber
// observes snapshots for an event in commit order; delivery itself is
// asynchronous and a slow watcher never blocks an admission decision.
//
// Services depend on small repository interfaces declared here and
// return sentinel errors from errors.go; handlers translate those into
// HTTP problem responses.
package service
