// Package repository implements data access for Gather on top of the
// database abstraction.
//
// Each repository owns one aggregate (users, events, registrations) and
// speaks SurrealQL. Repositories return (nil, nil) for lookups that find
// nothing; sentinel errors from the database package cover the failure
// cases.
//
// The registration repository is the write path for the seat ledger: a
// registration record and its roster entry are always created or deleted
// in the same AtomicBatch, and a cascading event purge removes the event
// record together with every registration and roster row in one commit.
package repository
