// Package jobs implements background processing for the Gather API.
//
// Jobs run independently of HTTP request handling. Each job owns a
// goroutine started by Start and stopped by Stop; RunOnce exposes a
// single pass for tests and manual triggering.
package jobs
