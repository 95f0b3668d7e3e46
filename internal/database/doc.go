// Package database provides the database abstraction layer for Gather.
//
// The Database interface hides SurrealDB behind three query methods:
//
//   - Query: multiple results (SELECT returning lists)
//   - QueryOne: a single result (SELECT by id)
//   - Execute: no results (CREATE/UPDATE/DELETE mutations)
//
// # Atomic commits
//
// Multi-statement writes go through TxBuilder/AtomicBatch (transaction.go).
// Statements accumulate in memory and are wrapped in BEGIN TRANSACTION /
// COMMIT TRANSACTION at execute time, so they succeed or fail as one unit.
// There is no isolation between Add() calls before Execute(); the batch is
// the commit boundary. The registration ledger relies on this: a ledger
// record and its roster entry are always written in the same batch.
//
// # Error handling
//
// Standard errors cover the common failure cases (ErrNotFound,
// ErrDuplicate, ErrConnection, ErrQuery); check them with errors.Is.
package database
