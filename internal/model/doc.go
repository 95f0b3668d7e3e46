// Package model defines the core domain types for the Gather API.
//
// The model package contains all shared data structures: users, events,
// registrations, roster entries, availability snapshots, request/response
// payloads with their validation rules, and the RFC 9457 problem-details
// error envelope used by the HTTP layer.
//
// Types here carry no behavior beyond validation and small derived
// accessors; business rules live in the service layer.
package model
