// Package handler implements the HTTP surface of the Gather API.
//
// Handlers decode requests, run model validation, call services, and
// translate service errors into RFC 9457 problem responses through
// MapServiceError. Successful responses wrap their payload in a data
// envelope with HATEOAS links.
//
// The watch handler upgrades GET /v1/events/{eventId}/watch to a
// websocket and relays availability snapshots from the broadcaster until
// the client disconnects or the event is deleted.
package handler
