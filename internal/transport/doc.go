// Package transport delivers tracking payloads.
//
// Delivery is tiered: a beacon capability first, then a request
// capability that blocks when the page is being unloaded, then a
// keepalive fetch whose result is ignored. Any tier may be missing.
// Send reports whether a delivery was dispatched, not whether the
// collector accepted it, and never panics or returns an error.
package transport
