// Package env is the boundary between the tracker and the page it runs in.
//
// Environment exposes read-only document and window state. EventTarget
// lets components subscribe to page events such as scroll or click.
// Page and Dispatcher are in-memory implementations used by the replay
// engine and by tests; a browser host would provide its own.
package env
