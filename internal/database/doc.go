// Package database provides SQLite-based storage for pagebeacon.
//
// A single database file holds two kinds of data:
//   - Scoped key/value pairs backing the persistent and session storage
//     scopes of the tracker (see storage.SQLite)
//   - Tracking events received by the collector, for reporting
//
// The driver is modernc.org/sqlite (no cgo).
package database
