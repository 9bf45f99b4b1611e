// Package storage provides the key/value storage boundary used by the
// identity store.
//
// Two scopes exist: a persistent scope that outlives sessions and a
// session scope that lives as long as one browsing session. Both are
// expressed with the same Storage interface. Memory is the in-process
// fallback and SQLite keeps a scope in the pagebeacon database. A
// Fallback checks the candidates of one page load and swaps unusable
// ones for Memory, warning once.
package storage
