// Package log builds slog loggers that never print tracking identifiers
// or credentials.
//
// SecureHandler wraps any slog.Handler and masks:
//   - attributes whose key names an identifier or credential
//     (client_id, session_id, cookie, authorization, ...)
//   - identifier query parameters (cid, sid, uid, u, s) inside URL values
//   - values that look like bearer tokens or long opaque keys
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
