// Package model defines the event records shared by the collector, the
// database and the reports.
//
// Event is one decoded analytics hit, whatever wire format it arrived in.
// Summary aggregates stored events into per-event counts and per-session
// engagement.
//
// The types live in their own package so that collector, database and
// report can all use them without import cycles.
package model
