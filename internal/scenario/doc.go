// Package scenario replays scripted page visits through a Tracker.
//
// A Scenario describes a page (URL, markup, geometry) and an ordered
// list of steps such as wait, scroll, click or reload. Runner executes
// the steps against a simulated page on a manual clock, so a visit that
// would take minutes in a browser replays instantly and deterministically.
// BatchRunner replays several scenarios concurrently.
package scenario
