// Package clock abstracts wall time and one-shot timers.
//
// Everything in pagebeacon that depends on time (debounced handlers,
// engagement intervals, event timestamps) goes through a Clock so that
// scenarios and tests can drive time explicitly with a Manual clock
// instead of sleeping.
package clock
