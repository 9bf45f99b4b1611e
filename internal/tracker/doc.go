// Package tracker wires identity, session state, engagement, scroll and
// click classification into tracking calls.
//
// A Tracker owns everything that lives for one page load: the
// trackCalled and eventsBound latches, the engagement intervals, the
// scroll monitor and the interaction counter. Creating a new Tracker
// simulates a reload. Handlers attached to the page never panic and
// never return errors; failures are logged and dropped.
package tracker
