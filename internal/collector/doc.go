// Package collector implements a local HTTP endpoint that accepts GA4
// and Heap tracking requests and stores them as events.
//
// Routes:
//
//	/healthz     liveness probe
//	/g/collect   GA4 measurement requests
//	/h           Heap pixel requests
//
// Both collect routes accept GET and POST. A POST body may carry one
// query string per line; each line is merged over the URL query and
// stored as its own event.
package collector
