package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Beacon is a fire-and-forget delivery that survives page teardown.
type Beacon interface {
	// SendBeacon queues body for url and reports whether it was accepted.
	SendBeacon(url string, body []byte) bool
}

// Requester issues an HTTP request, blocking until completion when sync is set.
// Errors raised before the request left wrap ErrNotDispatched.
type Requester interface {
	Request(url string, body []byte, sync bool) error
}

// Fetcher issues a keepalive request. The returned error reports a
// dispatch failure; the channel reports the eventual outcome.
type Fetcher interface {
	Fetch(url string, body []byte) (<-chan error, error)
}

// Tier names used in logs.
const (
	TierBeacon  = "beacon"
	TierRequest = "request"
	TierFetch   = "fetch"
)

var unloadEvents = map[string]bool{
	"unload":       true,
	"beforeunload": true,
	"pagehide":     true,
}

// IsUnloadEvent reports whether eventType tears the page down.
func IsUnloadEvent(eventType string) bool {
	return unloadEvents[strings.ToLower(eventType)]
}

// Transport sends payloads through the first tier that accepts them.
type Transport struct {
	beacon    Beacon
	requester Requester
	fetcher   Fetcher
	logger    *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithBeacon sets the beacon tier.
func WithBeacon(b Beacon) Option {
	return func(t *Transport) { t.beacon = b }
}

// WithRequester sets the request tier.
func WithRequester(r Requester) Option {
	return func(t *Transport) { t.requester = r }
}

// WithFetcher sets the fetch tier.
func WithFetcher(f Fetcher) Option {
	return func(t *Transport) { t.fetcher = f }
}

// WithLogger sets the logger for tier failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// New creates a Transport. Without options no tier is available.
func New(opts ...Option) *Transport {
	t := &Transport{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tiers returns the names of the configured tiers in order.
func (t *Transport) Tiers() []string {
	var tiers []string
	if t.beacon != nil {
		tiers = append(tiers, TierBeacon)
	}
	if t.requester != nil {
		tiers = append(tiers, TierRequest)
	}
	if t.fetcher != nil {
		tiers = append(tiers, TierFetch)
	}
	return tiers
}

// Send delivers body to url. trigger is the event type that caused the
// send; unload-class triggers make the request tier synchronous.
//
// A tier that refuses the payload or fails before sending it passes it on
// to the next tier. Once a request has been sent its result is final, so
// a payload goes out at most once.
func (t *Transport) Send(url string, body []byte, trigger string) bool {
	if t.beacon != nil {
		ok := t.try(TierBeacon, func() error {
			if !t.beacon.SendBeacon(url, body) {
				return errRejected
			}
			return nil
		})
		if ok {
			return true
		}
	}

	if t.requester != nil {
		sync := IsUnloadEvent(trigger)
		sent := false
		ok := t.try(TierRequest, func() error {
			err := t.requester.Request(url, body, sync)
			sent = err == nil || !errors.Is(err, ErrNotDispatched)
			return err
		})
		if ok || sent {
			return ok
		}
	}

	if t.fetcher != nil {
		ok := t.try(TierFetch, func() error {
			done, err := t.fetcher.Fetch(url, body)
			if err != nil {
				return err
			}
			go t.drain(done)
			return nil
		})
		if ok {
			return true
		}
	}

	t.logger.Debug("no transport tier dispatched payload", "url", url)
	return false
}

// try runs dispatch, converting errors and panics into false.
func (t *Transport) try(tier string, dispatch func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Debug("transport tier panicked", "tier", tier, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	if err := dispatch(); err != nil {
		t.logger.Debug("transport tier failed", "tier", tier, "error", err)
		return false
	}
	return true
}

// drain swallows the eventual fetch outcome.
func (t *Transport) drain(done <-chan error) {
	if done == nil {
		return
	}
	if err := <-done; err != nil {
		t.logger.Debug("fetch rejected", "error", err)
	}
}
