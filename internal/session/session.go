// Package session derives the per-page-load session state from the
// identity stores.
package session

import (
	"strconv"
	"sync"

	"github.com/nao1215/pagebeacon/internal/identity"
)

// Status is the lifecycle state of a Machine.
type Status int

const (
	// NotInitialized means no session state was computed in this page load.
	NotInitialized Status = iota
	// Initialized means the first computation happened.
	Initialized
)

// String returns the status name.
func (s Status) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "not_initialized"
}

// Keys names the storage keys a Machine inspects.
type Keys struct {
	Client  string
	Session string
	Counter string
}

// DefaultKeys are the keys used by the generic and Heap providers.
var DefaultKeys = Keys{
	Client:  identity.ClientKey,
	Session: identity.SessionKey,
	Counter: identity.CounterKey,
}

// GA4Keys are the keys used by the GA4 provider.
var GA4Keys = Keys{
	Client:  identity.GA4ClientKey,
	Session: identity.GA4SessionKey,
	Counter: identity.GA4CounterKey,
}

// State is the session information attached to a tracking call.
type State struct {
	FirstVisit   bool
	SessionStart bool
	SessionCount int
}

// Machine computes State once per page load. Create a new Machine for
// every page load.
type Machine struct {
	mu      sync.Mutex
	local   *identity.Store
	session *identity.Store
	keys    Keys
	legacy  bool

	status       Status
	firstVisit   bool
	sessionStart bool
	flagsSent    bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithKeys overrides the storage keys.
func WithKeys(keys Keys) Option {
	return func(m *Machine) {
		m.keys = keys
	}
}

// WithLegacyCounter makes every Compute increment the counter.
// Deprecated behavior kept for compatibility with older collectors.
func WithLegacyCounter() Option {
	return func(m *Machine) {
		m.legacy = true
	}
}

// New creates a Machine over the persistent and session stores.
func New(local, session *identity.Store, opts ...Option) *Machine {
	m := &Machine{
		local:   local,
		session: session,
		keys:    DefaultKeys,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Keys returns the storage keys in use.
func (m *Machine) Keys() Keys {
	return m.keys
}

// Status reports whether state has been computed yet.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Compute returns the session state for a tracking call.
//
// The first call snapshots whether the client and session keys were
// empty; those flags are reported on the first call only. When
// isFirstEventOfPageLoad is set the counter is incremented and
// persisted, otherwise the stored value is returned untouched.
func (m *Machine) Compute(isFirstEventOfPageLoad bool) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == NotInitialized {
		m.firstVisit = m.local.Get(m.keys.Client) == ""
		m.sessionStart = m.session.Get(m.keys.Session) == ""
		m.status = Initialized
	}

	var st State
	if !m.flagsSent {
		st.FirstVisit = m.firstVisit
		st.SessionStart = m.sessionStart
		m.flagsSent = true
	}

	if isFirstEventOfPageLoad || m.legacy {
		st.SessionCount = m.increment()
	} else {
		st.SessionCount = m.stored()
	}
	return st
}

func (m *Machine) stored() int {
	n, err := strconv.Atoi(m.session.Get(m.keys.Counter))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (m *Machine) increment() int {
	n, err := strconv.Atoi(m.session.Get(m.keys.Counter))
	if err != nil || n < 1 {
		n = 1
	} else {
		n++
	}
	m.session.Set(m.keys.Counter, strconv.Itoa(n))
	return n
}
