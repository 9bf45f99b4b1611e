package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/pagebeacon/internal/click"
	"github.com/nao1215/pagebeacon/internal/clock"
	"github.com/nao1215/pagebeacon/internal/debounce"
	"github.com/nao1215/pagebeacon/internal/engagement"
	"github.com/nao1215/pagebeacon/internal/env"
	"github.com/nao1215/pagebeacon/internal/identity"
	"github.com/nao1215/pagebeacon/internal/payload"
	"github.com/nao1215/pagebeacon/internal/scroll"
	"github.com/nao1215/pagebeacon/internal/session"
	"github.com/nao1215/pagebeacon/internal/storage"
)

// ErrNoEnvironment is returned by New without an Environment.
var ErrNoEnvironment = errors.New("tracker requires an environment")

// triggerFlush marks an explicit, non-unload engagement flush.
const triggerFlush = "flush"

// Sender delivers a request URL. It reports whether delivery was dispatched.
type Sender interface {
	Send(url string, body []byte, trigger string) bool
}

// Config holds everything a Tracker reads once at load.
type Config struct {
	// TrackingID is the account or property identifier. Tracking calls
	// without it log an error and do nothing.
	TrackingID string

	// Endpoint overrides the provider's collector endpoint.
	Endpoint string

	// Provider renders hits. Nil means GA4.
	Provider payload.Provider

	// Env is the page environment. Required.
	Env env.Environment

	// Document and Window receive listener registrations. Either may be nil.
	Document env.EventTarget
	Window   env.EventTarget

	// Local and Session are the persistent and session storage scopes.
	// Unusable storage falls back to memory.
	Local   storage.Storage
	Session storage.Storage

	// Sender delivers payloads. Nil means nothing is ever dispatched.
	Sender Sender

	Clock  clock.Clock
	Logger *slog.Logger

	// ClickSelector overrides click.DefaultSelector.
	ClickSelector string

	// ScrollThreshold overrides scroll.DefaultThreshold.
	ScrollThreshold int

	// DebounceWait is the quiet period for scroll and focus handlers.
	DebounceWait time.Duration

	// AutoTrack makes Start send a page view.
	AutoTrack bool

	// GlobalExport makes Start register the tracker as the process default.
	GlobalExport bool

	// LegacySessionCounter increments the session counter on every call.
	LegacySessionCounter bool

	// Debug sets the provider debug flag on every hit.
	Debug bool
}

// Options describe one tracking call.
type Options struct {
	// Type is the event name, page_view when empty.
	Type string

	// Params are extra event parameters.
	Params []payload.EventParam

	// Debug sets the provider debug flag for this call.
	Debug bool

	// Trigger is the page event that caused the call. It defaults to Type
	// and decides whether delivery must block.
	Trigger string
}

// Stats counts tracking calls.
type Stats struct {
	Sent    int
	Failed  int
	Skipped int
}

// Tracker is the per-page-load tracking context.
type Tracker struct {
	mu sync.Mutex

	trackingID string
	endpoint   string
	provider   payload.Provider
	env        env.Environment
	document   env.EventTarget
	window     env.EventTarget
	sender     Sender
	clock      clock.Clock
	logger     *slog.Logger
	debug      bool
	autoTrack  bool
	global     bool

	local      *identity.Store
	session    *identity.Store
	machine    *session.Machine
	engagement *engagement.Timer
	scroll     *scroll.Monitor
	classifier *click.Classifier

	pageID      string
	trackCalled bool
	eventsBound bool
	unloaded    bool
	closed      bool
	sequence    int
	regs        []env.Registration
	stats       Stats
}

// New creates a Tracker. The engagement timer starts visible now.
func New(cfg Config) (*Tracker, error) {
	if cfg.Env == nil {
		return nil, ErrNoEnvironment
	}
	if cfg.Provider == nil {
		cfg.Provider = payload.NewGA4()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DebounceWait <= 0 {
		cfg.DebounceWait = debounce.DefaultWait
	}

	classifier, err := click.NewClassifier(cfg.ClickSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to create click classifier: %w", err)
	}

	logger := cfg.Logger.With("provider", cfg.Provider.Name())

	fallback := storage.NewFallback(logger)
	local := identity.NewStore(fallback.Safe(cfg.Local),
		identity.WithLogger(logger), identity.WithName(storage.ScopeLocal))
	sess := identity.NewStore(fallback.Safe(cfg.Session),
		identity.WithLogger(logger), identity.WithName(storage.ScopeSession))

	machineOpts := []session.Option{session.WithKeys(cfg.Provider.Keys())}
	if cfg.LegacySessionCounter {
		machineOpts = append(machineOpts, session.WithLegacyCounter())
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = cfg.Provider.Endpoint()
	}

	t := &Tracker{
		trackingID: strings.TrimSpace(cfg.TrackingID),
		endpoint:   endpoint,
		provider:   cfg.Provider,
		env:        cfg.Env,
		document:   cfg.Document,
		window:     cfg.Window,
		sender:     cfg.Sender,
		clock:      cfg.Clock,
		logger:     logger,
		debug:      cfg.Debug,
		autoTrack:  cfg.AutoTrack,
		global:     cfg.GlobalExport,
		local:      local,
		session:    sess,
		machine:    session.New(local, sess, machineOpts...),
		engagement: engagement.New(cfg.Clock, engagement.WithFocusDebounce(cfg.DebounceWait)),
		classifier: classifier,
		pageID:     identity.RandomID(identity.MaxIDLength),
	}
	t.scroll = scroll.NewMonitor(cfg.Env, debounce.New(cfg.Clock, cfg.DebounceWait), t.onScrollReached,
		scroll.WithThreshold(cfg.ScrollThreshold))

	return t, nil
}

// Start applies the load-time flags: GlobalExport registers the tracker
// as the default and AutoTrack sends a page view. It reports whether a
// page view was dispatched.
func (t *Tracker) Start() bool {
	if t.global {
		SetDefault(t)
	}
	if !t.autoTrack {
		return false
	}
	return t.Track(Options{})
}

// Track sends one event and binds the page listeners after the first call.
func (t *Tracker) Track(opts Options) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackLocked(opts, nil)
}

// Error sends an exception event.
func (t *Tracker) Error(message string, fatal bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackLocked(Options{Type: payload.EventException}, func(h *payload.Hit) {
		h.Error = message
		h.Fatal = fatal
	})
}

// Flush sends the engagement accumulated so far without closing the
// visible interval.
func (t *Tracker) Flush() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked(triggerFlush)
}

// Close detaches every listener and drops pending debounced work.
func (t *Tracker) Close() {
	t.mu.Lock()
	regs := t.regs
	t.regs = nil
	t.closed = true
	t.mu.Unlock()

	for _, r := range regs {
		r.Remove()
	}
	t.scroll.Detach()
	t.engagement.Stop()
}

// Bound reports whether page listeners are attached.
func (t *Tracker) Bound() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eventsBound
}

// Stats returns call counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Engagement returns the engagement timer.
func (t *Tracker) Engagement() *engagement.Timer {
	return t.engagement
}

// ClientID returns the stored client identifier, or "" before the first hit.
func (t *Tracker) ClientID() string {
	return t.local.Get(t.machine.Keys().Client)
}

// SessionID returns the stored session identifier, or "" outside a session.
func (t *Tracker) SessionID() string {
	return t.session.Get(t.machine.Keys().Session)
}

// trackLocked must be called with t.mu held. decorate may adjust the hit.
func (t *Tracker) trackLocked(opts Options, decorate func(*payload.Hit)) bool {
	if t.closed {
		t.stats.Skipped++
		return false
	}
	if t.trackingID == "" {
		t.logger.Error("tracking ID is missing or undefined")
		t.stats.Skipped++
		return false
	}

	name := opts.Type
	if name == "" {
		name = payload.EventPageView
	}
	trigger := opts.Trigger
	if trigger == "" {
		trigger = name
	}

	hit := t.newHitLocked(name, opts.Params, opts.Debug)
	if decorate != nil {
		decorate(&hit)
	}
	ok := t.sendLocked(hit, trigger)

	t.bindLocked()
	return ok
}

func (t *Tracker) newHitLocked(name string, params []payload.EventParam, debug bool) payload.Hit {
	// Session state must be computed before the identifiers are created.
	st := t.machine.Compute(!t.trackCalled)
	t.trackCalled = true
	keys := t.machine.Keys()

	return payload.Hit{
		Name:       name,
		TrackingID: t.trackingID,
		ClientID:   t.local.GetOrCreate(keys.Client, nil),
		SessionID:  t.session.GetOrCreate(keys.Session, nil),
		PageID:     t.pageID,
		Session:    st,
		Location:   t.env.Location(),
		Title:      t.env.Title(),
		Referrer:   t.env.Referrer(),
		Language:   t.env.Language(),
		Screen:     t.env.Screen(),
		Viewport:   t.env.Viewport(),
		ColorDepth: t.env.ColorDepth(),
		Params:     params,
		Debug:      debug || t.debug,
		Now:        t.clock.Now(),
	}
}

func (t *Tracker) sendLocked(hit payload.Hit, trigger string) bool {
	url := payload.URL(t.endpoint, t.provider.Build(hit))
	ok := t.sender != nil && t.sender.Send(url, nil, trigger)
	if ok {
		t.stats.Sent++
	} else {
		t.stats.Failed++
	}
	t.logger.Debug("event dispatched",
		"event", hit.Name,
		"trigger", trigger,
		"ok", ok,
	)
	return ok
}

func (t *Tracker) flushLocked(trigger string) bool {
	if t.closed || t.trackingID == "" || !t.trackCalled {
		return false
	}
	hit := t.newHitLocked(payload.EventUserEngagement, nil, false)
	hit.EngagementSeconds = t.engagement.ActiveSeconds()
	hit.ReportEngagement = true
	return t.sendLocked(hit, trigger)
}
