package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/pagebeacon/internal/clock"
	"github.com/nao1215/pagebeacon/internal/dom"
	"github.com/nao1215/pagebeacon/internal/env"
	"github.com/nao1215/pagebeacon/internal/payload"
	"github.com/nao1215/pagebeacon/internal/storage"
	"github.com/nao1215/pagebeacon/internal/tracker"
)

// Result summarizes one replay.
type Result struct {
	Name string `json:"name"`

	// Steps lists the names of the steps that ran.
	Steps []string `json:"steps"`

	// PageLoads counts tracker instances, i.e. the first load plus reloads.
	PageLoads int `json:"page_loads"`

	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	// ClientID is the persistent identifier after the replay.
	ClientID string `json:"client_id,omitempty"`

	// Elapsed is simulated time.
	Elapsed time.Duration `json:"elapsed"`

	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// StorageFactory returns the persistent and session storage for one replay.
type StorageFactory func() (local, session storage.Storage)

// Visit is the mutable state a replay's steps operate on.
type Visit struct {
	Scenario *Scenario
	Clock    *clock.Manual
	Page     *env.Page
	DOM      *html.Node
	Document *env.Dispatcher
	Window   *env.Dispatcher
	Tracker  *tracker.Tracker
	Result   *Result

	base   tracker.Config
	logger *slog.Logger
}

// load starts a page load with a fresh tracker and fresh listeners.
func (v *Visit) load() error {
	cfg := v.base
	cfg.Env = v.Page
	cfg.Clock = v.Clock
	v.Document = env.NewDispatcher(v.logger)
	v.Window = env.NewDispatcher(v.logger)
	cfg.Document = v.Document
	cfg.Window = v.Window

	t, err := tracker.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}
	v.Tracker = t
	v.Result.PageLoads++
	t.Start()
	return nil
}

// unload fires the leave sequence and retires the tracker.
func (v *Visit) unload() {
	if v.Tracker == nil {
		return
	}
	v.Page.SetVisibility(env.VisibilityHidden)
	v.Window.Dispatch(env.Event{Type: env.EventBeforeUnload})
	v.Document.Dispatch(env.Event{Type: env.EventVisibilityChange})
	v.Window.Dispatch(env.Event{Type: env.EventPageHide})
	v.retire()
}

func (v *Visit) retire() {
	if v.Tracker == nil {
		return
	}
	st := v.Tracker.Stats()
	v.Result.Sent += st.Sent
	v.Result.Failed += st.Failed
	v.Result.Skipped += st.Skipped
	v.Result.ClientID = v.Tracker.ClientID()
	v.Tracker.Close()
	v.Tracker = nil
}

// Runner replays scenarios through a Sender.
type Runner struct {
	sender          tracker.Sender
	trackingID      string
	provider        string
	endpoint        string
	start           time.Time
	storage         StorageFactory
	base            tracker.Config
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTrackingID sets the tracking ID used when a scenario has none.
func WithTrackingID(id string) Option {
	return func(r *Runner) {
		r.trackingID = id
	}
}

// WithProvider sets the provider used when a scenario has none.
func WithProvider(name string) Option {
	return func(r *Runner) {
		r.provider = name
	}
}

// WithEndpoint overrides the provider endpoint.
func WithEndpoint(endpoint string) Option {
	return func(r *Runner) {
		r.endpoint = endpoint
	}
}

// WithStart sets the simulated start time.
func WithStart(t time.Time) Option {
	return func(r *Runner) {
		r.start = t
	}
}

// WithStorage sets the storage factory. The default is fresh memory
// storage per replay.
func WithStorage(f StorageFactory) Option {
	return func(r *Runner) {
		r.storage = f
	}
}

// WithTrackerDefaults sets tracker tuning such as ClickSelector,
// ScrollThreshold, DebounceWait and LegacySessionCounter.
func WithTrackerDefaults(cfg tracker.Config) Option {
	return func(r *Runner) {
		r.base = cfg
	}
}

// WithContinueOnError keeps replaying after a failed step.
func WithContinueOnError(continueOnError bool) Option {
	return func(r *Runner) {
		r.continueOnError = continueOnError
	}
}

// NewRunner creates a Runner delivering through sender.
func NewRunner(sender tracker.Sender, opts ...Option) *Runner {
	r := &Runner{
		sender: sender,
		storage: func() (storage.Storage, storage.Storage) {
			return storage.NewMemory(), storage.NewMemory()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.start.IsZero() {
		r.start = time.Now()
	}
	return r
}

// Run replays sc. The returned Result is populated even when an error
// is returned.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	result := &Result{Name: sc.Name, Steps: make([]string, 0, len(sc.Steps))}
	logger := r.logger.With("scenario", sc.Name)

	visit, err := r.newVisit(sc, result, logger)
	if err != nil {
		return r.fail(result, err)
	}
	defer visit.retire()
	if err := visit.load(); err != nil {
		return r.fail(result, err)
	}

	for i, def := range sc.Steps {
		step, err := BuildStep(def)
		if err != nil {
			return r.fail(result, fmt.Errorf("step %d: %w", i+1, err))
		}

		select {
		case <-ctx.Done():
			logger.Warn("replay cancelled", "step", step.Name(), "reason", ctx.Err())
			return r.fail(result, ctx.Err())
		default:
		}

		// A step after an unload starts the next page load.
		if visit.Tracker == nil {
			if err := visit.load(); err != nil {
				return r.fail(result, err)
			}
		}

		logger.Debug("executing step", "step", step.Name())
		if err := step.Do(ctx, visit); err != nil {
			logger.Error("step failed", "step", step.Name(), "error", err)
			result.Error = err
			result.ErrorMessage = err.Error()
			if !r.continueOnError {
				visit.retire()
				result.Elapsed = visit.Clock.Now().Sub(r.start)
				return result, err
			}
			continue
		}
		result.Steps = append(result.Steps, step.Name())
	}

	visit.retire()
	result.Elapsed = visit.Clock.Now().Sub(r.start)
	logger.Info("replay complete",
		"sent", result.Sent,
		"failed", result.Failed,
		"page_loads", result.PageLoads,
	)
	return result, nil
}

func (r *Runner) fail(result *Result, err error) (*Result, error) {
	result.Error = err
	result.ErrorMessage = err.Error()
	return result, err
}

func (r *Runner) newVisit(sc *Scenario, result *Result, logger *slog.Logger) (*Visit, error) {
	opts := []env.PageOption{
		env.WithReferrer(sc.Referrer),
		env.WithLanguage(sc.Language),
	}
	if sc.Viewport.Width > 0 || sc.Viewport.Height > 0 {
		opts = append(opts, env.WithViewport(sc.Viewport.Width, sc.Viewport.Height))
	}
	if sc.Screen.Width > 0 || sc.Screen.Height > 0 {
		opts = append(opts, env.WithScreen(sc.Screen.Width, sc.Screen.Height))
	}
	if sc.DocumentHeight > 0 {
		opts = append(opts, env.WithDocumentHeight(sc.DocumentHeight))
	}

	doc, err := dom.ParseString(sc.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario html: %w", err)
	}
	title := sc.Title
	if title == "" {
		title = dom.Title(doc)
	}
	opts = append(opts, env.WithTitle(title))

	page, err := env.NewPage(sc.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario url: %w", err)
	}

	providerName := sc.Provider
	if providerName == "" {
		providerName = r.provider
	}
	var provider payload.Provider = payload.NewGA4()
	if providerName != "" {
		if provider, err = payload.Lookup(providerName); err != nil {
			return nil, err
		}
	}

	trackingID := sc.TrackingID
	if trackingID == "" {
		trackingID = r.trackingID
	}
	if trackingID == "" {
		if id, ok := payload.DetectTrackingID(sc.HTML, provider.Name()); ok {
			logger.Debug("using tracking ID installed in page", "tracking_id", id)
			trackingID = id
		}
	}

	local, session := r.storage()
	base := r.base
	base.TrackingID = trackingID
	base.Provider = provider
	base.Endpoint = r.endpoint
	base.Local = local
	base.Session = session
	base.Sender = r.sender
	base.Logger = logger
	base.AutoTrack = sc.AutoTrack

	return &Visit{
		Scenario: sc,
		Clock:    clock.NewManual(r.start),
		Page:     page,
		DOM:      doc,
		Result:   result,
		base:     base,
		logger:   logger,
	}, nil
}
