package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/pagebeacon/internal/dom"
	"github.com/nao1215/pagebeacon/internal/env"
	"github.com/nao1215/pagebeacon/internal/payload"
	"github.com/nao1215/pagebeacon/internal/tracker"
)

// Step actions.
const (
	ActionWait      = "wait"
	ActionHide      = "hide"
	ActionShow      = "show"
	ActionBlur      = "blur"
	ActionFocus     = "focus"
	ActionScroll    = "scroll"
	ActionClick     = "click"
	ActionTrack     = "track"
	ActionFlush     = "flush"
	ActionException = "exception"
	ActionUnload    = "unload"
	ActionReload    = "reload"
)

// ErrElementNotFound is returned when a click selector matches nothing.
var ErrElementNotFound = errors.New("no element matches selector")

// Step is one action of a replay. Steps run in order against the
// shared Visit.
type Step interface {
	// Do performs the action. Tracking failures are counted in the
	// visit result, not returned.
	Do(ctx context.Context, v *Visit) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// BuildStep converts a StepDef into a Step.
func BuildStep(def StepDef) (Step, error) {
	switch strings.ToLower(strings.TrimSpace(def.Action)) {
	case ActionWait:
		d, err := duration(def.Duration)
		if err != nil {
			return nil, err
		}
		return &WaitStep{Duration: d}, nil
	case ActionHide:
		return &VisibilityStep{State: env.VisibilityHidden}, nil
	case ActionShow:
		return &VisibilityStep{State: env.VisibilityVisible}, nil
	case ActionBlur:
		return &WindowStep{Event: env.EventBlur}, nil
	case ActionFocus:
		return &WindowStep{Event: env.EventFocus}, nil
	case ActionScroll:
		if def.Percent < 0 || def.Percent > 100 {
			return nil, fmt.Errorf("scroll percent %d out of range", def.Percent)
		}
		return &ScrollStep{Percent: def.Percent, Top: def.Top}, nil
	case ActionClick:
		if strings.TrimSpace(def.Selector) == "" {
			return nil, errors.New("click requires a selector")
		}
		sel, err := dom.Compile(def.Selector)
		if err != nil {
			return nil, err
		}
		return &ClickStep{Selector: sel}, nil
	case ActionTrack:
		return &TrackStep{Event: def.Event, Params: eventParams(def.Params), Debug: def.Debug}, nil
	case ActionFlush:
		return &FlushStep{}, nil
	case ActionException:
		return &ExceptionStep{Message: def.Message, Fatal: def.Fatal}, nil
	case ActionUnload:
		return &UnloadStep{}, nil
	case ActionReload:
		return &ReloadStep{URL: def.URL}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, def.Action)
	}
}

// WaitStep advances the simulated clock, firing due timers.
type WaitStep struct {
	Duration time.Duration
}

// Do implements Step.
func (s *WaitStep) Do(_ context.Context, v *Visit) error {
	v.Clock.Advance(s.Duration)
	return nil
}

// Name implements Step.
func (s *WaitStep) Name() string { return ActionWait + " " + s.Duration.String() }

// VisibilityStep changes document visibility.
type VisibilityStep struct {
	State env.VisibilityState
}

// Do implements Step.
func (s *VisibilityStep) Do(_ context.Context, v *Visit) error {
	v.Page.SetVisibility(s.State)
	v.Document.Dispatch(env.Event{Type: env.EventVisibilityChange})
	return nil
}

// Name implements Step.
func (s *VisibilityStep) Name() string {
	if s.State == env.VisibilityHidden {
		return ActionHide
	}
	return ActionShow
}

// WindowStep dispatches a window event such as focus or blur.
type WindowStep struct {
	Event string
}

// Do implements Step.
func (s *WindowStep) Do(_ context.Context, v *Visit) error {
	v.Window.Dispatch(env.Event{Type: s.Event})
	return nil
}

// Name implements Step.
func (s *WindowStep) Name() string { return s.Event }

// ScrollStep moves the viewport. Percent is relative to the scrollable
// track; Top is an absolute offset used when Percent is zero.
type ScrollStep struct {
	Percent int
	Top     float64
}

// Do implements Step.
func (s *ScrollStep) Do(_ context.Context, v *Visit) error {
	top := s.Top
	if s.Percent > 0 {
		m := v.Page.Scroll()
		track := m.DocumentHeight() - m.ViewportHeight
		top = max(track, 0) * float64(s.Percent) / 100
	}
	v.Page.SetScrollTop(top)
	v.Document.Dispatch(env.Event{Type: env.EventScroll})
	return nil
}

// Name implements Step.
func (s *ScrollStep) Name() string {
	if s.Percent > 0 {
		return fmt.Sprintf("%s %d%%", ActionScroll, s.Percent)
	}
	return fmt.Sprintf("%s %.0fpx", ActionScroll, s.Top)
}

// ClickStep dispatches a click on the first element matching Selector.
type ClickStep struct {
	Selector *dom.Selector
}

// Do implements Step.
func (s *ClickStep) Do(_ context.Context, v *Visit) error {
	target := s.Selector.First(v.DOM)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, s.Selector)
	}
	v.Document.Dispatch(env.Event{Type: env.EventClick, Target: target})
	return nil
}

// Name implements Step.
func (s *ClickStep) Name() string { return ActionClick + " " + s.Selector.String() }

// TrackStep sends an explicit tracking call.
type TrackStep struct {
	Event  string
	Params []payload.EventParam
	Debug  bool
}

// Do implements Step.
func (s *TrackStep) Do(_ context.Context, v *Visit) error {
	v.Tracker.Track(tracker.Options{Type: s.Event, Params: s.Params, Debug: s.Debug})
	return nil
}

// Name implements Step.
func (s *TrackStep) Name() string {
	if s.Event == "" {
		return ActionTrack + " " + payload.EventPageView
	}
	return ActionTrack + " " + s.Event
}

// FlushStep reports engagement accumulated so far.
type FlushStep struct{}

// Do implements Step.
func (*FlushStep) Do(_ context.Context, v *Visit) error {
	v.Tracker.Flush()
	return nil
}

// Name implements Step.
func (*FlushStep) Name() string { return ActionFlush }

// ExceptionStep reports an error.
type ExceptionStep struct {
	Message string
	Fatal   bool
}

// Do implements Step.
func (s *ExceptionStep) Do(_ context.Context, v *Visit) error {
	v.Tracker.Error(s.Message, s.Fatal)
	return nil
}

// Name implements Step.
func (*ExceptionStep) Name() string { return ActionException }

// UnloadStep fires the unload sequence of a leaving page.
type UnloadStep struct{}

// Do implements Step.
func (*UnloadStep) Do(_ context.Context, v *Visit) error {
	v.unload()
	return nil
}

// Name implements Step.
func (*UnloadStep) Name() string { return ActionUnload }

// ReloadStep unloads the page and starts a new page load, optionally
// at another URL. Storage survives the reload.
type ReloadStep struct {
	URL string
}

// Do implements Step.
func (s *ReloadStep) Do(_ context.Context, v *Visit) error {
	v.unload()
	if s.URL != "" {
		loc, err := env.ParseLocation(s.URL)
		if err != nil {
			return fmt.Errorf("invalid reload url: %w", err)
		}
		v.Page.SetLocation(loc)
	}
	v.Page.SetScrollTop(0)
	v.Page.SetVisibility(env.VisibilityVisible)
	return v.load()
}

// Name implements Step.
func (s *ReloadStep) Name() string {
	if s.URL != "" {
		return ActionReload + " " + s.URL
	}
	return ActionReload
}
