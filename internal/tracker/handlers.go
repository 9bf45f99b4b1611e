package tracker

import (
	"strings"

	"github.com/nao1215/pagebeacon/internal/click"
	"github.com/nao1215/pagebeacon/internal/env"
	"github.com/nao1215/pagebeacon/internal/payload"
)

// bindLocked attaches page listeners once per tracker.
func (t *Tracker) bindLocked() {
	if t.eventsBound {
		return
	}
	t.eventsBound = true

	if t.document != nil {
		t.regs = append(t.regs,
			t.document.AddEventListener(env.EventVisibilityChange, t.guard(t.onVisibilityChange)),
			t.document.AddEventListener(env.EventClick, t.guard(t.onClick)),
		)
		t.scroll.Attach(t.document)
	}
	if t.window != nil {
		t.regs = append(t.regs,
			t.window.AddEventListener(env.EventFocus, t.guard(t.onFocus)),
			t.window.AddEventListener(env.EventBlur, t.guard(t.onBlur)),
			t.window.AddEventListener(env.EventBeforeUnload, t.guard(t.onUnload)),
			t.window.AddEventListener(env.EventPageHide, t.guard(t.onUnload)),
		)
	}
}

// guard keeps handler failures away from the host page.
func (t *Tracker) guard(fn env.Listener) env.Listener {
	return func(ev env.Event) {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("tracking handler failed",
					"event", ev.Type,
					"panic", r,
				)
			}
		}()
		fn(ev)
	}
}

func (t *Tracker) onVisibilityChange(env.Event) {
	t.engagement.OnVisibilityChange(t.env.VisibilityState())
}

func (t *Tracker) onFocus(env.Event) {
	t.engagement.OnFocus()
}

func (t *Tracker) onBlur(env.Event) {
	t.engagement.OnBlur()
}

// onUnload closes the visible interval and flushes engagement once.
func (t *Tracker) onUnload(ev env.Event) {
	t.engagement.Hide()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unloaded {
		return
	}
	t.unloaded = true
	t.flushLocked(ev.Type)
}

func (t *Tracker) onScrollReached(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.trackLocked(Options{
		Type:   payload.EventScroll,
		Params: []payload.EventParam{payload.Number("percent_scrolled", percent)},
	}, nil)
}

func (t *Tracker) onClick(ev env.Event) {
	if ev.Target == nil {
		return
	}

	// Heap fingerprints every click; GA4 reports trackable links only.
	_, heap := t.provider.(*payload.Heap)
	name := click.EventClick
	var params []payload.EventParam
	var target click.Target
	if heap {
		target = click.Describe(ev.Target, t.env.Location())
	} else {
		var ok bool
		if target, ok = t.classifier.Classify(ev.Target, t.env.Location()); !ok {
			return
		}
		name = target.EventName()
		if _, ga4 := t.provider.(*payload.GA4); ga4 {
			params = clickParams(target)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	seconds := t.engagement.ActiveSeconds()
	hierarchy := click.Hierarchy(ev.Target)
	sequence := t.sequence
	t.sequence++

	t.trackLocked(Options{Type: name, Params: params}, func(h *payload.Hit) {
		h.Click = &target
		h.Hierarchy = hierarchy
		h.Sequence = sequence
		h.EngagementSeconds = seconds
		h.ReportEngagement = true
	})
}

// clickParams renders the enhanced measurement link parameters.
func clickParams(target click.Target) []payload.EventParam {
	params := []payload.EventParam{
		payload.String("link_id", target.ID),
		payload.String("link_classes", strings.Join(target.Classes, " ")),
		payload.String("link_url", target.URL),
		payload.String("link_domain", target.Hostname),
	}
	if target.IsExternal {
		params = append(params, payload.String("outbound", "true"))
	}
	params = append(params, payload.String("link_text", target.Text))
	if target.Kind == click.KindDownload {
		params = append(params,
			payload.String("file_extension", target.FileExtension),
			payload.String("file_name", target.FilePath),
		)
	}
	return params
}
