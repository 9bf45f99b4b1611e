package env

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Page and window event types the tracker subscribes to.
const (
	EventVisibilityChange = "visibilitychange"
	EventScroll           = "scroll"
	EventClick            = "click"
	EventFocus            = "focus"
	EventBlur             = "blur"
	EventBeforeUnload     = "beforeunload"
	EventPageHide         = "pagehide"
	EventUnload           = "unload"
)

// Event is a dispatched page event.
type Event struct {
	// Type is the event type, e.g. "click".
	Type string

	// Target is the element the event originated from, if any.
	Target *html.Node
}

// Listener handles an Event.
type Listener func(Event)

// Registration is returned by AddEventListener.
type Registration interface {
	// Remove detaches the listener. Calling it again is a no-op.
	Remove()
}

// EventTarget is something listeners can be attached to, like document or window.
type EventTarget interface {
	AddEventListener(eventType string, listener Listener) Registration
}

// Dispatcher is an in-memory EventTarget.
type Dispatcher struct {
	mu        sync.Mutex
	logger    *slog.Logger
	nextID    int
	listeners map[string][]entry
}

type entry struct {
	id       int
	listener Listener
}

// NewDispatcher creates an empty Dispatcher. A nil logger discards
// listener panic reports.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		listeners: make(map[string][]entry),
	}
}

// AddEventListener attaches listener for eventType.
func (d *Dispatcher) AddEventListener(eventType string, listener Listener) Registration {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	key := strings.ToLower(eventType)
	d.listeners[key] = append(d.listeners[key], entry{id: d.nextID, listener: listener})
	return &registration{dispatcher: d, eventType: key, id: d.nextID}
}

// ListenerCount returns how many listeners are attached for eventType.
func (d *Dispatcher) ListenerCount(eventType string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[strings.ToLower(eventType)])
}

// Dispatch runs the listeners for ev.Type in registration order.
// A panicking listener is logged and does not stop the others.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()
	entries := append([]entry(nil), d.listeners[strings.ToLower(ev.Type)]...)
	d.mu.Unlock()

	for _, e := range entries {
		d.invoke(e.listener, ev)
	}
}

func (d *Dispatcher) invoke(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("event listener panicked",
				"event", ev.Type,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	l(ev)
}

func (d *Dispatcher) remove(eventType string, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventType]
	for i, e := range entries {
		if e.id == id {
			d.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

type registration struct {
	once       sync.Once
	dispatcher *Dispatcher
	eventType  string
	id         int
}

func (r *registration) Remove() {
	r.once.Do(func() {
		r.dispatcher.remove(r.eventType, r.id)
	})
}
