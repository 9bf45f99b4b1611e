package env

import (
	"net/url"
	"strconv"
	"sync"
)

// VisibilityState mirrors document.visibilityState.
type VisibilityState string

const (
	// VisibilityVisible means the document is in the foreground.
	VisibilityVisible VisibilityState = "visible"
	// VisibilityHidden means the document is in the background or minimized.
	VisibilityHidden VisibilityState = "hidden"
)

// Location is the document location split into the parts the tracker uses.
type Location struct {
	Origin   string
	Host     string
	Hostname string
	Pathname string
	Search   string
	Hash     string
}

// Href returns origin + pathname + search.
func (l Location) Href() string {
	return l.Origin + l.Pathname + l.Search
}

// URL parses Href. It returns nil when the location is not a valid URL.
func (l Location) URL() *url.URL {
	u, err := url.Parse(l.Href() + l.Hash)
	if err != nil {
		return nil
	}
	return u
}

// ParseLocation splits raw into a Location.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}
	loc := Location{
		Host:     u.Host,
		Hostname: u.Hostname(),
		Pathname: u.EscapedPath(),
	}
	if u.Scheme != "" {
		loc.Origin = u.Scheme + "://" + u.Host
	}
	if loc.Pathname == "" {
		loc.Pathname = "/"
	}
	if u.RawQuery != "" {
		loc.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		loc.Hash = "#" + u.EscapedFragment()
	}
	return loc, nil
}

// Size is a width and height in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// String renders the size as WIDTHxHEIGHT.
func (s Size) String() string {
	if s.Width == 0 && s.Height == 0 {
		return ""
	}
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// ScrollMetrics are the measurements needed for scroll depth.
type ScrollMetrics struct {
	ScrollTop      float64
	ViewportHeight float64

	BodyScrollHeight float64
	BodyOffsetHeight float64
	BodyClientHeight float64
	DocScrollHeight  float64
	DocOffsetHeight  float64
	DocClientHeight  float64
}

// DocumentHeight returns the largest reported document height.
func (m ScrollMetrics) DocumentHeight() float64 {
	return max(
		m.BodyScrollHeight, m.DocScrollHeight,
		m.BodyOffsetHeight, m.DocOffsetHeight,
		m.BodyClientHeight, m.DocClientHeight,
	)
}

// Environment exposes the document and window state read by the tracker.
type Environment interface {
	Location() Location
	Title() string
	Referrer() string
	VisibilityState() VisibilityState
	Viewport() Size
	Screen() Size
	ColorDepth() int
	Language() string
	Scroll() ScrollMetrics
}

// Page is a mutable in-memory Environment.
type Page struct {
	mu         sync.RWMutex
	location   Location
	title      string
	referrer   string
	visibility VisibilityState
	viewport   Size
	screen     Size
	colorDepth int
	language   string
	scroll     ScrollMetrics
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithTitle sets document.title.
func WithTitle(title string) PageOption {
	return func(p *Page) { p.title = title }
}

// WithReferrer sets document.referrer.
func WithReferrer(referrer string) PageOption {
	return func(p *Page) { p.referrer = referrer }
}

// WithViewport sets the viewport size.
func WithViewport(width, height int) PageOption {
	return func(p *Page) {
		p.viewport = Size{Width: width, Height: height}
		p.scroll.ViewportHeight = float64(height)
	}
}

// WithScreen sets the screen size.
func WithScreen(width, height int) PageOption {
	return func(p *Page) { p.screen = Size{Width: width, Height: height} }
}

// WithColorDepth sets screen.colorDepth.
func WithColorDepth(bits int) PageOption {
	return func(p *Page) { p.colorDepth = bits }
}

// WithLanguage sets navigator.language.
func WithLanguage(lang string) PageOption {
	return func(p *Page) { p.language = lang }
}

// WithDocumentHeight sets every document height metric to h.
func WithDocumentHeight(h float64) PageOption {
	return func(p *Page) {
		p.scroll.BodyScrollHeight = h
		p.scroll.BodyOffsetHeight = h
		p.scroll.BodyClientHeight = h
		p.scroll.DocScrollHeight = h
		p.scroll.DocOffsetHeight = h
		p.scroll.DocClientHeight = h
	}
}

// NewPage creates a visible Page at rawURL.
func NewPage(rawURL string, opts ...PageOption) (*Page, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	p := &Page{
		location:   loc,
		visibility: VisibilityVisible,
		colorDepth: 24,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Location implements Environment.
func (p *Page) Location() Location {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location
}

// Title implements Environment.
func (p *Page) Title() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.title
}

// Referrer implements Environment.
func (p *Page) Referrer() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.referrer
}

// VisibilityState implements Environment.
func (p *Page) VisibilityState() VisibilityState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visibility
}

// Viewport implements Environment.
func (p *Page) Viewport() Size {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewport
}

// Screen implements Environment.
func (p *Page) Screen() Size {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.screen
}

// ColorDepth implements Environment.
func (p *Page) ColorDepth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.colorDepth
}

// Language implements Environment.
func (p *Page) Language() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.language
}

// Scroll implements Environment.
func (p *Page) Scroll() ScrollMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.scroll
}

// SetVisibility changes the visibility state.
func (p *Page) SetVisibility(state VisibilityState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visibility = state
}

// SetScrollTop changes the vertical scroll offset.
func (p *Page) SetScrollTop(top float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll.ScrollTop = top
}

// SetLocation navigates the page without reloading it.
func (p *Page) SetLocation(loc Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = loc
}
