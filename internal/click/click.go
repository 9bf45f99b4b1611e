// Package click classifies clicks on links and buttons.
//
// A click is resolved to the nearest trackable ancestor, its resource
// reference is resolved against the document location, and the result
// is classified as an internal link, an outbound link, or a file
// download. Internal non-download links produce no event.
package click

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/nao1215/pagebeacon/internal/dom"
	"github.com/nao1215/pagebeacon/internal/env"
)

// DefaultSelector matches links, buttons and button-like inputs.
const DefaultSelector = `a, button, input[type="submit"], input[type="button"]`

// TextLimit caps the text attributes, in characters.
const TextLimit = 64

// Event names produced by the classifier.
const (
	EventClick        = "click"
	EventFileDownload = "file_download"
)

// fileExtensions is the allow-list of downloadable resources.
var fileExtensions = regexp.MustCompile(
	`(?i)\.(pdf|xlsx?|docx?|txt|rtf|csv|exe|key|pp(s|t|tx)|7z|pkg|rar|gz|zip|avi|mov|mp4|mpe?g|wmv|midi?|mp3|wav|wma)$`,
)

// Kind classifies a click target.
type Kind string

const (
	// KindInternal is a same-site link; it is not reported.
	KindInternal Kind = "internal"
	// KindOutbound is a link to another host.
	KindOutbound Kind = "outbound"
	// KindDownload is a link to a file on the allow-list.
	KindDownload Kind = "download"
)

// Target describes a classified click.
type Target struct {
	// Element is the resolved trackable element.
	Element *html.Node

	Tag     string
	ID      string
	Classes []string
	Name    string
	Value   string
	Text    string

	// URL is the resolved resource reference, empty when there is none.
	URL        string
	Hostname   string
	Pathname   string
	IsExternal bool

	// FileExtension and FilePath are set for downloads only.
	FileExtension string
	FilePath      string

	Kind Kind
}

// EventName returns the produced event name.
func (t Target) EventName() string {
	if t.Kind == KindDownload {
		return EventFileDownload
	}
	return EventClick
}

// Emit reports whether the click should be tracked.
func (t Target) Emit() bool {
	return t.Kind != KindInternal
}

// Classifier resolves and classifies click targets.
type Classifier struct {
	selector *dom.Selector
}

// NewClassifier compiles selector, using DefaultSelector when empty.
func NewClassifier(selector string) (*Classifier, error) {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	sel, err := dom.Compile(selector)
	if err != nil {
		return nil, err
	}
	return &Classifier{selector: sel}, nil
}

// Selector returns the trackable element selector.
func (c *Classifier) Selector() string {
	return c.selector.String()
}

// Resolve returns the nearest ancestor-or-self of target matching the
// trackable selector, or nil.
func (c *Classifier) Resolve(target *html.Node) *html.Node {
	return c.selector.Closest(target)
}

// Classify resolves target and classifies it against the document
// location. The boolean is false when nothing should be reported,
// either because no trackable element was found or because the click
// is an internal navigation.
func (c *Classifier) Classify(target *html.Node, loc env.Location) (Target, bool) {
	el := c.Resolve(target)
	if el == nil {
		return Target{}, false
	}
	t := Describe(el, loc)
	return t, t.Emit()
}

// Describe fingerprints el as it stands, without selector resolution.
// Elements without a reference are internal.
func Describe(el *html.Node, loc env.Location) Target {
	t := Target{
		Element: el,
		Tag:     dom.TagName(el),
		ID:      dom.Attr(el, "id"),
		Classes: dom.Classes(el),
		Name:    truncate(strings.TrimSpace(dom.Attr(el, "name"))),
		Value:   truncate(strings.TrimSpace(dom.Attr(el, "value"))),
		Text:    truncate(strings.TrimSpace(collapse(dom.Text(el)))),
		Kind:    KindInternal,
	}

	ref := dom.Attr(el, "download")
	if strings.TrimSpace(ref) == "" {
		ref = dom.Attr(el, "href")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return t
	}

	if u := resolve(ref, loc); u != nil {
		t.URL = u.String()
		t.Hostname = u.Hostname()
		t.Pathname = u.EscapedPath()
		if t.Hostname != "" {
			t.IsExternal = !strings.EqualFold(t.Hostname, loc.Hostname)
		}
	} else {
		// Unparseable references still carry their raw path for extension checks.
		t.URL = ref
		t.Pathname = ref
	}

	if ext := FileExtension(t.Pathname); ext != "" {
		t.Kind = KindDownload
		t.FileExtension = ext
		t.FilePath = decodePath(t.Pathname)
	} else if t.IsExternal {
		t.Kind = KindOutbound
	}
	return t
}

// FileExtension returns the lower-cased allow-listed extension of p, or "".
func FileExtension(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	m := fileExtensions.FindStringSubmatch(p)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// Hierarchy serializes the element path from the root to target as
// "@tag;.class;[href=...];|" segments, skipping html and body.
func Hierarchy(target *html.Node) string {
	var b strings.Builder
	for _, n := range dom.Path(target) {
		tag := dom.TagName(n)
		if tag == "html" || tag == "body" {
			continue
		}
		b.WriteString("@")
		b.WriteString(tag)
		b.WriteString(";")
		if classes := dom.Classes(n); len(classes) > 0 {
			b.WriteString(".")
			b.WriteString(strings.Join(classes, ";."))
			b.WriteString(";")
		}
		if href := dom.Attr(n, "href"); href != "" {
			b.WriteString("[href=")
			b.WriteString(href)
			b.WriteString("];")
		}
		b.WriteString("|")
	}
	return b.String()
}

func resolve(ref string, loc env.Location) *url.URL {
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	if base := loc.URL(); base != nil && base.Scheme != "" {
		return base.ResolveReference(u)
	}
	return u
}

func decodePath(p string) string {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return path.Clean(decoded)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= TextLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:TextLimit])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
