package payload

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pagebeacon/internal/click"
	"github.com/nao1215/pagebeacon/internal/env"
	"github.com/nao1215/pagebeacon/internal/session"
)

// Event names understood by every provider.
const (
	EventPageView          = "page_view"
	EventScroll            = "scroll"
	EventClick             = click.EventClick
	EventFileDownload      = click.EventFileDownload
	EventUserEngagement    = "user_engagement"
	EventViewSearchResults = "view_search_results"
	EventException         = "exception"
)

// ErrUnknownProvider is returned by Lookup for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown analytics provider")

// Hit is everything a provider needs to build one request.
type Hit struct {
	Name       string
	TrackingID string
	ClientID   string
	SessionID  string
	PageID     string
	Session    session.State

	Location   env.Location
	Title      string
	Referrer   string
	Language   string
	Screen     env.Size
	Viewport   env.Size
	ColorDepth int

	// EngagementSeconds is sent when ReportEngagement is set.
	EngagementSeconds int
	ReportEngagement  bool

	Params []EventParam

	// Click is set for click and file_download hits.
	Click *click.Target
	// Hierarchy is the element path fingerprint of Click.
	Hierarchy string
	// Sequence numbers interaction hits within one tracker.
	Sequence int

	Debug bool
	// Error is the exception description for exception hits.
	Error string
	Fatal bool

	Now time.Time
}

// Provider renders hits in one collector's wire format.
type Provider interface {
	Name() string
	Endpoint() string
	// Keys are the storage keys the provider keeps identity under.
	Keys() session.Keys
	Build(hit Hit) Params
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, error) {
	switch strings.ToLower(name) {
	case "", "ga4":
		return NewGA4(), nil
	case "heap":
		return NewHeap(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

// searchTerms are query keys that mark a search results page.
var searchTerms = []string{"q", "s", "search", "query", "keyword"}

var searchPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(searchTerms))
	for i, term := range searchTerms {
		out[i] = regexp.MustCompile(`[?&]` + regexp.QuoteMeta(term) + `=`)
	}
	return out
}()

// SearchTerm inspects a location search string. found reports whether
// any search key is present; term is the first non-empty search value.
func SearchTerm(search string) (term string, found bool) {
	for _, re := range searchPatterns {
		if re.MatchString(search) {
			found = true
			break
		}
	}
	if !found {
		return "", false
	}
	values := parseQuery(search)
	for _, key := range searchTerms {
		if v := values.Get(key); v != "" {
			return v, true
		}
	}
	return "", true
}

var lower = cases.Lower(language.Und)

// NormalizeLanguage canonicalizes a BCP 47 tag and lower-cases it.
func NormalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if tag, err := language.Parse(raw); err == nil {
		return lower.String(tag.String())
	}
	return lower.String(raw)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
