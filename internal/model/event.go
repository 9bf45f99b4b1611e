package model

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider identifies the wire format an event was received in.
type Provider string

const (
	// ProviderGA4 is the Google Analytics 4 measurement protocol.
	ProviderGA4 Provider = "ga4"
	// ProviderHeap is the Heap tracking pixel format.
	ProviderHeap Provider = "heap"
)

// Event names shared by every provider.
const (
	EventPageView          = "page_view"
	EventScroll            = "scroll"
	EventClick             = "click"
	EventFileDownload      = "file_download"
	EventUserEngagement    = "user_engagement"
	EventViewSearchResults = "view_search_results"
)

// Event is a single tracking hit as received by the collector.
type Event struct {
	// ID is assigned on receipt.
	ID string `json:"id"`

	// ReceivedAt is the collector's receive time.
	ReceivedAt time.Time `json:"received_at"`

	Provider   Provider `json:"provider"`
	Name       string   `json:"name"`
	TrackingID string   `json:"tracking_id"`
	ClientID   string   `json:"client_id"`
	SessionID  string   `json:"session_id"`

	// SessionCount is the client's session ordinal, 0 when unknown.
	SessionCount int  `json:"session_count,omitempty"`
	FirstVisit   bool `json:"first_visit,omitempty"`
	SessionStart bool `json:"session_start,omitempty"`

	Location string `json:"location,omitempty"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`

	// EngagementSeconds is the reported foreground time, if any.
	EngagementSeconds int `json:"engagement_seconds,omitempty"`

	// Params holds provider specific parameters not mapped above.
	Params map[string]string `json:"params,omitempty"`
}

// NewEventID returns a fresh random event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// ga4Mapped lists the GA4 keys decoded into Event fields.
var ga4Mapped = map[string]bool{
	"v": true, "tid": true, "cid": true, "sid": true, "sct": true,
	"_fv": true, "_ss": true, "dl": true, "dt": true, "dr": true,
	"en": true, "_et": true,
}

// FromGA4 decodes GA4 collect parameters.
// Event parameters lose their ep./epn. prefix.
func FromGA4(values url.Values) Event {
	ev := Event{
		Provider:     ProviderGA4,
		Name:         values.Get("en"),
		TrackingID:   values.Get("tid"),
		ClientID:     values.Get("cid"),
		SessionID:    values.Get("sid"),
		SessionCount: atoi(values.Get("sct")),
		FirstVisit:   values.Get("_fv") != "",
		SessionStart: values.Get("_ss") != "",
		Location:     values.Get("dl"),
		Title:        values.Get("dt"),
		Referrer:     values.Get("dr"),
		Params:       make(map[string]string),
	}
	if et := values.Get("_et"); et != "" {
		ev.EngagementSeconds = atoi(et)
	}
	if et := values.Get("epn.engagement_time"); ev.EngagementSeconds == 0 && et != "" {
		ev.EngagementSeconds = atoi(et)
	}

	for key, vals := range values {
		if ga4Mapped[key] || len(vals) == 0 {
			continue
		}
		switch {
		case strings.HasPrefix(key, "ep."):
			ev.Params[strings.TrimPrefix(key, "ep.")] = vals[0]
		case strings.HasPrefix(key, "epn."):
			ev.Params[strings.TrimPrefix(key, "epn.")] = vals[0]
		default:
			ev.Params[key] = vals[0]
		}
	}
	return ev
}

// heapEventKey matches counter-suffixed event keys such as t0 or n12.
var heapEventKey = regexp.MustCompile(`^([a-z]+)(\d+)$`)

// FromHeap decodes Heap pixel parameters. A hit carrying a counter
// suffixed "t<n>" key is an interaction; anything else is a page view.
func FromHeap(values url.Values) Event {
	ev := Event{
		Provider:   ProviderHeap,
		Name:       EventPageView,
		TrackingID: values.Get("a"),
		ClientID:   values.Get("u"),
		SessionID:  values.Get("s"),
		Params:     make(map[string]string),
	}

	page := map[string]string{
		"d": values.Get("d"),
		"h": values.Get("h"),
		"t": values.Get("t"),
		"r": values.Get("r"),
	}
	if pp := values["pp"]; len(pp) > 0 {
		for i := 0; i+1 < len(pp); i += 2 {
			page[pp[i]] = pp[i+1]
		}
	}
	if page["d"] != "" {
		ev.Location = "//" + page["d"] + page["h"]
	}
	ev.Title = page["t"]
	ev.Referrer = page["r"]

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if m := heapEventKey.FindStringSubmatch(key); m != nil {
			switch m[1] {
			case "t":
				ev.Name = vals[0]
			case "k":
				for _, pair := range strings.Split(vals[0], ";") {
					key, value, ok := strings.Cut(pair, "=")
					if !ok {
						continue
					}
					if key == "engagement_time" {
						ev.EngagementSeconds = atoi(value)
					}
					ev.Params[key] = value
				}
				continue
			}
			ev.Params[m[1]] = vals[0]
		}
	}
	return ev
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
