package payload

import (
	"strings"

	"github.com/nao1215/pagebeacon/internal/session"
)

// GA4Endpoint is the GA4 measurement endpoint.
const GA4Endpoint = "https://www.google-analytics.com/g/collect"

// GA4 renders hits for the GA4 measurement protocol.
type GA4 struct{}

// NewGA4 returns the GA4 provider.
func NewGA4() *GA4 {
	return &GA4{}
}

// Name implements Provider.
func (*GA4) Name() string { return "ga4" }

// Endpoint implements Provider.
func (*GA4) Endpoint() string { return GA4Endpoint }

// Keys implements Provider.
func (*GA4) Keys() session.Keys { return session.GA4Keys }

// Build implements Provider.
func (*GA4) Build(hit Hit) Params {
	var p Params
	p.Add("v", "2")
	p.Add("tid", hit.TrackingID)
	p.Add("_p", hit.PageID)
	p.Add("ul", NormalizeLanguage(hit.Language))
	p.Add("cid", hit.ClientID)
	p.Add("_fv", flag(hit.Session.FirstVisit))
	p.Add("_s", "1")
	p.Add("sid", hit.SessionID)
	if hit.Session.SessionCount > 0 {
		p.Add("sct", itoa(hit.Session.SessionCount))
	}
	p.Add("seg", "1")
	p.Add("_ss", flag(hit.Session.SessionStart))
	p.Add("_dbg", flag(hit.Debug))
	p.Add("dr", externalReferrer(hit.Referrer, hit.Location.Host))
	p.Add("dl", hit.Location.Href())
	p.Add("dt", hit.Title)
	if hit.ColorDepth > 0 {
		p.Add("sd", itoa(hit.ColorDepth)+"-bit")
	}
	p.Add("sr", hit.Screen.String())
	p.Add("vp", hit.Viewport.String())

	name := hit.Name
	if name == "" {
		name = EventPageView
	}
	if name == EventPageView {
		if term, found := SearchTerm(hit.Location.Search); found {
			name = EventViewSearchResults
			p.Add("en", name)
			p.Add("ep.search_term", term)
		} else {
			p.Add("en", name)
		}
	} else {
		p.Add("en", name)
	}

	if name == EventException {
		p.Add("ep.description", hit.Error)
		p.Add("ep.fatal", flag(hit.Fatal))
	}

	for _, ep := range hit.Params {
		p.Add(ga4Key(ep), ep.Value)
	}
	if hit.ReportEngagement {
		p.Add("_et", itoa(hit.EngagementSeconds))
	}
	return p
}

// ga4Key prefixes custom parameters with ep. or epn.
func ga4Key(ep EventParam) string {
	if strings.HasPrefix(ep.Key, "ep.") || strings.HasPrefix(ep.Key, "epn.") || strings.HasPrefix(ep.Key, "_") {
		return ep.Key
	}
	if ep.Numeric {
		return "epn." + ep.Key
	}
	return "ep." + ep.Key
}

// externalReferrer drops referrers that point at the current host.
func externalReferrer(referrer, host string) string {
	if host != "" && strings.Contains(referrer, host) {
		return ""
	}
	return referrer
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return ""
}
