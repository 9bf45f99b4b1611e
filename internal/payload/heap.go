package payload

import (
	"sort"
	"strings"
	"time"

	"github.com/nao1215/pagebeacon/internal/session"
)

// HeapEndpoint is the Heap tracking pixel endpoint.
const HeapEndpoint = "https://heapanalytics.com/h"

// heapClickDelay backdates click timestamps to the pointer down.
const heapClickDelay = 500 * time.Millisecond

var heapUTM = []struct{ query, key string }{
	{"utm_source", "us"},
	{"utm_medium", "um"},
	{"utm_term", "ut"},
	{"utm_campaign", "ua"},
	{"utm_content", "uc"},
}

// Heap renders hits for the Heap pixel format.
type Heap struct{}

// NewHeap returns the Heap provider.
func NewHeap() *Heap {
	return &Heap{}
}

// Name implements Provider.
func (*Heap) Name() string { return "heap" }

// Endpoint implements Provider.
func (*Heap) Endpoint() string { return HeapEndpoint }

// Keys implements Provider.
func (*Heap) Keys() session.Keys { return session.DefaultKeys }

// Build implements Provider. Page views carry page data as top level
// keys; any other hit carries it as "pp" key/value pairs followed by
// sequence-suffixed event keys.
func (*Heap) Build(hit Hit) Params {
	var p Params
	p.Add("a", hit.TrackingID)
	p.Add("tv", "4.0")
	p.Add("u", hit.ClientID)
	p.Add("s", hit.SessionID)
	p.Add("v", hit.PageID)
	p.Add("st", millis(hit.Now))
	p.Add("b", "web")
	p.Add("sp", "r")

	page := heapPageData(hit)
	isEvent := hit.Name != "" && hit.Name != EventPageView
	if !isEvent {
		p = append(p, page...)
		return p
	}
	for _, kv := range page {
		p.Add("pp", kv.Key)
		p.Add("pp", kv.Value)
	}

	suffix := itoa(hit.Sequence)
	if hit.Click != nil {
		c := hit.Click
		p.Add("t"+suffix, "click")
		p.Add("n"+suffix, c.Tag)
		p.Add("x"+suffix, c.Text)
		p.Add("c"+suffix, strings.Join(c.Classes, " "))
		p.Add("i"+suffix, c.ID)
		p.Add("h"+suffix, c.URL)
		p.Add("ts"+suffix, millis(hit.Now.Add(-heapClickDelay)))
		p.Add("y"+suffix, hit.Hierarchy)
		return p
	}

	p.Add("t"+suffix, hit.Name)
	p.Add("ts"+suffix, millis(hit.Now))
	p.Add("k"+suffix, heapCustom(hit))
	return p
}

func heapPageData(hit Hit) Params {
	var p Params
	p.Add("d", hit.Location.Hostname)
	p.Add("t", hit.Title)
	p.Add("h", hit.Location.Pathname)
	p.Add("q", hit.Location.Search)
	p.Add("g", hit.Location.Hash)
	p.Add("r", hit.Referrer)
	p.Add("pr", hit.Referrer)
	if term, found := SearchTerm(hit.Location.Search); found {
		p.Add("e", term)
	}
	query := parseQuery(hit.Location.Search)
	for _, utm := range heapUTM {
		p.Add(utm.key, query.Get(utm.query))
	}
	p.Add("ts", millis(hit.Now))
	p.Add("z", "2")
	return p
}

// heapCustom encodes event parameters as sorted "key=value" pairs.
func heapCustom(hit Hit) string {
	pairs := make([]string, 0, len(hit.Params)+1)
	for _, ep := range hit.Params {
		key := strings.TrimPrefix(strings.TrimPrefix(ep.Key, "epn."), "ep.")
		pairs = append(pairs, key+"="+ep.Value)
	}
	if hit.ReportEngagement {
		pairs = append(pairs, "engagement_time="+itoa(hit.EngagementSeconds))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ";")
}
