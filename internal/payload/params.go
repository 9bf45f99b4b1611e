// Package payload turns tracking hits into provider query parameters.
package payload

import (
	"net/url"
	"strings"
)

// Param is one query parameter.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Order is preserved on the wire.
type Params []Param

// Add appends key=value unless value is empty.
func (p *Params) Add(key, value string) {
	if value == "" {
		return
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// Get returns the first value for key.
func (p Params) Get(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Encode renders the list as a query string.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// Values converts the list to url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Add(kv.Key, kv.Value)
	}
	return v
}

// EventParam is a caller supplied event parameter.
type EventParam struct {
	Key   string
	Value string

	// Numeric marks the value as a number for providers that distinguish types.
	Numeric bool
}

// String returns a text event parameter.
func String(key, value string) EventParam {
	return EventParam{Key: key, Value: value}
}

// Number returns a numeric event parameter.
func Number(key string, value int) EventParam {
	return EventParam{Key: key, Value: itoa(value), Numeric: true}
}

// URL joins endpoint and the encoded params.
func URL(endpoint string, p Params) string {
	q := p.Encode()
	if q == "" {
		return endpoint
	}
	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + q
	}
	return endpoint + "?" + q
}

// parseQuery parses a location search string, keeping whatever parsed.
func parseQuery(search string) url.Values {
	values, _ := url.ParseQuery(strings.TrimPrefix(search, "?")) //nolint:errcheck // partial results are fine
	return values
}
