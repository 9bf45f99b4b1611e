// Package dom provides helpers over golang.org/x/net/html element trees.
//
// The tracker only needs a small read-only slice of the DOM: tag names,
// attributes, class lists, text content, the ancestor chain, and
// selector matching. Selectors are compiled with cascadia.
package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// ParseString parses an HTML document held in s.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Selector matches element nodes.
type Selector struct {
	raw string
	sel cascadia.Selector
}

// Compile compiles a CSS selector group such as "a, button".
func Compile(selector string) (*Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return &Selector{raw: selector, sel: sel}, nil
}

// MustCompile is like Compile but panics on an invalid selector.
func MustCompile(selector string) *Selector {
	s, err := Compile(selector)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the selector source.
func (s *Selector) String() string {
	return s.raw
}

// Match reports whether n is an element matching the selector.
func (s *Selector) Match(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && s.sel.Match(n)
}

// First returns the first matching descendant of root in document order.
func (s *Selector) First(root *html.Node) *html.Node {
	if root == nil {
		return nil
	}
	return s.sel.MatchFirst(root)
}

// All returns every matching descendant of root in document order.
func (s *Selector) All(root *html.Node) []*html.Node {
	if root == nil {
		return nil
	}
	return s.sel.MatchAll(root)
}

// Closest walks from n through its ancestors and returns the first
// element matching s, or nil.
func (s *Selector) Closest(n *html.Node) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if s.Match(cur) {
			return cur
		}
	}
	return nil
}

// Attr returns the value of the attribute key, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

// HasAttr reports whether the attribute key is present.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, key) {
			return true
		}
	}
	return false
}

// TagName returns the lower-cased element name. For non-element nodes
// it falls back to the parent element's name.
func TagName(n *html.Node) string {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			return strings.ToLower(cur.Data)
		}
	}
	return ""
}

// ClassName returns the raw class attribute.
func ClassName(n *html.Node) string {
	return Attr(n, "class")
}

// Classes returns the whitespace separated class list.
func Classes(n *html.Node) []string {
	return strings.Fields(ClassName(n))
}

// Text returns the concatenated text content of n and its descendants.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Path returns the element ancestors of n from the root down to n itself.
func Path(n *html.Node) []*html.Node {
	var path []*html.Node
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			path = append(path, cur)
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Title returns the trimmed text of the document's first <title> element.
func Title(doc *html.Node) string {
	t := MustCompile("title").First(doc)
	if t == nil {
		return ""
	}
	return strings.TrimSpace(Text(t))
}
