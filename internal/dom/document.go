// Package dom wraps a golang.org/x/net/html node tree as a mutable document
// that reports every change it undergoes to its observers, the way a browser
// MutationObserver does.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is an HTML document plus the URL it was loaded from. A Document is
// not safe for concurrent use; callers confine it to one goroutine.
type Document struct {
	root      *html.Node
	url       *url.URL
	observers map[int]func(Record)
	nextID    int
}

// New returns an empty document: no <html>, <head> or <body> yet.
func New(base *url.URL) *Document {
	return &Document{
		root:      &html.Node{Type: html.DocumentNode},
		url:       base,
		observers: make(map[int]func(Record)),
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader, base *url.URL) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{
		root:      root,
		url:       base,
		observers: make(map[int]func(Record)),
	}, nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// URL returns the document URL, which may be nil for local files.
func (d *Document) URL() *url.URL {
	return d.url
}

// Hostname returns the lower-cased host of the document URL without port.
func (d *Document) Hostname() string {
	if d.url == nil {
		return ""
	}
	return strings.ToLower(d.url.Hostname())
}

// ResolveURL resolves ref against the document URL.
func (d *Document) ResolveURL(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	if d.url == nil {
		return u.String(), nil
	}
	return d.url.ResolveReference(u).String(), nil
}

// DocumentElement returns the <html> element, or nil.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node {
	return childElement(d.DocumentElement(), atom.Head)
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	return childElement(d.DocumentElement(), atom.Body)
}

// Observe registers fn to receive a Record for every mutation made through the
// Document's methods. The returned function unregisters it.
func (d *Document) Observe(fn func(Record)) (cancel func()) {
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	return func() { delete(d.observers, id) }
}

func (d *Document) notify(rec Record) {
	for _, fn := range d.observers {
		fn(rec)
	}
}

// AppendChild appends child to parent. A child that is already attached
// elsewhere is moved.
func (d *Document) AppendChild(parent, child *html.Node) {
	detach(child)
	parent.AppendChild(child)
	d.notify(Record{Kind: ChildList, Target: parent, Added: []*html.Node{child}})
}

// InsertBefore inserts child before ref under parent. A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	detach(child)
	parent.InsertBefore(child, ref)
	d.notify(Record{Kind: ChildList, Target: parent, Added: []*html.Node{child}})
}

// InsertAfter inserts child immediately after ref.
func (d *Document) InsertAfter(ref, child *html.Node) {
	d.InsertBefore(ref.Parent, child, ref.NextSibling)
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	parent.RemoveChild(child)
	d.notify(Record{Kind: ChildList, Target: parent, Removed: []*html.Node{child}})
}

// SetAttribute sets or replaces an attribute.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	old, had := Attr(n, key)
	if had && old == val {
		return
	}
	setAttr(n, key, val)
	d.notify(Record{Kind: Attributes, Target: n, AttributeName: key, OldValue: old})
}

// RemoveAttribute deletes an attribute if present.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	old, had := Attr(n, key)
	if !had {
		return
	}
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
	d.notify(Record{Kind: Attributes, Target: n, AttributeName: key, OldValue: old})
}

// SetText replaces all children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	txt := &html.Node{Type: html.TextNode, Data: text}
	n.AppendChild(txt)
	d.notify(Record{Kind: ChildList, Target: n, Added: []*html.Node{txt}, Removed: removed})
}

// NewElement creates a detached element.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// Attr returns the value of an attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// IsElement reports whether n is an element of the given type.
func IsElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// IsStylesheetLink reports whether n is <link rel="stylesheet" href="...">.
func IsStylesheetLink(n *html.Node) bool {
	if !IsElement(n, atom.Link) {
		return false
	}
	rel, _ := Attr(n, "rel")
	href, _ := Attr(n, "href")
	if strings.TrimSpace(href) == "" {
		return false
	}
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if r == "stylesheet" {
			return true
		}
	}
	return false
}

// Elements returns n (when it is an element) and all of its element
// descendants in document order.
func Elements(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// TextContent concatenates the text of n's descendants.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return sb.String()
}

// Attached reports whether n is connected to the document root.
func (d *Document) Attached(n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == d.root {
			return true
		}
	}
	return false
}

func childElement(parent *html.Node, a atom.Atom) *html.Node {
	if parent == nil {
		return nil
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, a) {
			return c
		}
	}
	return nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
