package engine

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jmylchreest/umbra/internal/dom"
	"github.com/jmylchreest/umbra/internal/imagery"
	"github.com/jmylchreest/umbra/internal/rewrite"
)

// transformElement rewrites the colour properties of one element and writes
// the changed ones back inline as !important declarations. Images are dimmed
// on first sight only.
func (e *Engine) transformElement(n *html.Node, first bool) {
	decls := dom.InlineStyle(n)
	scope := e.doc.ScopeOf(n)
	changed := false

	for _, entry := range e.rw.Table() {
		value := e.computedValue(n, entry)
		out := e.rw.RewriteEntry(entry, value, scope)
		if out == value {
			continue
		}
		body, _ := dom.SplitImportant(strings.TrimSpace(out))
		decls = setDeclaration(decls, entry.Property, body)
		changed = true
	}

	if first && dom.IsElement(n, atom.Img) && e.prefs.ImageBrightness != 1 {
		if filter, ok := e.dimImage(n); ok {
			decls = setDeclaration(decls, "filter", filter)
			changed = true
		}
	}

	if !changed {
		return
	}

	text := dom.FormatDeclarations(decls)
	m := e.marks[n]
	m.style = text
	m.written = true
	e.doc.SetAttribute(n, "style", text)
	e.count(func(s *Stats) { s.Elements++ })
}

// computedValue approximates the computed value of the entry's property on n
// from inline styles alone. Colour inherits; html and body see the
// placeholder scheme underneath.
func (e *Engine) computedValue(n *html.Node, entry rewrite.Entry) string {
	if decl, ok := dom.InlineValue(n, entry.Property); ok {
		return decl.Value
	}

	rootish := dom.IsElement(n, atom.Html) || dom.IsElement(n, atom.Body)
	switch entry.Property {
	case "color":
		if decl, _, ok := dom.InheritedValue(n.Parent, entry.Property); ok {
			return decl.Value
		}
		if e.placeholder != nil && underBody(n) {
			return PlaceholderColor
		}
	case "background-color":
		if e.placeholder != nil && rootish {
			return PlaceholderBackground
		}
	}
	return entry.DefaultValue
}

func underBody(n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if dom.IsElement(c, atom.Body) || dom.IsElement(c, atom.Html) {
			return true
		}
	}
	return false
}

// dimImage applies the image brightness. Data URIs are re-encoded in place;
// anything else gets a CSS filter, returned for the caller to write.
func (e *Engine) dimImage(n *html.Node) (string, bool) {
	brightness := e.prefs.ImageBrightness

	src, _ := dom.Attr(n, "src")
	if imagery.IsDataURI(src) {
		out, err := imagery.DimDataURI(src, brightness)
		if err == nil {
			e.doc.SetAttribute(n, "src", out)
			e.count(func(s *Stats) { s.DimmedImages++ })
			return "", false
		}
		e.logger.Debug("could not dim inline image, using filter", "error", err)
	}

	e.count(func(s *Stats) { s.DimmedImages++ })
	return imagery.FilterDeclaration(brightness), true
}

func setDeclaration(decls []dom.Declaration, prop, value string) []dom.Declaration {
	decls = dom.SetDeclaration(decls, dom.Declaration{Property: prop, Value: value, Important: true})

	// Longhands declared after a shorthand override it, and would lose to it
	// once the shorthand is !important.
	after := false
	for i := range decls {
		if decls[i].Property == prop {
			after = true
			continue
		}
		if after && strings.HasPrefix(decls[i].Property, prop+"-") {
			decls[i].Important = true
		}
	}
	return decls
}

// fetchLink fetches a linked stylesheet off the loop and inserts its
// rewritten text right after the link.
func (e *Engine) fetchLink(link *html.Node) {
	if e.fetcher == nil {
		e.logger.Debug("no fetcher configured, leaving linked stylesheet")
		return
	}

	href, _ := dom.Attr(link, "href")
	abs, err := e.doc.ResolveURL(href)
	if err != nil {
		e.fetchFailed(link, href, href, err)
		return
	}

	ctx := e.ctx
	e.loop.Go(func() func() {
		css, err := e.fetcher.FetchCSS(ctx, abs)
		return func() {
			if err != nil {
				e.fetchFailed(link, href, abs, err)
				return
			}
			e.count(func(s *Stats) { s.FetchedSheets++ })
			e.insertSheet(link, href, e.sheetTransformer().RewriteText(css))
		}
	})
}

func (e *Engine) fetchFailed(link *html.Node, href, url string, err error) {
	e.logger.Warn("failed to fetch stylesheet", "url", url, "error", err)
	e.count(func(s *Stats) { s.FetchFailures++ })
	e.insertSheet(link, href, FetchErrorText(url, err))
}

// FetchErrorText is the body of the stylesheet inserted for a link that could
// not be fetched.
func FetchErrorText(url string, err error) string {
	msg := strings.ReplaceAll(err.Error(), "*/", "* /")
	return fmt.Sprintf("/* %s %s: %s */", FetchErrorPrefix, url, msg)
}

// insertSheet inserts a marked <style> after link. The link may have been
// removed meanwhile, in which case the sheet goes to the head.
func (e *Engine) insertSheet(link *html.Node, href, css string) {
	style := dom.NewElement("style", html.Attribute{Key: AttrSource, Val: href})
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	e.marks[style] = &mark{}

	if link.Parent != nil && e.doc.Attached(link) {
		e.doc.InsertAfter(link, style)
		return
	}
	parent := e.doc.Head()
	if parent == nil {
		parent = e.doc.DocumentElement()
	}
	if parent == nil {
		e.logger.Debug("nowhere to insert fetched stylesheet", "href", href)
		return
	}
	e.doc.AppendChild(parent, style)
}
