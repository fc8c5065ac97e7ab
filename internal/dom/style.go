package dom

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Declaration is one property of an inline style attribute.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// String formats the declaration as "property: value[ !important]".
func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// ParseDeclarations splits a style attribute body into declarations. Semicolons
// inside parentheses or quotes (data URIs, font names) do not split. Property
// names are lower-cased except custom properties, which are case-sensitive.
func ParseDeclarations(text string) []Declaration {
	var out []Declaration
	for _, part := range SplitTopLevel(text, ';') {
		idx := strings.Index(part, ":")
		if idx <= 0 {
			continue
		}
		prop := strings.TrimSpace(part[:idx])
		if !strings.HasPrefix(prop, "--") {
			prop = strings.ToLower(prop)
		}
		value, important := SplitImportant(part[idx+1:])
		if prop == "" {
			continue
		}
		out = append(out, Declaration{Property: prop, Value: value, Important: important})
	}
	return out
}

// FormatDeclarations is the inverse of ParseDeclarations.
func FormatDeclarations(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

// SplitImportant trims value and strips a trailing !important flag.
func SplitImportant(value string) (string, bool) {
	v := strings.TrimSpace(value)
	lower := strings.ToLower(v)
	if idx := strings.LastIndex(lower, "!"); idx >= 0 {
		if strings.TrimSpace(lower[idx+1:]) == "important" {
			return strings.TrimSpace(v[:idx]), true
		}
	}
	return v, false
}

// SplitTopLevel splits s on sep, ignoring separators nested in parentheses or
// quoted strings.
func SplitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// InlineStyle parses n's style attribute.
func InlineStyle(n *html.Node) []Declaration {
	style, ok := Attr(n, "style")
	if !ok {
		return nil
	}
	return ParseDeclarations(style)
}

// InlineValue returns the last declaration of prop in n's style attribute.
func InlineValue(n *html.Node, prop string) (Declaration, bool) {
	var (
		found Declaration
		ok    bool
	)
	for _, d := range InlineStyle(n) {
		if d.Property == prop {
			found, ok = d, true
		}
	}
	return found, ok
}

// SetDeclaration returns decls with d set. d takes the place of the last
// declaration of its property, the one in effect, and earlier duplicates are
// dropped. A property not yet declared is appended.
func SetDeclaration(decls []Declaration, d Declaration) []Declaration {
	last := -1
	for i, x := range decls {
		if x.Property == d.Property {
			last = i
		}
	}
	if last < 0 {
		return append(decls, d)
	}

	out := make([]Declaration, 0, len(decls))
	for i, x := range decls {
		switch {
		case i == last:
			out = append(out, d)
		case x.Property != d.Property:
			out = append(out, x)
		}
	}
	return out
}

// SetStyleProperty sets one declaration in n's style attribute in place and
// returns the new attribute text.
func (d *Document) SetStyleProperty(n *html.Node, prop, value string, important bool) string {
	decls := SetDeclaration(InlineStyle(n), Declaration{Property: prop, Value: value, Important: important})
	text := FormatDeclarations(decls)
	d.SetAttribute(n, "style", text)
	return text
}

// InheritedValue walks n and its ancestors and returns the first inline
// declaration of prop, together with the element that declared it.
func InheritedValue(n *html.Node, prop string) (Declaration, *html.Node, bool) {
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		if decl, ok := InlineValue(c, prop); ok {
			return decl, c, true
		}
	}
	return Declaration{}, nil, false
}

// rootBlockPattern matches rule blocks whose selector list targets the root
// element (":root" or "html").
var rootBlockPattern = regexp.MustCompile(`(?i)(?:^|[}\s,;])(?::root|html)\s*(?:,[^{}]*)?\{([^{}]*)\}`)

// RootCustomProperties collects custom properties declared for :root or html
// across all <style> elements, later declarations winning.
func (d *Document) RootCustomProperties() map[string]string {
	props := make(map[string]string)
	for _, n := range Elements(d.root) {
		if !IsElement(n, atom.Style) {
			continue
		}
		for _, m := range rootBlockPattern.FindAllStringSubmatch(TextContent(n), -1) {
			for _, decl := range ParseDeclarations(m[1]) {
				if strings.HasPrefix(decl.Property, "--") {
					props[decl.Property] = decl.Value
				}
			}
		}
	}
	if el := d.DocumentElement(); el != nil {
		for _, decl := range InlineStyle(el) {
			if strings.HasPrefix(decl.Property, "--") {
				props[decl.Property] = decl.Value
			}
		}
	}
	return props
}

// Scope resolves custom properties as seen from one element.
type Scope struct {
	doc  *Document
	node *html.Node
	root map[string]string
}

// ScopeOf returns a resolver for custom properties visible at n. A nil n
// resolves against the root element only.
func (d *Document) ScopeOf(n *html.Node) *Scope {
	return &Scope{doc: d, node: n}
}

// ResolveVar returns the computed value of the custom property name (with its
// leading dashes).
func (s *Scope) ResolveVar(name string) (string, bool) {
	if s.node != nil {
		if decl, _, ok := InheritedValue(s.node, name); ok {
			return decl.Value, true
		}
	}
	if s.root == nil {
		s.root = s.doc.RootCustomProperties()
	}
	v, ok := s.root[name]
	return v, ok
}
