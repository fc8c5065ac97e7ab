// Package stylesheet rewrites the colours of whole stylesheets and inline
// style attribute bodies.
//
// Declarations are found with a tolerant pattern rather than a CSS parser: a
// declaration starts after "{" or ";" (or at the start of an inline style) and
// its value runs to the next ";" or "}". Comments and strings that look like
// declarations are treated as declarations. This mirrors what the rewriter
// needs, which is colour-bearing values, not a CSS object model.
package stylesheet

import (
	"regexp"
	"strings"

	"github.com/jmylchreest/umbra/internal/colour"
	"github.com/jmylchreest/umbra/internal/rewrite"
)

// Marker opens every stylesheet produced by RewriteText. Text that already
// starts with it has been transformed and is returned as is.
const Marker = "/* umbra:dark */"

var (
	sheetDeclPattern  = regexp.MustCompile(`([{;]\s*)(-{0,2}[A-Za-z_][-\w]*)(\s*:\s*)([^;{}]*)`)
	inlineDeclPattern = regexp.MustCompile(`((?:^|;)\s*)(-{0,2}[A-Za-z_][-\w]*)(\s*:\s*)([^;{}]*)`)
)

// Transformer rewrites stylesheet text. It never touches a document; custom
// property lookups go through the optional resolver.
type Transformer struct {
	rw   *rewrite.Rewriter
	vars rewrite.VarResolver
}

// New creates a Transformer. vars may be nil, in which case var() references
// are left alone.
func New(rw *rewrite.Rewriter, vars rewrite.VarResolver) *Transformer {
	return &Transformer{rw: rw, vars: vars}
}

// WithVars returns a copy of the transformer resolving through vars.
func (t *Transformer) WithVars(vars rewrite.VarResolver) *Transformer {
	return &Transformer{rw: t.rw, vars: vars}
}

// IsProcessed reports whether css was produced by RewriteText.
func IsProcessed(css string) bool {
	return strings.HasPrefix(strings.TrimLeft(css, " \t\r\n\ufeff"), Marker)
}

// RewriteText rewrites every colour-bearing declaration of a stylesheet and
// prefixes the result with Marker. Applying it to its own output is a no-op.
func (t *Transformer) RewriteText(css string) string {
	if IsProcessed(css) {
		return css
	}
	return Marker + "\n" + t.rewrite(css, sheetDeclPattern)
}

// RewriteDeclarations rewrites the body of an inline style attribute. No
// marker is added.
func (t *Transformer) RewriteDeclarations(text string) string {
	return t.rewrite(text, inlineDeclPattern)
}

func (t *Transformer) rewrite(css string, pattern *regexp.Regexp) string {
	matches := pattern.FindAllStringSubmatchIndex(css, -1)
	if len(matches) == 0 {
		return css
	}

	var sb strings.Builder
	sb.Grow(len(css))
	last := 0
	for _, m := range matches {
		property := css[m[4]:m[5]]
		valueStart, valueEnd := m[8], m[9]
		value := css[valueStart:valueEnd]

		if !colourBearing(value) {
			continue
		}
		rewritten := t.rw.RewriteValue(property, value, t.vars)
		if rewritten == value {
			continue
		}
		sb.WriteString(css[last:valueStart])
		sb.WriteString(rewritten)
		last = valueEnd
	}
	sb.WriteString(css[last:])
	return sb.String()
}

func colourBearing(value string) bool {
	return colour.ContainsLiteral(value) || strings.Contains(strings.ToLower(value), "var(")
}
