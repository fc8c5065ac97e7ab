package stylesheet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/umbra/internal/colour"
	"github.com/jmylchreest/umbra/internal/rewrite"
)

type mapResolver map[string]string

func (m mapResolver) ResolveVar(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func newTransformer(vars rewrite.VarResolver) *Transformer {
	return New(rewrite.New(rewrite.DefaultTable(), colour.DefaultThresholds()), vars)
}

const siteCSS = `body { color: #000; background-color: #ffffff; margin: 0 }
a:hover { color: rgb(0, 0, 238) }
.hero {
  background-image: linear-gradient(135deg, white 0%, #eee 100%);
  border: 1px solid black;
}
.muted{color:rgb(200,30,30);font-size:12px}
@media (max-width: 600px) { .card { background: #fafafa !important; } }
.ghost { background-color: transparent; color: inherit }
.themed { color: var(--text) }`

func TestRewriteText(t *testing.T) {
	tr := newTransformer(mapResolver{"--text": "#222"})
	got := tr.RewriteText(siteCSS)

	assert.True(t, strings.HasPrefix(got, Marker+"\n"))

	expectContains := []string{
		"body { color: rgb(255,255,255); background-color: rgb(0,0,0); margin: 0 }",
		"a:hover { color: rgb(0, 0, 238) }",
		"background-image: linear-gradient(135deg, rgb(0,0,0) 0%, rgb(17,17,17) 100%);",
		"border: 1px solid black;",
		".muted{color:rgb(200,30,30);font-size:12px}",
		"@media (max-width: 600px) { .card { background: rgb(5,5,5) !important; } }",
		".ghost { background-color: transparent; color: inherit }",
		".themed { color: rgb(221,221,221) }",
	}
	for _, want := range expectContains {
		assert.Contains(t, got, want)
	}
}

func TestRewriteTextIsIdempotent(t *testing.T) {
	tr := newTransformer(nil)
	inputs := []string{
		siteCSS,
		"",
		".x { background: linear-gradient(red, blue) }",
		"p{color:#333}",
	}
	for _, in := range inputs {
		once := tr.RewriteText(in)
		assert.Equal(t, once, tr.RewriteText(once))
	}
}

func TestRewriteTextLeavesNonColourDeclarations(t *testing.T) {
	tr := newTransformer(nil)
	css := ".a { margin: 0 auto; font: 12px/1.5 sans-serif; content: \"x\" }"
	assert.Equal(t, Marker+"\n"+css, tr.RewriteText(css))
}

func TestRewriteTextGradient(t *testing.T) {
	tr := newTransformer(nil)
	got := tr.RewriteText(".x { background-image: linear-gradient(red, blue) }")
	assert.Contains(t, got, "linear-gradient(rgb(0,255,255), rgb(255,255,0))")
}

func TestRewriteDeclarations(t *testing.T) {
	tr := newTransformer(nil)

	assert.Equal(t,
		"color: rgb(255,255,255); background-color: rgb(0,0,0) !important; padding: 4px",
		tr.RewriteDeclarations("color: black; background-color: white !important; padding: 4px"))
	assert.Equal(t, "", tr.RewriteDeclarations(""))
	assert.False(t, IsProcessed(tr.RewriteDeclarations("color: black")))
}

func TestIsProcessed(t *testing.T) {
	assert.True(t, IsProcessed(Marker+"\nbody{}"))
	assert.True(t, IsProcessed("\n  "+Marker))
	assert.False(t, IsProcessed("body{}"))
}
