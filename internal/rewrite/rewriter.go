package rewrite

import (
	"strings"

	"github.com/jmylchreest/umbra/internal/colour"
)

// maxVarDepth bounds nested var() expansion so reference cycles terminate.
const maxVarDepth = 8

// VarResolver looks up the computed value of a CSS custom property. Names
// include the leading "--".
type VarResolver interface {
	ResolveVar(name string) (string, bool)
}

// Rewriter rewrites property values with a fixed goal table and thresholds.
type Rewriter struct {
	table      Table
	thresholds colour.Thresholds
}

// New creates a Rewriter.
func New(table Table, th colour.Thresholds) *Rewriter {
	return &Rewriter{table: table, thresholds: th}
}

// Table returns the goal table.
func (r *Rewriter) Table() Table {
	return r.table
}

// Thresholds returns the policy thresholds.
func (r *Rewriter) Thresholds() colour.Thresholds {
	return r.thresholds
}

// RewriteValue returns the dark-scheme version of value for property. Values
// that hold no colour, or only colours that already suit the goal, are
// returned unchanged byte for byte.
func (r *Rewriter) RewriteValue(property, value string, vars VarResolver) string {
	entry, _ := r.table.Lookup(property)
	return r.RewriteEntry(entry, value, vars)
}

// RewriteEntry is RewriteValue with an explicit table entry.
func (r *Rewriter) RewriteEntry(e Entry, value string, vars VarResolver) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}
	lead := value[:strings.Index(value, trimmed)]
	trail := value[len(lead)+len(trimmed):]

	body, important := splitImportant(trimmed)
	expanded, complete := ExpandVars(body, vars)

	var out string
	if e.Gradients() && strings.Contains(strings.ToLower(expanded), "gradient") {
		out = r.rewriteEmbedded(expanded)
	} else {
		if !complete {
			return value
		}
		out = r.rewriteWhole(e, expanded)
	}

	if out == expanded {
		return value
	}
	if important {
		out += " !important"
	}
	return lead + out + trail
}

// DecideColor applies the policy for an entry to one parsed colour, including
// the ChangeDefault override.
func (r *Rewriter) DecideColor(e Entry, c colour.Color, isDefault bool) colour.Color {
	if c.Transparent() {
		return c
	}
	if e.ChangeDefault && isDefault {
		return colour.Invert(c)
	}
	return colour.Decide(c, e.Goal, r.thresholds)
}

func (r *Rewriter) rewriteWhole(e Entry, value string) string {
	c, ok := colour.Parse(value)
	if !ok {
		return value
	}
	decided := r.DecideColor(e, c, e.IsDefault(value))
	if decided == c {
		return value
	}
	return decided.String()
}

// rewriteEmbedded inverts every colour literal in a gradient value. Literals
// inside url() or unresolved var() references are left alone.
func (r *Rewriter) rewriteEmbedded(value string) string {
	protected := protectedSpans(value)

	var sb strings.Builder
	last := 0
	for _, loc := range colour.FindAll(value) {
		start, end := loc[0], loc[1]
		if overlaps(protected, start, end) || partOfIdentifier(value, start, end) {
			continue
		}
		c, ok := colour.Parse(value[start:end])
		if !ok {
			continue
		}
		decided := colour.Decide(c, colour.GoalInvert, r.thresholds)
		if decided == c {
			continue
		}
		sb.WriteString(value[last:start])
		sb.WriteString(decided.String())
		last = end
	}
	if last == 0 {
		return value
	}
	sb.WriteString(value[last:])
	return sb.String()
}

// ExpandVars replaces var(--name[, fallback]) references with their resolved
// values. complete is false when at least one reference could not be resolved;
// such references are left in place.
func ExpandVars(value string, vars VarResolver) (expanded string, complete bool) {
	return expandVars(value, vars, 0)
}

func expandVars(value string, vars VarResolver, depth int) (string, bool) {
	lower := strings.ToLower(value)
	if !strings.Contains(lower, "var(") {
		return value, true
	}
	if depth >= maxVarDepth {
		return value, false
	}

	var sb strings.Builder
	complete := true
	i := 0
	for {
		idx := strings.Index(lower[i:], "var(")
		if idx < 0 {
			sb.WriteString(value[i:])
			break
		}
		start := i + idx
		open := start + len("var(")
		end := matchParen(value, open)
		if end < 0 {
			sb.WriteString(value[i:])
			complete = false
			break
		}
		sb.WriteString(value[i:start])

		name, fallback, hasFallback := splitVarArgs(value[open:end])
		resolved, ok := "", false
		if vars != nil && name != "" {
			resolved, ok = vars.ResolveVar(name)
		}
		if !ok && hasFallback {
			resolved, ok = fallback, true
		}
		if ok {
			inner, innerComplete := expandVars(strings.TrimSpace(resolved), vars, depth+1)
			if innerComplete {
				sb.WriteString(inner)
			} else {
				sb.WriteString(value[start : end+1])
				complete = false
			}
		} else {
			sb.WriteString(value[start : end+1])
			complete = false
		}
		i = end + 1
	}
	return sb.String(), complete
}

// matchParen returns the index of the ')' closing the group whose content
// starts at open, or -1.
func matchParen(s string, open int) int {
	depth := 1
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func splitVarArgs(args string) (name, fallback string, hasFallback bool) {
	depth := 0
	for j := 0; j < len(args); j++ {
		switch args[j] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(args[:j]), strings.TrimSpace(args[j+1:]), true
			}
		}
	}
	return strings.TrimSpace(args), "", false
}

func protectedSpans(value string) [][2]int {
	var spans [][2]int
	lower := strings.ToLower(value)
	for _, fn := range []string{"url(", "var("} {
		i := 0
		for {
			idx := strings.Index(lower[i:], fn)
			if idx < 0 {
				break
			}
			start := i + idx
			end := matchParen(value, start+len(fn))
			if end < 0 {
				spans = append(spans, [2]int{start, len(value)})
				break
			}
			spans = append(spans, [2]int{start, end + 1})
			i = end + 1
		}
	}
	return spans
}

func overlaps(spans [][2]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// partOfIdentifier rejects keyword matches such as "red" in "dark-red".
func partOfIdentifier(value string, start, end int) bool {
	if value[start] == '#' || strings.HasSuffix(value[start:end], ")") {
		return false
	}
	isIdent := func(b byte) bool {
		return b == '-' || b == '_' || b == '.'
	}
	return (start > 0 && isIdent(value[start-1])) || (end < len(value) && isIdent(value[end]))
}

func splitImportant(value string) (string, bool) {
	lower := strings.ToLower(value)
	if idx := strings.LastIndex(lower, "!"); idx >= 0 {
		if strings.TrimSpace(lower[idx+1:]) == "important" {
			return strings.TrimSpace(value[:idx]), true
		}
	}
	return value, false
}
