// Package rewrite applies the dark-scheme colour policy to single CSS property
// values.
package rewrite

import (
	"strings"

	"github.com/jmylchreest/umbra/internal/colour"
)

// Entry configures how one property is rewritten.
type Entry struct {
	// Property is the kebab-case CSS property name.
	Property string `json:"property"`

	// Goal is the colour goal for the property's whole-value colours.
	Goal colour.Goal `json:"colorGoal"`

	// ChangeDefault forces inversion of a value equal to DefaultValue even when
	// the policy would leave it alone.
	ChangeDefault bool `json:"changeDefault"`

	// DefaultValue is the value an element has when nothing sets the property.
	DefaultValue string `json:"defaultValue"`
}

// Gradients reports whether the property may hold gradient images.
func (e Entry) Gradients() bool {
	return e.Property == "background-image" || e.Property == "background"
}

// IsDefault reports whether value is the property's default value.
func (e Entry) IsDefault(value string) bool {
	if e.DefaultValue == "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(value), e.DefaultValue) {
		return true
	}
	want, ok := colour.Parse(e.DefaultValue)
	if !ok {
		return false
	}
	got, ok := colour.Parse(value)
	return ok && got == want
}

// Table is an ordered property goal table.
type Table []Entry

// DefaultTable returns the built-in table.
func DefaultTable() Table {
	return Table{
		{Property: "color", Goal: colour.GoalLight, ChangeDefault: false, DefaultValue: "rgb(0, 0, 0)"},
		{Property: "background-color", Goal: colour.GoalDark, ChangeDefault: false, DefaultValue: "rgba(0, 0, 0, 0)"},
		{Property: "background-image", Goal: colour.GoalInvert, ChangeDefault: false, DefaultValue: "none"},
		{Property: "background", Goal: colour.GoalDark, ChangeDefault: false, DefaultValue: "rgba(0, 0, 0, 0)"},
	}
}

// Lookup returns the entry for property. Properties that are not in the table
// get a background-goal entry with no default.
func (t Table) Lookup(property string) (Entry, bool) {
	p := strings.ToLower(strings.TrimSpace(property))
	for _, e := range t {
		if e.Property == p {
			return e, true
		}
	}
	return Entry{Property: p, Goal: colour.GoalDark}, false
}
