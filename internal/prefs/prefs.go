// Package prefs defines the user preferences that drive the engine and the
// key-value stores they are persisted in.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/umbra/internal/colour"
)

// Preference keys as stored.
const (
	KeyIsActive             = "isActive"
	KeyColorThreshold       = "colorThreshold"
	KeyColorGoalThreshold   = "colorGoalThreshold"
	KeyLuminanceThreshold   = "luminanceThreshold"
	KeyImageBrightness      = "imageBrightness"
	KeyBlacklist            = "blacklist"
	KeyStylesheetParserMode = "stylesheetParserMode"
)

// Keys lists every preference key in display order.
var Keys = []string{
	KeyIsActive,
	KeyColorThreshold,
	KeyColorGoalThreshold,
	KeyLuminanceThreshold,
	KeyImageBrightness,
	KeyBlacklist,
	KeyStylesheetParserMode,
}

// ErrUnknownKey is returned for keys that are not preferences.
var ErrUnknownKey = errors.New("unknown preference key")

// ParserMode selects what the engine sweeps.
type ParserMode int

const (
	// ParserModeComputed rewrites per-element colours only.
	ParserModeComputed ParserMode = 0
	// ParserModeStylesheet additionally rewrites <style> and linked sheets.
	ParserModeStylesheet ParserMode = 1
)

// String returns the mode name.
func (m ParserMode) String() string {
	switch m {
	case ParserModeComputed:
		return "computed"
	case ParserModeStylesheet:
		return "stylesheet"
	default:
		return fmt.Sprintf("ParserMode(%d)", int(m))
	}
}

// Preferences are read once when a page is loaded and never change for its
// lifetime.
type Preferences struct {
	IsActive             bool       `json:"isActive"`
	ColorThreshold       float64    `json:"colorThreshold"`
	ColorGoalThreshold   float64    `json:"colorGoalThreshold"`
	LuminanceThreshold   float64    `json:"luminanceThreshold"`
	ImageBrightness      float64    `json:"imageBrightness"`
	Blacklist            []string   `json:"blacklist"`
	StylesheetParserMode ParserMode `json:"stylesheetParserMode"`
}

// Defaults returns the preferences of a fresh install.
func Defaults() Preferences {
	th := colour.DefaultThresholds()
	return Preferences{
		IsActive:             false,
		ColorThreshold:       th.ColorThreshold,
		ColorGoalThreshold:   th.ColorGoalThreshold,
		LuminanceThreshold:   th.LuminanceThreshold,
		ImageBrightness:      1,
		Blacklist:            nil,
		StylesheetParserMode: ParserModeComputed,
	}
}

// Thresholds returns the colour policy thresholds.
func (p Preferences) Thresholds() colour.Thresholds {
	return colour.Thresholds{
		ColorThreshold:     p.ColorThreshold,
		ColorGoalThreshold: p.ColorGoalThreshold,
		LuminanceThreshold: p.LuminanceThreshold,
	}
}

// Blacklisted reports whether hostname is in the blacklist. A "www." prefix on
// either side is ignored.
func (p Preferences) Blacklisted(hostname string) bool {
	host := normaliseHost(hostname)
	if host == "" {
		return false
	}
	for _, h := range p.Blacklist {
		if normaliseHost(h) == host {
			return true
		}
	}
	return false
}

// Allows reports whether the engine may run on hostname, and why not.
func (p Preferences) Allows(hostname string) (bool, string) {
	if !p.IsActive {
		return false, "inactive"
	}
	if p.Blacklisted(hostname) {
		return false, "blacklisted"
	}
	return true, ""
}

// Values returns the preferences in stored form.
func (p Preferences) Values() map[string]string {
	return map[string]string{
		KeyIsActive:             strconv.FormatBool(p.IsActive),
		KeyColorThreshold:       formatFloat(p.ColorThreshold),
		KeyColorGoalThreshold:   formatFloat(p.ColorGoalThreshold),
		KeyLuminanceThreshold:   formatFloat(p.LuminanceThreshold),
		KeyImageBrightness:      formatFloat(p.ImageBrightness),
		KeyBlacklist:            FormatBlacklist(p.Blacklist),
		KeyStylesheetParserMode: strconv.Itoa(int(p.StylesheetParserMode)),
	}
}

// ParseBlacklist splits a comma-joined hostname list into an ordered set.
func ParseBlacklist(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		host := strings.ToLower(strings.TrimSpace(part))
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		out = append(out, host)
	}
	return out
}

// FormatBlacklist joins hostnames with commas.
func FormatBlacklist(hosts []string) string {
	return strings.Join(hosts, ",")
}

// Load reads every preference from store. Missing keys take their default;
// malformed values are logged and also take their default.
func Load(ctx context.Context, store Store, logger hclog.Logger) (Preferences, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	values, err := store.Get(ctx, Keys...)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to read preferences: %w", err)
	}

	p := Defaults()
	for _, key := range Keys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		if err := p.apply(key, raw); err != nil {
			logger.Warn("ignoring stored preference", "key", key, "value", raw, "error", err)
		}
	}
	return p, nil
}

// Validate checks that value is acceptable for key.
func Validate(key, value string) error {
	p := Defaults()
	return p.apply(key, value)
}

func (p *Preferences) apply(key, raw string) error {
	raw = strings.TrimSpace(raw)
	switch key {
	case KeyIsActive:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		p.IsActive = v
	case KeyColorThreshold:
		v, err := parseRange(key, raw, 0, 255)
		if err != nil {
			return err
		}
		p.ColorThreshold = v
	case KeyColorGoalThreshold:
		v, err := parseRange(key, raw, 0, 765)
		if err != nil {
			return err
		}
		p.ColorGoalThreshold = v
	case KeyLuminanceThreshold:
		v, err := parseRange(key, raw, 0, 1)
		if err != nil {
			return err
		}
		p.LuminanceThreshold = v
	case KeyImageBrightness:
		v, err := parseRange(key, raw, 0, 1)
		if err != nil {
			return err
		}
		p.ImageBrightness = v
	case KeyBlacklist:
		p.Blacklist = ParseBlacklist(raw)
	case KeyStylesheetParserMode:
		v, err := strconv.Atoi(raw)
		if err != nil || (v != int(ParserModeComputed) && v != int(ParserModeStylesheet)) {
			return fmt.Errorf("%s must be 0 or 1, got %q", key, raw)
		}
		p.StylesheetParserMode = ParserMode(v)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func parseRange(key, raw string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %s and %s, got %s", key, formatFloat(lo), formatFloat(hi), raw)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func normaliseHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	return strings.TrimPrefix(h, "www.")
}
