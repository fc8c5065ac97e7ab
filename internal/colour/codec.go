// Package colour provides CSS colour parsing, serialisation and the dark-scheme
// colour policy.
package colour

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a normalised CSS colour. Channels are integers in [0,255] and the
// alpha channel is in [0,1].
type Color struct {
	R int     `json:"r"`
	G int     `json:"g"`
	B int     `json:"b"`
	A float64 `json:"a"`
}

// RGB returns an opaque colour.
func RGB(r, g, b int) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

// RGBA returns a colour with the given alpha.
func RGBA(r, g, b int, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Transparent reports whether the alpha channel is exactly zero.
func (c Color) Transparent() bool {
	return c.A == 0
}

// Sum returns r+g+b.
func (c Color) Sum() int {
	return c.R + c.G + c.B
}

// String serialises the colour as rgb(r,g,b) when opaque and rgba(r,g,b,a)
// otherwise.
func (c Color) String() string {
	if c.A == 1 {
		return "rgb(" + strconv.Itoa(c.R) + "," + strconv.Itoa(c.G) + "," + strconv.Itoa(c.B) + ")"
	}
	return "rgba(" + strconv.Itoa(c.R) + "," + strconv.Itoa(c.G) + "," + strconv.Itoa(c.B) + "," +
		strconv.FormatFloat(c.A, 'f', -1, 64) + ")"
}

// Hex returns the colour as #rrggbb, ignoring alpha.
func (c Color) Hex() string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []int{c.R, c.G, c.B} {
		b[1+i*2] = digits[v>>4]
		b[2+i*2] = digits[v&0xf]
	}
	return string(b)
}

// keywords is the fixed set of named colours the codec understands.
var keywords = map[string]Color{
	"white":   RGB(255, 255, 255),
	"black":   RGB(0, 0, 0),
	"red":     RGB(255, 0, 0),
	"blue":    RGB(0, 0, 255),
	"green":   RGB(0, 128, 0),
	"yellow":  RGB(255, 255, 0),
	"cyan":    RGB(0, 255, 255),
	"magenta": RGB(255, 0, 255),
	"purple":  RGB(128, 0, 128),
	"lime":    RGB(0, 255, 0),
}

// Keyword returns the colour for a named keyword.
func Keyword(name string) (Color, bool) {
	c, ok := keywords[strings.ToLower(name)]
	return c, ok
}

var (
	hexPattern  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	funcPattern = regexp.MustCompile(`^(rgba?|hsla?)\(\s*([^()]*?)\s*\)$`)

	// literalPattern finds colour literals embedded in a larger value.
	literalPattern = regexp.MustCompile(`(?i)(?:rgba?|hsla?)\([^()]*\)|#[0-9a-f]{3,8}\b|\b(?:white|black|red|blue|green|yellow|cyan|magenta|purple|lime)\b`)
)

// Parse converts CSS colour text into a Color. It returns false for anything it
// does not understand (transparent, inherit, currentColor, unsupported colour
// functions, unresolved var() channels), in which case callers leave the text
// untouched.
func Parse(text string) (Color, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return Color{}, false
	}

	if c, ok := keywords[s]; ok {
		return c, true
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}

	m := funcPattern.FindStringSubmatch(s)
	if m == nil {
		return Color{}, false
	}
	args, alpha, ok := splitArgs(m[2])
	if !ok || len(args) != 3 {
		return Color{}, false
	}

	a := 1.0
	if alpha != "" {
		a, ok = parseAlpha(alpha)
		if !ok {
			return Color{}, false
		}
	}

	switch m[1] {
	case "rgb", "rgba":
		var ch [3]int
		for i, arg := range args {
			v, ok := parseChannel(arg)
			if !ok {
				return Color{}, false
			}
			ch[i] = v
		}
		return Color{R: ch[0], G: ch[1], B: ch[2], A: a}, true
	default:
		return parseHSL(args, a)
	}
}

// FindAll returns the [start, end) offsets of every colour literal in text.
func FindAll(text string) [][]int {
	return literalPattern.FindAllStringIndex(text, -1)
}

// ContainsLiteral reports whether text holds at least one colour literal.
func ContainsLiteral(text string) bool {
	return literalPattern.MatchString(text)
}

func parseHex(s string) (Color, bool) {
	if !hexPattern.MatchString(s) {
		return Color{}, false
	}
	h := s[1:]

	// Expand shorthand format (RGB -> RRGGBB, RGBA -> RRGGBBAA).
	if len(h) == 3 || len(h) == 4 {
		long := make([]byte, 0, len(h)*2)
		for i := 0; i < len(h); i++ {
			long = append(long, h[i], h[i])
		}
		h = string(long)
	}

	var v [4]int
	v[3] = 255
	for i := 0; i < len(h)/2; i++ {
		n, err := strconv.ParseUint(h[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, false
		}
		v[i] = int(n)
	}

	a := 1.0
	if v[3] != 255 {
		a = roundAlpha(float64(v[3]) / 255)
	}
	return Color{R: v[0], G: v[1], B: v[2], A: a}, true
}

// splitArgs accepts both the comma syntax (rgb(1, 2, 3, 0.5)) and the space
// syntax (rgb(1 2 3 / 50%)).
func splitArgs(body string) (args []string, alpha string, ok bool) {
	if strings.Contains(body, ",") {
		for _, part := range strings.Split(body, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				return nil, "", false
			}
			args = append(args, part)
		}
		switch len(args) {
		case 3:
			return args, "", true
		case 4:
			return args[:3], args[3], true
		default:
			return nil, "", false
		}
	}

	main := body
	if idx := strings.Index(body, "/"); idx >= 0 {
		main = body[:idx]
		alpha = strings.TrimSpace(body[idx+1:])
		if alpha == "" {
			return nil, "", false
		}
	}
	args = strings.Fields(main)
	return args, alpha, len(args) == 3
}

func parseChannel(s string) (int, bool) {
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		return clamp(int(math.Round(f*255/100)), 0, 255), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return clamp(int(math.Round(f)), 0, 255), true
}

func parseAlpha(s string) (float64, bool) {
	pct := strings.HasSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		f /= 100
	}
	return math.Max(0, math.Min(1, f)), true
}

func parseHSL(args []string, a float64) (Color, bool) {
	h, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "deg"), 64)
	if err != nil {
		return Color{}, false
	}
	s, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
	if err != nil {
		return Color{}, false
	}
	l, err := strconv.ParseFloat(strings.TrimSuffix(args[2], "%"), 64)
	if err != nil {
		return Color{}, false
	}

	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	s = math.Max(0, math.Min(1, s/100))
	l = math.Max(0, math.Min(1, l/100))

	r, g, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return Color{R: int(r), G: int(g), B: int(b), A: a}, true
}

// roundAlpha keeps hex-derived alpha values short when serialised.
func roundAlpha(a float64) float64 {
	return math.Round(a*1000) / 1000
}

// clamp restricts a value to a given range.
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
