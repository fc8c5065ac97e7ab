package colour

import (
	"math"
	"strconv"
)

// Goal is the ideal r+g+b sum a property should have in a dark scheme, or
// GoalInvert for unconditional inversion.
type Goal int

const (
	// GoalDark is the goal for backgrounds: as close to black as possible.
	GoalDark Goal = 0

	// GoalLight is the goal for foregrounds: as close to white as possible.
	GoalLight Goal = 765

	// GoalInvert inverts every channel regardless of brightness. Used for
	// decorative colours such as gradient stops.
	GoalInvert Goal = -1
)

// String returns the goal as it appears in configuration ("0", "765", "invert").
func (g Goal) String() string {
	if g == GoalInvert {
		return "invert"
	}
	return strconv.Itoa(int(g))
}

// ParseGoal is the inverse of Goal.String.
func ParseGoal(s string) (Goal, bool) {
	if s == "invert" {
		return GoalInvert, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 765 {
		return 0, false
	}
	return Goal(n), true
}

// Thresholds tunes Decide. See the preference keys of the same names.
type Thresholds struct {
	// ColorThreshold is the largest pairwise channel difference (exclusive)
	// for which a colour still counts as grayscale.
	ColorThreshold float64 `json:"colorThreshold"`

	// ColorGoalThreshold is how far (exclusive) a grayscale colour's channel
	// sum may be from the goal before it is inverted.
	ColorGoalThreshold float64 `json:"colorGoalThreshold"`

	// LuminanceThreshold is the luminance above which full colours are dimmed,
	// and the factor they are dimmed by.
	LuminanceThreshold float64 `json:"luminanceThreshold"`
}

// DefaultThresholds returns the preference defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ColorThreshold:     50,
		ColorGoalThreshold: 382,
		LuminanceThreshold: 0.5,
	}
}

// Decide returns the dark-scheme replacement for c.
//
// Fully transparent colours are never changed. GoalInvert inverts
// unconditionally. For numeric goals, grayscale colours are inverted when
// their channel sum is further than ColorGoalThreshold from the goal, and full
// colours brighter than LuminanceThreshold are scaled by it. All comparisons
// are strict; a value exactly on a threshold stays as it is.
func Decide(c Color, goal Goal, th Thresholds) Color {
	if c.Transparent() {
		return c
	}

	if goal == GoalInvert {
		return Invert(c)
	}

	if IsGrayscale(c, th.ColorThreshold) {
		distance := math.Abs(float64(int(goal) - c.Sum()))
		if distance > th.ColorGoalThreshold {
			return Invert(c)
		}
		return c
	}

	if Luminance(c) > th.LuminanceThreshold {
		return Scale(c, th.LuminanceThreshold)
	}
	return c
}

// IsGrayscale reports whether every pairwise channel difference is below
// threshold.
func IsGrayscale(c Color, threshold float64) bool {
	return math.Abs(float64(c.R-c.G)) < threshold &&
		math.Abs(float64(c.R-c.B)) < threshold &&
		math.Abs(float64(c.G-c.B)) < threshold
}

// Luminance returns 0.2126R + 0.7152G + 0.0722B over channels normalised to
// [0,1]. Unlike the WCAG definition no gamma correction is applied.
func Luminance(c Color) float64 {
	return 0.2126*float64(c.R)/255.0 + 0.7152*float64(c.G)/255.0 + 0.0722*float64(c.B)/255.0
}

// Invert returns (255-r, 255-g, 255-b) with alpha unchanged.
func Invert(c Color) Color {
	return Color{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B, A: c.A}
}

// Scale multiplies every channel by factor, rounding to the nearest integer.
func Scale(c Color, factor float64) Color {
	scale := func(v int) int {
		return clamp(int(math.Round(float64(v)*factor)), 0, 255)
	}
	return Color{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
}
