package colour

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideBlackTextBecomesWhite(t *testing.T) {
	c, _ := Parse("rgb(0,0,0)")
	got := Decide(c, GoalLight, DefaultThresholds())
	assert.Equal(t, "rgb(255,255,255)", got.String())
}

func TestDecideRedAccentUnchanged(t *testing.T) {
	c, _ := Parse("rgb(200,30,30)")
	assert.Less(t, Luminance(c), 0.5)
	assert.Equal(t, c, Decide(c, GoalLight, DefaultThresholds()))
	assert.Equal(t, c, Decide(c, GoalDark, DefaultThresholds()))
}

func TestDecideTransparentNeverChanges(t *testing.T) {
	colours := []Color{
		RGBA(0, 0, 0, 0),
		RGBA(255, 255, 255, 0),
		RGBA(200, 30, 30, 0),
	}
	for _, c := range colours {
		for _, goal := range []Goal{GoalDark, GoalLight, GoalInvert} {
			assert.Equal(t, c, Decide(c, goal, DefaultThresholds()), "colour %v goal %v", c, goal)
		}
	}
}

func TestDecideInvertIsInvolution(t *testing.T) {
	th := DefaultThresholds()
	for r := 0; r <= 255; r += 17 {
		for g := 0; g <= 255; g += 51 {
			for b := 0; b <= 255; b += 85 {
				for _, a := range []float64{1, 0.5, 0} {
					c := RGBA(r, g, b, a)
					assert.Equal(t, c, Decide(Decide(c, GoalInvert, th), GoalInvert, th))
				}
			}
		}
	}
}

func TestIsGrayscaleForEqualChannels(t *testing.T) {
	for v := 0; v <= 255; v++ {
		assert.True(t, IsGrayscale(RGB(v, v, v), 50))
	}
	assert.False(t, IsGrayscale(RGB(200, 30, 30), 50))
	// Exactly on the threshold is not grayscale.
	assert.False(t, IsGrayscale(RGB(100, 150, 100), 50))
	assert.True(t, IsGrayscale(RGB(100, 149, 100), 50))
}

func TestDecideGoalThresholdBoundary(t *testing.T) {
	th := DefaultThresholds()

	// Sum 382: distance from 0 is exactly the threshold.
	onBoundary := RGB(128, 127, 127)
	assert.Equal(t, onBoundary, Decide(onBoundary, GoalDark, th))

	// Sum 383: one unit past.
	past := RGB(128, 128, 127)
	assert.Equal(t, RGB(127, 127, 128), Decide(past, GoalDark, th))
}

func TestDecideLuminanceBoundary(t *testing.T) {
	c := RGB(250, 200, 20)
	lum := Luminance(c)

	th := DefaultThresholds()
	th.LuminanceThreshold = lum
	assert.Equal(t, c, Decide(c, GoalDark, th))

	th.LuminanceThreshold = lum - 1e-9
	got := Decide(c, GoalDark, th)
	assert.NotEqual(t, c, got)
	assert.Equal(t, Scale(c, th.LuminanceThreshold), got)
}

func TestDecideDimsBrightColours(t *testing.T) {
	c := RGB(255, 255, 0)
	got := Decide(c, GoalDark, DefaultThresholds())
	assert.Equal(t, RGB(128, 128, 0), got)
	assert.InDelta(t, Luminance(c)*0.5, Luminance(got), 0.01)
}

func TestDecideLeavesCorrectGrays(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, RGB(30, 30, 30), Decide(RGB(30, 30, 30), GoalDark, th))
	assert.Equal(t, RGB(235, 235, 235), Decide(RGB(235, 235, 235), GoalLight, th))
	assert.Equal(t, RGB(0, 0, 0), Decide(RGB(255, 255, 255), GoalDark, th))
}

func TestParseGoal(t *testing.T) {
	for _, g := range []Goal{GoalDark, GoalLight, GoalInvert} {
		parsed, ok := ParseGoal(g.String())
		assert.True(t, ok)
		assert.Equal(t, g, parsed)
	}
	_, ok := ParseGoal("800")
	assert.False(t, ok)
}
