package colour

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContrastRatio(t *testing.T) {
	black := RGB(0, 0, 0)
	white := RGB(255, 255, 255)

	assert.InDelta(t, 21.0, ContrastRatio(black, white), 0.001)
	assert.InDelta(t, 21.0, ContrastRatio(white, black), 0.001)
	assert.InDelta(t, 1.0, ContrastRatio(white, white), 0.001)

	// #777 on white is just below the AA threshold for normal text.
	assert.Less(t, ContrastRatio(RGB(0x77, 0x77, 0x77), white), 4.5)
}

func TestRelativeLuminanceIsGammaCorrected(t *testing.T) {
	grey := RGB(128, 128, 128)
	assert.InDelta(t, 0.502, Luminance(grey), 0.001)
	assert.InDelta(t, 0.216, RelativeLuminance(grey), 0.001)
}

func TestSwatch(t *testing.T) {
	got := Swatch(RGB(255, 255, 255), "ab", 6)
	assert.Equal(t, "\033[48;2;255;255;255m\033[38;2;0;0;0m  ab  \033[0m", got)

	got = Swatch(RGB(0, 0, 0), "toolong", 3)
	assert.Equal(t, "\033[48;2;0;0;0m\033[38;2;255;255;255mtoo\033[0m", got)

	assert.Contains(t, Swatch(RGB(1, 2, 3), "", 0), "        ")
}
