package colour

import (
	"fmt"
	"math"
	"strings"
)

// RelativeLuminance returns the WCAG 2.0 relative luminance of c, between 0
// (darkest) and 1 (lightest). Unlike Luminance the channels are gamma
// corrected first, so the result is only used for reporting contrast.
// https://www.w3.org/TR/WCAG20/#relativeluminancedef.
func RelativeLuminance(c Color) float64 {
	return 0.2126*linearise(c.R) + 0.7152*linearise(c.G) + 0.0722*linearise(c.B)
}

func linearise(channel int) float64 {
	v := float64(channel) / 255.0
	if v <= 0.03928 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// ContrastRatio returns the WCAG 2.0 contrast ratio between two colours,
// from 1 (identical) to 21 (black on white). Alpha is ignored.
// https://www.w3.org/TR/WCAG20/#contrast-ratiodef.
func ContrastRatio(a, b Color) float64 {
	l1 := RelativeLuminance(a)
	l2 := RelativeLuminance(b)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

// ANSI escape codes for 24-bit terminal colours.
const (
	ansiReset    = "\033[0m"
	ansiFgPrefix = "\033[38;2;"
	ansiBgPrefix = "\033[48;2;"
	defaultWidth = 8
)

// Swatch returns a solid block of c, width cells wide, with text centred on
// it in black or white, whichever contrasts more.
func Swatch(c Color, text string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	fg := RGB(255, 255, 255)
	if ContrastRatio(c, RGB(0, 0, 0)) > ContrastRatio(c, fg) {
		fg = RGB(0, 0, 0)
	}

	if len(text) > width {
		text = text[:width]
	}
	pad := (width - len(text)) / 2
	text = strings.Repeat(" ", pad) + text + strings.Repeat(" ", width-len(text)-pad)

	return fmt.Sprintf("%s%d;%d;%dm%s%d;%d;%dm%s%s",
		ansiBgPrefix, c.R, c.G, c.B,
		ansiFgPrefix, fg.R, fg.G, fg.B,
		text, ansiReset)
}
