// Package imagery dims images for the dark scheme.
package imagery

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format
	_ "image/jpeg" // Register JPEG format
	"image/png"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP format
)

// MaxPixels bounds the size of images decoded from data URIs.
const MaxPixels = 4096 * 4096

// IsDataURI reports whether src is an inline data: image.
func IsDataURI(src string) bool {
	s := strings.TrimSpace(src)
	return len(s) > 11 && strings.EqualFold(s[:11], "data:image/")
}

// DimDataURI decodes an inline image, scales its colour channels by
// brightness and returns it re-encoded as a PNG data URI. Alpha is kept.
func DimDataURI(uri string, brightness float64) (string, error) {
	data, err := decodeDataURI(uri)
	if err != nil {
		return "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported or invalid image format: %w", err)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return "", fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image (format: %s): %w", format, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Dim(img, brightness)); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Dim returns a copy of img with every colour channel multiplied by
// brightness, clamped to [0, 1].
func Dim(img image.Image, brightness float64) *image.NRGBA {
	b := clamp(brightness)
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			c := dst.NRGBAAt(x, y)
			dst.SetNRGBA(x, y, color.NRGBA{
				R: scale(c.R, b),
				G: scale(c.G, b),
				B: scale(c.B, b),
				A: c.A,
			})
		}
	}
	return dst
}

// FilterDeclaration is the CSS filter value applying brightness.
func FilterDeclaration(brightness float64) string {
	return "brightness(" + strconv.FormatFloat(clamp(brightness), 'f', -1, 64) + ")"
}

func decodeDataURI(uri string) ([]byte, error) {
	s := strings.TrimSpace(uri)
	if !IsDataURI(s) {
		return nil, fmt.Errorf("not an image data URI")
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: missing payload")
	}

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to unescape payload: %w", err)
	}
	return []byte(data), nil
}

func scale(v uint8, b float64) uint8 {
	return uint8(float64(v)*b + 0.5)
}

func clamp(b float64) float64 {
	switch {
	case b < 0:
		return 0
	case b > 1:
		return 1
	default:
		return b
	}
}
