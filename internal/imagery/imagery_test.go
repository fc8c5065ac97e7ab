package imagery

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngDataURI(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestIsDataURI(t *testing.T) {
	assert.True(t, IsDataURI("data:image/png;base64,AAAA"))
	assert.True(t, IsDataURI("  DATA:IMAGE/gif;base64,AAAA"))
	assert.False(t, IsDataURI("data:text/plain,hi"))
	assert.False(t, IsDataURI("https://example.com/a.png"))
	assert.False(t, IsDataURI(""))
}

func TestDimDataURI(t *testing.T) {
	uri := pngDataURI(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	out, err := DimDataURI(uri, 0.5)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:image/png;base64,"))

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	got := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{R: 100, G: 50, B: 25, A: 255}, got)
}

func TestDimKeepsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 128})

	got := Dim(src, 0.25).NRGBAAt(0, 0)
	assert.Equal(t, uint8(128), got.A)
	assert.Equal(t, uint8(64), got.R)
}

func TestDimDataURIErrors(t *testing.T) {
	_, err := DimDataURI("data:image/png;base64,!!!", 0.5)
	assert.Error(t, err)

	_, err = DimDataURI("data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("not an image")), 0.5)
	assert.Error(t, err)

	_, err = DimDataURI("data:image/png;base64", 0.5)
	assert.Error(t, err)
}

func TestFilterDeclaration(t *testing.T) {
	assert.Equal(t, "brightness(0.8)", FilterDeclaration(0.8))
	assert.Equal(t, "brightness(1)", FilterDeclaration(3))
	assert.Equal(t, "brightness(0)", FilterDeclaration(-1))
}
