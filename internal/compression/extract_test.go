package compression

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const pageHTML = `<html><body style="background: white">hi</body></html>`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func xzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		file        string
		contentType string
		wantFormat  Format
		wantName    string
	}{
		{"gzip by extension", gzipped(t, pageHTML), "page.html.gz", "", FormatGzip, "page.html"},
		{"gzip by content type", gzipped(t, pageHTML), "download", "application/gzip", FormatGzip, "download"},
		{"gzip by magic", gzipped(t, pageHTML), "page.bin", "", FormatGzip, "page.bin"},
		{"xz by extension", xzipped(t, pageHTML), "page.HTML.XZ", "", FormatXz, "page.HTML"},
		{"xz by magic", xzipped(t, pageHTML), "page", "", FormatXz, "page"},
		{"plain", []byte(pageHTML), "page.html", "text/html", FormatNone, "page.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decompress(tt.data, tt.file, tt.contentType, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, res.Format)
			assert.Equal(t, tt.wantName, res.Name)
			assert.Equal(t, pageHTML, string(res.Data))
		})
	}
}

func TestDecompressLimit(t *testing.T) {
	data := gzipped(t, strings.Repeat("a", 1024))
	_, err := Decompress(data, "big.gz", "", 100)
	assert.Error(t, err)
}

func TestDecompressCorrupt(t *testing.T) {
	_, err := Decompress([]byte("not gzip"), "page.gz", "", 0)
	assert.Error(t, err)

	_, err = Decompress([]byte("BZh9 not really"), "page.bz2", "", 0)
	assert.Error(t, err)
}
