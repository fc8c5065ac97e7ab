// Package compression decompresses page inputs that arrive gzip, xz or bzip2
// compressed.
package compression

import (
	"bytes"
	"strings"
)

// DefaultMaxBytes bounds decompressed output.
const DefaultMaxBytes = 64 * 1024 * 1024

// Format is a supported compression format.
type Format string

const (
	FormatNone  Format = ""
	FormatGzip  Format = "gzip"
	FormatXz    Format = "xz"
	FormatBzip2 Format = "bzip2"
)

var suffixes = map[Format][]string{
	FormatGzip:  {".gz", ".gzip"},
	FormatXz:    {".xz"},
	FormatBzip2: {".bz2", ".bzip2"},
}

// Result is decompressed input.
type Result struct {
	// Data is the decompressed content.
	Data []byte
	// Name is the input name with the compression suffix removed.
	Name string
	// Format is the detected format, FormatNone for plain input.
	Format Format
}

// Decompress detects the format of data and decompresses it. Detection tries
// the Content-Type first, then the name's extension, then the magic bytes.
// Plain input is returned as is.
func Decompress(data []byte, name, contentType string, maxBytes int64) (*Result, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	format := detectByContentType(contentType)
	if format == FormatNone {
		format = detectByExtension(name)
	}
	if format == FormatNone {
		format = detectByMagic(data)
	}

	result := &Result{Name: trimSuffix(name, format), Format: format}

	var err error
	switch format {
	case FormatGzip:
		result.Data, err = decompressGz(data, maxBytes)
	case FormatXz:
		result.Data, err = decompressXz(data, maxBytes)
	case FormatBzip2:
		result.Data, err = decompressBz2(data, maxBytes)
	default:
		result.Data = data
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// detectByContentType maps an HTTP Content-Type header to a format.
func detectByContentType(contentType string) Format {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/gzip") || strings.Contains(ct, "application/x-gzip"):
		return FormatGzip
	case strings.Contains(ct, "application/x-xz"):
		return FormatXz
	case strings.Contains(ct, "application/x-bzip2"):
		return FormatBzip2
	}
	return FormatNone
}

func detectByExtension(name string) Format {
	lower := strings.ToLower(name)
	for format, exts := range suffixes {
		for _, ext := range exts {
			if strings.HasSuffix(lower, ext) {
				return format
			}
		}
	}
	return FormatNone
}

func detectByMagic(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return FormatGzip
	case bytes.HasPrefix(data, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		return FormatXz
	case bytes.HasPrefix(data, []byte("BZh")):
		return FormatBzip2
	}
	return FormatNone
}

func trimSuffix(name string, format Format) string {
	lower := strings.ToLower(name)
	for _, ext := range suffixes[format] {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
