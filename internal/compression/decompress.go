package compression

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"

	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/umbra/internal/security"
)

// decompressGz decompresses a gzip stream.
func decompressGz(data []byte, maxBytes int64) ([]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	out, err := security.ReadAllLimited(gzr, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip input: %w", err)
	}
	return out, nil
}

// decompressXz decompresses an xz stream.
func decompressXz(data []byte, maxBytes int64) ([]byte, error) {
	xzr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create xz reader: %w", err)
	}

	out, err := security.ReadAllLimited(xzr, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress xz input: %w", err)
	}
	return out, nil
}

// decompressBz2 decompresses a bzip2 stream.
func decompressBz2(data []byte, maxBytes int64) ([]byte, error) {
	bzr := bzip2.NewReader(bytes.NewReader(data))

	out, err := security.ReadAllLimited(bzr, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress bzip2 input: %w", err)
	}
	return out, nil
}
