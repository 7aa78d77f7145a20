package fetcher

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
)

// DecompressBody decompresses gzip- or Brotli-encoded response bodies.
// Detection is by magic bytes for gzip and by Content-Encoding (with a
// first-byte heuristic fallback) for Brotli, since some servers compress
// without declaring it.
//
// Returns the body, whether decompression was performed, and any error.
func DecompressBody(body []byte, contentEncoding string) ([]byte, bool, error) {
	if len(body) == 0 {
		return body, false, nil
	}

	// gzip magic bytes 1f 8b
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, false, err
		}
		return decompressed, true, nil
	}

	// Brotli streams often start with a byte in 0x80-0x8f
	if contentEncoding == "br" || (body[0] >= 0x80 && body[0] <= 0x8f) {
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			// Not Brotli after all, treat as uncompressed
			return body, false, nil
		}
		return decompressed, true, nil
	}

	return body, false, nil
}
