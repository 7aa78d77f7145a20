package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectImageFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
		ok       bool
	}{
		{"jpeg", append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 12)...), "jpeg", true},
		{"png", append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 8)...), "png", true},
		{"gif87a", append([]byte("GIF87a"), make([]byte, 8)...), "gif", true},
		{"gif89a", append([]byte("GIF89a"), make([]byte, 8)...), "gif", true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp", true},
		{"bmp", append([]byte("BM"), make([]byte, 12)...), "bmp", true},
		{"html", []byte("<html><body>err</body></html>"), "", false},
		{"too short", []byte{0xFF, 0xD8}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := detectImageFormat(tt.data)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, format)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateByteMinimumIsTerminal(t *testing.T) {
	v := &Validator{MinBytes: 1024, MinWidth: 400, MinHeight: 400}
	err := v.Validate(testPNG(t, 10, 10)[:64])
	assert.ErrorIs(t, err, ErrRejected)
}

func TestValidateDimensionMinimumIsTerminal(t *testing.T) {
	v := &Validator{MinBytes: 10, MinWidth: 400, MinHeight: 400}
	err := v.Validate(testPNG(t, 200, 150))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestValidateAcceptsLargeImage(t *testing.T) {
	v := &Validator{MinBytes: 1024, MinWidth: 400, MinHeight: 400}
	assert.NoError(t, v.Validate(testPNG(t, 450, 420)))
}

func TestValidateUndecodablePayloadIsRetryable(t *testing.T) {
	v := &Validator{MinBytes: 10, MinWidth: 400, MinHeight: 400}

	// Valid PNG magic, truncated body: sniffable but not decodable.
	data := append([]byte{}, testPNG(t, 450, 420)[:200]...)
	err := v.Validate(data)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestValidateSkipsDecodeWhenNoDimensionGates(t *testing.T) {
	v := &Validator{MinBytes: 10}

	// Sniffable format with an undecodable body passes when no dimension
	// minimum is configured.
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 64)...)
	assert.NoError(t, v.Validate(data))
}
