package downloader

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// ErrRejected marks validation failures that are properties of the image
// itself (too small, thumbnail dimensions). Retrying cannot fix these, so the
// download is skipped rather than failed.
var ErrRejected = errors.New("image rejected")

// detectImageFormat reads the magic bytes and returns the image format string.
func detectImageFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", errors.New("data too short to determine format")
	}

	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "jpeg", nil
	}
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "png", nil
	}
	if string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a" {
		return "gif", nil
	}
	if string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "webp", nil
	}
	if data[0] == 'B' && data[1] == 'M' {
		return "bmp", nil
	}

	return "", errors.New("unknown image format")
}

// Validator applies the minimum-size gates that separate real gallery images
// from thumbnails, icons and tracking pixels.
type Validator struct {
	MinBytes  int64
	MinWidth  int
	MinHeight int
}

// Validate checks downloaded bytes against the size gates. An ErrRejected
// return is terminal; any other error means the payload could not be
// interpreted (truncated transfer, HTML error page) and the download should
// be retried.
func (v *Validator) Validate(data []byte) error {
	if int64(len(data)) < v.MinBytes {
		return fmt.Errorf("%w: %d bytes below minimum %d", ErrRejected, len(data), v.MinBytes)
	}

	format, err := detectImageFormat(data)
	if err != nil {
		return fmt.Errorf("sniffing format: %w", err)
	}

	if v.MinWidth <= 0 && v.MinHeight <= 0 {
		return nil
	}

	var img image.Image
	reader := bytes.NewReader(data)
	switch format {
	case "webp":
		img, err = webp.Decode(reader)
	case "bmp":
		img, err = bmp.Decode(reader)
	default:
		img, err = imaging.Decode(reader)
	}
	if err != nil {
		return fmt.Errorf("decoding %s image: %w", format, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < v.MinWidth || bounds.Dy() < v.MinHeight {
		return fmt.Errorf("%w: %dx%d below minimum %dx%d",
			ErrRejected, bounds.Dx(), bounds.Dy(), v.MinWidth, v.MinHeight)
	}
	return nil
}
