package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/jdeng/goheif"
)

// Transcoder converts a legacy-encoded image to the canonical encoding
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) ([]byte, error)
}

// dimensionReader is implemented by transcoders that can read the image size
// from the header without decoding pixels
type dimensionReader interface {
	Dimensions(data []byte) (width, height int, err error)
}

// HEICTranscoder decodes HEIC/HEIF payloads and re-encodes them as JPEG
type HEICTranscoder struct {
	quality int
}

// NewHEICTranscoder creates a transcoder with the given JPEG quality (1-100)
func NewHEICTranscoder(quality int) *HEICTranscoder {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &HEICTranscoder{quality: quality}
}

// Transcode decodes a HEIC image and returns it JPEG encoded
func (t *HEICTranscoder) Transcode(ctx context.Context, data []byte) (out []byte, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the HEIF box parser panics on some truncated inputs
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("decode heic: %v", r)
		}
	}()

	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode heic: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Dimensions reads the primary image size from the HEIF boxes only
func (t *HEICTranscoder) Dimensions(data []byte) (width, height int, err error) {
	defer func() {
		if r := recover(); r != nil {
			width, height, err = 0, 0, fmt.Errorf("read heic header: %v", r)
		}
	}()

	var cfg image.Config
	cfg, err = goheif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("read heic header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
