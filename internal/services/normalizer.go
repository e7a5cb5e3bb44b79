package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"image-admission-service/internal/metrics"
	"image-admission-service/internal/models"
)

// CanonicalMediaType is the encoding every transcoded upload ends up in
const CanonicalMediaType = "image/jpeg"

var (
	legacyMediaTypes = map[string]bool{
		"image/heic":          true,
		"image/heif":          true,
		"image/heic-sequence": true,
		"image/heif-sequence": true,
	}

	legacyExtensions = map[string]bool{
		".heic": true,
		".heif": true,
	}

	// ISO-BMFF major brands used by HEIC encoders
	legacyBrands = map[string]bool{
		"heic": true,
		"heix": true,
		"hevc": true,
		"hevx": true,
		"heim": true,
		"heis": true,
	}
)

// Normalizer converts legacy-encoded uploads to the canonical encoding and
// passes everything else through untouched
type Normalizer struct {
	transcoder Transcoder
	maxPixels  int64
	logger     *zap.Logger
}

// NewNormalizer creates a normalizer. maxPixels <= 0 disables the pixel guard.
func NewNormalizer(transcoder Transcoder, maxPixels int64, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		transcoder: transcoder,
		maxPixels:  maxPixels,
		logger:     logger,
	}
}

// Normalize returns the upload in a universally decodable encoding.
// The input buffer is never modified.
func (n *Normalizer) Normalize(ctx context.Context, req models.UploadRequest) (*models.NormalizedImage, error) {
	const op = "normalize"

	if len(req.Data) == 0 {
		return nil, NewError(KindNormalization, op, "empty input")
	}

	mediaType := canonicalizeMediaType(req.MediaType)

	if !isLegacy(mediaType, req.Filename, req.Data) {
		out := make([]byte, len(req.Data))
		copy(out, req.Data)
		if err := n.checkPixels(out); err != nil {
			return nil, err
		}
		if isGenericMediaType(mediaType) {
			mediaType = canonicalizeMediaType(http.DetectContentType(out))
		}
		return &models.NormalizedImage{Data: out, MediaType: mediaType}, nil
	}

	if n.transcoder == nil {
		metrics.Transcodes.WithLabelValues("failure").Inc()
		return nil, NewError(KindNormalization, op, "no transcoder configured for "+mediaType)
	}

	input := make([]byte, len(req.Data))
	copy(input, req.Data)

	// refuse oversized canvases before the decoder allocates them
	if dims, ok := n.transcoder.(dimensionReader); ok && n.maxPixels > 0 {
		if width, height, err := dims.Dimensions(input); err == nil {
			if err := n.checkDimensions(mediaType, width, height); err != nil {
				metrics.Transcodes.WithLabelValues("failure").Inc()
				return nil, err
			}
		}
	}

	start := time.Now()
	out, err := n.transcoder.Transcode(ctx, input)
	if err != nil {
		metrics.Transcodes.WithLabelValues("failure").Inc()
		return nil, &Error{Kind: KindNormalization, Op: op, Message: "transcode failed", Cause: err}
	}
	if len(out) == 0 {
		metrics.Transcodes.WithLabelValues("failure").Inc()
		return nil, NewError(KindNormalization, op, "transcoder produced no output")
	}
	metrics.Transcodes.WithLabelValues("success").Inc()

	n.logger.Debug("Transcoded legacy image",
		zap.String("filename", req.Filename),
		zap.String("from", mediaType),
		zap.Int("input_bytes", len(req.Data)),
		zap.Int("output_bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := n.checkPixels(out); err != nil {
		return nil, err
	}

	return &models.NormalizedImage{Data: out, MediaType: CanonicalMediaType, Transcoded: true}, nil
}

// IsLegacyUpload reports whether the upload would go through the transcoder
func IsLegacyUpload(req models.UploadRequest) bool {
	return isLegacy(canonicalizeMediaType(req.MediaType), req.Filename, req.Data)
}

// checkPixels rejects images whose header declares more than maxPixels.
// Headers that cannot be decoded pass through.
func (n *Normalizer) checkPixels(data []byte) error {
	if n.maxPixels <= 0 {
		return nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return n.checkDimensions(format, cfg.Width, cfg.Height)
}

func (n *Normalizer) checkDimensions(format string, width, height int) error {
	if n.maxPixels <= 0 {
		return nil
	}
	total := int64(width) * int64(height)
	if total > n.maxPixels {
		n.logger.Warn("Rejected oversized image",
			zap.String("format", format),
			zap.Int("width", width),
			zap.Int("height", height),
			zap.Int64("max_pixels", n.maxPixels),
		)
		return NewError(KindNormalization, "normalize",
			fmt.Sprintf("pixel count exceeds limit: %d (max %d)", total, n.maxPixels))
	}
	return nil
}

func canonicalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return CanonicalMediaType
	}
	return mt
}

func isGenericMediaType(mediaType string) bool {
	return mediaType == "" || mediaType == "application/octet-stream"
}

func isLegacy(mediaType, filename string, data []byte) bool {
	if legacyMediaTypes[mediaType] {
		return true
	}
	if !isGenericMediaType(mediaType) {
		return false
	}
	if legacyExtensions[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	return hasLegacyBrand(data)
}

// hasLegacyBrand checks the ISO-BMFF ftyp box: bytes 4-8 are "ftyp", 8-12 the major brand
func hasLegacyBrand(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	return legacyBrands[string(data[8:12])]
}
