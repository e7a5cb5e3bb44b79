package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"image-admission-service/internal/metrics"
	"image-admission-service/internal/models"
)

const maxVisionResponseBytes = 4 * 1024 * 1024

// VisionClient calls the Cloud Vision images:annotate REST endpoint with
// safe-search and landmark detection enabled
type VisionClient struct {
	endpoint   string
	apiKey     string
	maxResults int
	httpClient *http.Client
	logger     *zap.Logger
}

// VisionOptions configures a VisionClient
type VisionOptions struct {
	Endpoint           string
	APIKey             string
	LandmarkMaxResults int
	HTTPClient         *http.Client
	Logger             *zap.Logger
}

// NewVisionClient creates a new Vision API client
func NewVisionClient(opts VisionOptions) *VisionClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &VisionClient{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		maxResults: opts.LandmarkMaxResults,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// Configured reports whether the client has credentials to call the API
func (c *VisionClient) Configured() bool {
	return c.apiKey != "" && c.endpoint != ""
}

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionBatchRequest struct {
	Requests []visionRequest `json:"requests"`
}

type visionStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type visionSafeSearch struct {
	Adult    string `json:"adult"`
	Spoof    string `json:"spoof"`
	Medical  string `json:"medical"`
	Violence string `json:"violence"`
	Racy     string `json:"racy"`
}

type visionLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type visionLocation struct {
	LatLng *visionLatLng `json:"latLng"`
}

type visionLandmark struct {
	Description string           `json:"description"`
	Score       float64          `json:"score"`
	Locations   []visionLocation `json:"locations"`
}

type visionResponse struct {
	SafeSearchAnnotation *visionSafeSearch `json:"safeSearchAnnotation"`
	LandmarkAnnotations  []visionLandmark  `json:"landmarkAnnotations"`
	Error                *visionStatus     `json:"error"`
}

type visionBatchResponse struct {
	Responses []visionResponse `json:"responses"`
	Error     *visionStatus    `json:"error"`
}

// Classify runs safe-search and landmark detection on the image
func (c *VisionClient) Classify(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error) {
	const op = "vision.classify"

	if !c.Configured() {
		return nil, NewError(KindClassification, op, "vision client is not configured")
	}
	if img == nil || len(img.Data) == 0 {
		return nil, NewError(KindClassification, op, "no image data")
	}

	features := []visionFeature{{Type: "SAFE_SEARCH_DETECTION"}}
	if c.maxResults > 0 {
		features = append(features, visionFeature{Type: "LANDMARK_DETECTION", MaxResults: c.maxResults})
	}

	body, err := json.Marshal(visionBatchRequest{
		Requests: []visionRequest{{
			Image:    visionImage{Content: base64.StdEncoding.EncodeToString(img.Data)},
			Features: features,
		}},
	})
	if err != nil {
		return nil, WrapError(KindClassification, op, "failed to encode request", err)
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, WrapError(KindClassification, op, "invalid endpoint", err)
	}
	query := endpoint.Query()
	query.Set("key", c.apiKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(KindClassification, op, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ClassifierDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, WrapError(KindClassification, op, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxVisionResponseBytes))
	if err != nil {
		return nil, WrapError(KindClassification, op, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Vision API returned error status",
			zap.Int("status_code", resp.StatusCode),
			zap.Int("body_bytes", len(raw)),
		)
		return nil, NewError(KindClassification, op, fmt.Sprintf("unexpected status code %d", resp.StatusCode))
	}

	var batch visionBatchResponse
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, WrapError(KindClassification, op, "malformed response", err)
	}
	if batch.Error != nil {
		return nil, NewError(KindClassification, op, fmt.Sprintf("api error %d: %s", batch.Error.Code, batch.Error.Message))
	}
	if len(batch.Responses) == 0 {
		return nil, NewError(KindClassification, op, "empty responses array")
	}

	first := batch.Responses[0]
	if first.Error != nil {
		return nil, NewError(KindClassification, op, fmt.Sprintf("image error %d: %s", first.Error.Code, first.Error.Message))
	}
	if first.SafeSearchAnnotation == nil {
		return nil, NewError(KindMissingAnnotations, op, "no safe search annotations in response")
	}

	return toClassificationResult(&first), nil
}

func toClassificationResult(resp *visionResponse) *models.ClassificationResult {
	ss := resp.SafeSearchAnnotation
	result := &models.ClassificationResult{
		Likelihoods: map[models.Category]models.Likelihood{
			models.CategoryAdult:    models.ParseLikelihood(ss.Adult),
			models.CategoryViolence: models.ParseLikelihood(ss.Violence),
			models.CategoryRacy:     models.ParseLikelihood(ss.Racy),
			models.CategorySpoof:    models.ParseLikelihood(ss.Spoof),
			models.CategoryMedical:  models.ParseLikelihood(ss.Medical),
		},
	}

	for _, lm := range resp.LandmarkAnnotations {
		for _, loc := range lm.Locations {
			if loc.LatLng == nil {
				continue
			}
			result.Landmarks = append(result.Landmarks, models.LandmarkHint{
				Name: lm.Description,
				Location: models.Coordinate{
					Latitude:  loc.LatLng.Latitude,
					Longitude: loc.LatLng.Longitude,
				},
			})
			break
		}
	}

	return result
}
