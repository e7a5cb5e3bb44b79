package services

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-admission-service/internal/models"
)

func newVisionServer(t *testing.T, status int, body string, inspect func(*http.Request, visionBatchRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req visionBatchRequest
		assert.NoError(t, json.Unmarshal(raw, &req))
		if inspect != nil {
			inspect(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testImage() *models.NormalizedImage {
	return &models.NormalizedImage{Data: []byte{0xFF, 0xD8, 0xFF, 0xDB}, MediaType: "image/jpeg"}
}

func TestVisionClientClassify(t *testing.T) {
	t.Parallel()

	body := `{"responses":[{
		"safeSearchAnnotation":{"adult":"VERY_UNLIKELY","spoof":"UNLIKELY","medical":"POSSIBLE","violence":"LIKELY","racy":"SOMETHING_NEW"},
		"landmarkAnnotations":[
			{"description":"No location"},
			{"description":"Statue of Liberty","score":0.91,"locations":[{"latLng":{"latitude":40.689249,"longitude":-74.0445}}]},
			{"description":"Brooklyn Bridge","locations":[{},{"latLng":{"latitude":40.7061,"longitude":-73.9969}}]}
		]}]}`

	srv := newVisionServer(t, http.StatusOK, body, func(r *http.Request, req visionBatchRequest) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		if !assert.Len(t, req.Requests, 1) {
			return
		}
		assert.Equal(t, base64.StdEncoding.EncodeToString(testImage().Data), req.Requests[0].Image.Content)
		assert.Equal(t, []visionFeature{
			{Type: "SAFE_SEARCH_DETECTION"},
			{Type: "LANDMARK_DETECTION", MaxResults: 3},
		}, req.Requests[0].Features)
	})

	client := NewVisionClient(VisionOptions{Endpoint: srv.URL, APIKey: "secret", LandmarkMaxResults: 3})
	result, err := client.Classify(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, models.LikelihoodVeryUnlikely, result.Level(models.CategoryAdult))
	assert.Equal(t, models.LikelihoodLikely, result.Level(models.CategoryViolence))
	assert.Equal(t, models.LikelihoodUnknown, result.Level(models.CategoryRacy))
	assert.Equal(t, models.LikelihoodPossible, result.Level(models.CategoryMedical))
	assert.Equal(t, models.LikelihoodUnlikely, result.Level(models.CategorySpoof))

	require.Len(t, result.Landmarks, 2)
	assert.Equal(t, "Statue of Liberty", result.Landmarks[0].Name)
	assert.InDelta(t, 40.689249, result.Landmarks[0].Location.Latitude, 1e-9)
	assert.Equal(t, "Brooklyn Bridge", result.Landmarks[1].Name)
	assert.InDelta(t, -73.9969, result.Landmarks[1].Location.Longitude, 1e-9)
}

func TestVisionClientSkipsLandmarksWhenDisabled(t *testing.T) {
	t.Parallel()

	srv := newVisionServer(t, http.StatusOK, `{"responses":[{"safeSearchAnnotation":{"adult":"UNLIKELY"}}]}`,
		func(_ *http.Request, req visionBatchRequest) {
			assert.Equal(t, []visionFeature{{Type: "SAFE_SEARCH_DETECTION"}}, req.Requests[0].Features)
		})

	result, err := NewVisionClient(VisionOptions{Endpoint: srv.URL, APIKey: "k"}).Classify(context.Background(), testImage())
	require.NoError(t, err)
	assert.Empty(t, result.Landmarks)
}

func TestVisionClientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"code":13,"message":"internal"}}`, KindClassification},
		{"forbidden", http.StatusForbidden, `{}`, KindClassification},
		{"malformed json", http.StatusOK, `{"responses":[`, KindClassification},
		{"top level error", http.StatusOK, `{"error":{"code":3,"message":"bad request"}}`, KindClassification},
		{"empty responses", http.StatusOK, `{"responses":[]}`, KindClassification},
		{"per image error", http.StatusOK, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`, KindClassification},
		{"missing annotations", http.StatusOK, `{"responses":[{"landmarkAnnotations":[]}]}`, KindMissingAnnotations},
		{"empty response object", http.StatusOK, `{"responses":[{}]}`, KindMissingAnnotations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newVisionServer(t, tt.status, tt.body, nil)
			result, err := NewVisionClient(VisionOptions{Endpoint: srv.URL, APIKey: "k"}).Classify(context.Background(), testImage())
			assert.Nil(t, result)
			assert.True(t, IsKind(err, tt.wantKind), "got %v", err)
		})
	}
}

func TestVisionClientNotConfigured(t *testing.T) {
	t.Parallel()

	client := NewVisionClient(VisionOptions{Endpoint: "http://127.0.0.1:1"})
	assert.False(t, client.Configured())

	_, err := client.Classify(context.Background(), testImage())
	assert.True(t, IsKind(err, KindClassification))
}

func TestVisionClientHonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewVisionClient(VisionOptions{Endpoint: srv.URL, APIKey: "k"}).Classify(ctx, testImage())
	assert.True(t, IsKind(err, KindClassification))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
