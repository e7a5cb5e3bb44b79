package services

import (
	"fmt"
	"math"

	"image-admission-service/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// LocationScorer rates how close a detected landmark is to the expected
// coordinate. Scores are informational and never affect admission.
type LocationScorer struct {
	thresholdKm float64
}

// NewLocationScorer creates a scorer; a landmark thresholdKm or further away scores 0
func NewLocationScorer(thresholdKm float64) *LocationScorer {
	return &LocationScorer{thresholdKm: thresholdKm}
}

// Score returns nil when the classification has no landmark hints.
// Only the first hint is used, regardless of detection confidence.
func (s *LocationScorer) Score(result *models.ClassificationResult, expected models.Coordinate) (*models.LocationScore, error) {
	const op = "location.score"

	if result == nil || len(result.Landmarks) == 0 {
		return nil, nil
	}
	if !(s.thresholdKm > 0) {
		return nil, NewError(KindInvalidCoordinate, op, fmt.Sprintf("threshold must be positive, got %v", s.thresholdKm))
	}
	if err := validateCoordinate(expected); err != nil {
		return nil, WrapError(KindInvalidCoordinate, op, "invalid expected coordinate", err)
	}

	hint := result.Landmarks[0]
	if err := validateCoordinate(hint.Location); err != nil {
		return nil, WrapError(KindInvalidCoordinate, op, "invalid landmark coordinate", err)
	}

	distance := HaversineKm(hint.Location, expected)
	accuracy := clamp(100-(distance/s.thresholdKm)*100, 0, 100)

	return &models.LocationScore{
		AccuracyPercent: accuracy,
		DistanceKm:      distance,
		Landmark:        hint.Name,
	}, nil
}

// HaversineKm returns the great-circle distance between a and b in kilometers
func HaversineKm(a, b models.Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

func validateCoordinate(c models.Coordinate) error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Longitude)
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
