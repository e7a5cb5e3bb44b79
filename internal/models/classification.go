package models

import "strings"

// Likelihood is the ordered confidence level reported by a content classifier.
// The zero value is LikelihoodUnknown, which sorts below every real level.
type Likelihood int

const (
	LikelihoodUnknown Likelihood = iota
	LikelihoodVeryUnlikely
	LikelihoodUnlikely
	LikelihoodPossible
	LikelihoodLikely
	LikelihoodVeryLikely
)

var likelihoodNames = [...]string{
	LikelihoodUnknown:      "UNKNOWN",
	LikelihoodVeryUnlikely: "VERY_UNLIKELY",
	LikelihoodUnlikely:     "UNLIKELY",
	LikelihoodPossible:     "POSSIBLE",
	LikelihoodLikely:       "LIKELY",
	LikelihoodVeryLikely:   "VERY_LIKELY",
}

func (l Likelihood) String() string {
	if l < LikelihoodUnknown || l > LikelihoodVeryLikely {
		return likelihoodNames[LikelihoodUnknown]
	}
	return likelihoodNames[l]
}

// ParseLikelihood maps a classifier level name to a Likelihood.
// Unrecognized names map to LikelihoodUnknown.
func ParseLikelihood(s string) Likelihood {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range likelihoodNames {
		if n == name {
			return Likelihood(i)
		}
	}
	return LikelihoodUnknown
}

// Category names a content-safety dimension
type Category string

const (
	CategoryAdult    Category = "adult"
	CategoryViolence Category = "violence"
	CategoryRacy     Category = "racy"
	CategorySpoof    Category = "spoof"
	CategoryMedical  Category = "medical"
)

// Coordinate is a WGS84 latitude/longitude pair in degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// LandmarkHint is a geographic reference point detected in an image
type LandmarkHint struct {
	Name     string
	Location Coordinate
}

// ClassificationResult holds the classifier output for one image.
// It is built once per upload and must not be modified after construction.
type ClassificationResult struct {
	Likelihoods map[Category]Likelihood
	Landmarks   []LandmarkHint
}

// Level returns the likelihood for a category, LikelihoodUnknown when absent
func (r *ClassificationResult) Level(c Category) Likelihood {
	if r == nil || r.Likelihoods == nil {
		return LikelihoodUnknown
	}
	return r.Likelihoods[c]
}

// UploadRequest is a single file received by the admission endpoint
type UploadRequest struct {
	Data      []byte
	MediaType string
	Filename  string
}

// NormalizedImage is an upload after format normalization
type NormalizedImage struct {
	Data       []byte
	MediaType  string
	Transcoded bool
}

// AdmissionDecision is the outcome of the admission policy
type AdmissionDecision struct {
	Admitted bool
	Reasons  []Category
}

// LocationScore is the informational landmark accuracy score
type LocationScore struct {
	AccuracyPercent float64
	DistanceKm      float64
	Landmark        string
}

// AdmissionResult is the unified pipeline result. Location is nil when no
// landmark was detected or scoring failed.
type AdmissionResult struct {
	Admission AdmissionDecision
	Location  *LocationScore
}
