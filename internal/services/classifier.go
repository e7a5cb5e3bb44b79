package services

import (
	"context"

	"image-admission-service/internal/models"
)

// Classifier submits an image to a content-safety service.
//
// Implementations return a *Error of KindClassification for transport and
// service failures and KindMissingAnnotations when the service answered
// without safety annotations.
type Classifier interface {
	Classify(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error)
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error)

func (f ClassifierFunc) Classify(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error) {
	return f(ctx, img)
}
