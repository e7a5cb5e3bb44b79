package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"image-admission-service/internal/models"
)

// ErrThrottled marks calls refused by the local limiter before reaching the classifier
var ErrThrottled = errors.New("classifier call throttled")

// RateLimitedClassifier bounds the rate of outbound classifier calls
type RateLimitedClassifier struct {
	next    Classifier
	limiter *rate.Limiter
}

// NewRateLimitedClassifier allows perSecond calls with the given burst
func NewRateLimitedClassifier(next Classifier, perSecond float64, burst int) *RateLimitedClassifier {
	return &RateLimitedClassifier{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Classify waits for a limiter slot, then delegates. A wait that cannot
// finish before ctx's deadline fails immediately.
func (c *RateLimitedClassifier) Classify(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, WrapError(KindClassification, "classifier.rate_limit", "rate limit exceeded",
			fmt.Errorf("%w: %w", ErrThrottled, err))
	}
	return c.next.Classify(ctx, img)
}
