package services

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"image-admission-service/internal/metrics"
	"image-admission-service/internal/models"
)

// BreakerSettings configures the classifier circuit breaker
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // concurrent probes allowed while half-open
	Interval     time.Duration // counts reset period while closed
	Timeout      time.Duration // open -> half-open delay
	MinRequests  uint32        // requests needed before the failure ratio is considered
	FailureRatio float64
}

// DefaultBreakerSettings opens after 60% failures over at least 10 requests
// and probes again after 30 seconds
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "safety-classifier",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerClassifier wraps a Classifier with a circuit breaker so an
// unavailable classifier fails uploads fast instead of tying up requests
type BreakerClassifier struct {
	next   Classifier
	cb     *gobreaker.CircuitBreaker[*models.ClassificationResult]
	name   string
	logger *zap.Logger
}

// NewBreakerClassifier creates a breaker-protected classifier
func NewBreakerClassifier(next Classifier, settings BreakerSettings, logger *zap.Logger) *BreakerClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics.CircuitBreakerState.WithLabelValues(settings.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.ClassificationResult](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := ratio >= settings.FailureRatio
			if shouldTrip {
				logger.Warn("Opening classifier circuit",
					zap.Uint32("failures", counts.TotalFailures),
					zap.Float64("failure_rate", ratio*100),
				)
			}
			return shouldTrip
		},
		// The service answering without annotations, the caller going away,
		// or a local throttle refusal says nothing about classifier health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				IsKind(err, KindMissingAnnotations) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrThrottled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Classifier circuit state transition",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerClassifier{
		next:   next,
		cb:     cb,
		name:   settings.Name,
		logger: logger,
	}
}

// Classify runs the wrapped classifier through the breaker
func (c *BreakerClassifier) Classify(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error) {
	result, err := c.cb.Execute(func() (*models.ClassificationResult, error) {
		return c.next.Classify(ctx, img)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			c.logger.Warn("Classifier call rejected by circuit breaker", zap.Error(err))
			return nil, WrapError(KindClassification, "classifier.breaker", "classifier unavailable", err)
		}
		if IsKind(err, KindMissingAnnotations) || errors.Is(err, ErrThrottled) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	return result, nil
}

// State returns the current breaker state name
func (c *BreakerClassifier) State() string {
	return c.cb.State().String()
}

// Open reports whether calls are currently short-circuited
func (c *BreakerClassifier) Open() bool {
	return c.cb.State() == gobreaker.StateOpen
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
