package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"image-admission-service/internal/metrics"
	"image-admission-service/internal/models"
	"image-admission-service/internal/requestid"
)

// Pipeline stages, logged as the upload moves through admission
const (
	StageReceived   = "RECEIVED"
	StageNormalized = "NORMALIZED"
	StageClassified = "CLASSIFIED"
	StageDecided    = "DECIDED"
	StageScored     = "SCORED"
	StageDone       = "DONE"
	StageFailed     = "FAILED"
)

// Pipeline runs an upload through normalization, classification, the
// admission policy and location scoring
type Pipeline struct {
	normalizer        *Normalizer
	classifier        Classifier
	policy            *AdmissionPolicy
	scorer            *LocationScorer
	expected          models.Coordinate
	classifierTimeout time.Duration
	logger            *zap.Logger
	stats             *Stats
	statsMutex        sync.RWMutex
}

// Stats keeps track of admission outcomes
type Stats struct {
	TotalChecks         int64
	Admitted            int64
	Rejected            int64
	Inconclusive        int64
	Failed              int64
	TotalProcessingTime time.Duration
}

// PipelineOptions holds the pipeline's collaborators
type PipelineOptions struct {
	Normalizer        *Normalizer
	Classifier        Classifier
	Policy            *AdmissionPolicy
	Scorer            *LocationScorer
	Expected          models.Coordinate
	ClassifierTimeout time.Duration
	Logger            *zap.Logger
}

// NewPipeline creates a new admission pipeline
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Policy == nil {
		opts.Policy = NewAdmissionPolicy(nil)
	}
	return &Pipeline{
		normalizer:        opts.Normalizer,
		classifier:        opts.Classifier,
		policy:            opts.Policy,
		scorer:            opts.Scorer,
		expected:          opts.Expected,
		classifierTimeout: opts.ClassifierTimeout,
		logger:            opts.Logger,
		stats:             &Stats{},
	}
}

// AdmitUpload runs the full admission pipeline for one upload.
//
// Normalization and classification failures abort with a *Error of
// KindNormalization or KindClassification. A classifier response without
// safety annotations aborts with KindInconclusive. Location scoring failures
// are logged and leave Location nil.
func (p *Pipeline) AdmitUpload(ctx context.Context, req models.UploadRequest) (*models.AdmissionResult, error) {
	startTime := time.Now()
	logger := p.logger.With(
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.String("filename", req.Filename),
	)
	logger.Debug("Admission stage", zap.String("stage", StageReceived),
		zap.String("media_type", req.MediaType), zap.Int("bytes", len(req.Data)))

	normalized, err := p.normalizer.Normalize(ctx, req)
	if err != nil {
		p.fail(logger, startTime, "normalization_failed", err)
		return nil, WrapError(KindNormalization, "pipeline.normalize", "normalization failed", err)
	}
	logger.Debug("Admission stage", zap.String("stage", StageNormalized),
		zap.String("media_type", normalized.MediaType), zap.Bool("transcoded", normalized.Transcoded))

	classification, err := p.classify(ctx, normalized)
	if err != nil {
		if IsKind(err, KindMissingAnnotations) {
			p.recordOutcome(startTime, func(s *Stats) { s.Inconclusive++ })
			metrics.AdmissionOutcomes.WithLabelValues("inconclusive").Inc()
			logger.Info("Admission stage", zap.String("stage", StageFailed), zap.String("reason", "no safety annotations"))
			return nil, &Error{Kind: KindInconclusive, Op: "pipeline.classify", Message: "classifier returned no safety annotations", Cause: err}
		}
		p.fail(logger, startTime, "classification_failed", err)
		return nil, WrapError(KindClassification, "pipeline.classify", "classification failed", err)
	}
	logger.Debug("Admission stage", zap.String("stage", StageClassified),
		zap.Int("landmarks", len(classification.Landmarks)))

	result := &models.AdmissionResult{}

	// Policy and scorer only read the classification. Only the scorer can
	// fail, and its failure costs the score, never the decision.
	var g errgroup.Group
	g.Go(func() error {
		result.Admission = p.policy.Decide(classification)
		logger.Debug("Admission stage", zap.String("stage", StageDecided),
			zap.Bool("admitted", result.Admission.Admitted))
		return nil
	})
	g.Go(func() error {
		location, err := p.score(classification)
		if err != nil {
			return err
		}
		result.Location = location
		logger.Debug("Admission stage", zap.String("stage", StageScored),
			zap.Bool("has_location", location != nil))
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.LocationScoreFailures.Inc()
		logger.Warn("Location scoring failed, continuing without score", zap.Error(err))
		result.Location = nil
	}

	if result.Admission.Admitted {
		p.recordOutcome(startTime, func(s *Stats) { s.Admitted++ })
		metrics.AdmissionOutcomes.WithLabelValues("admitted").Inc()
	} else {
		p.recordOutcome(startTime, func(s *Stats) { s.Rejected++ })
		metrics.AdmissionOutcomes.WithLabelValues("rejected").Inc()
		for _, category := range result.Admission.Reasons {
			metrics.AdmissionRejections.WithLabelValues(string(category)).Inc()
		}
	}

	fields := []zap.Field{
		zap.String("stage", StageDone),
		zap.Bool("admitted", result.Admission.Admitted),
		zap.Duration("elapsed", time.Since(startTime)),
	}
	if len(result.Admission.Reasons) > 0 {
		reasons := make([]string, len(result.Admission.Reasons))
		for i, c := range result.Admission.Reasons {
			reasons[i] = string(c)
		}
		fields = append(fields, zap.Strings("reasons", reasons))
	}
	if result.Location != nil {
		fields = append(fields, zap.Float64("accuracy_percent", result.Location.AccuracyPercent))
	}
	logger.Info("Image admission complete", fields...)

	return result, nil
}

func (p *Pipeline) classify(ctx context.Context, img *models.NormalizedImage) (*models.ClassificationResult, error) {
	if p.classifierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.classifierTimeout)
		defer cancel()
	}
	result, err := p.classifier.Classify(ctx, img)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, NewError(KindClassification, "pipeline.classify", "classifier returned no result")
	}
	return result, nil
}

func (p *Pipeline) score(classification *models.ClassificationResult) (*models.LocationScore, error) {
	if p.scorer == nil {
		return nil, nil
	}
	score, err := p.scorer.Score(classification, p.expected)
	if err != nil {
		return nil, err
	}
	if score != nil {
		metrics.LocationAccuracy.Observe(score.AccuracyPercent)
	}
	return score, nil
}

func (p *Pipeline) fail(logger *zap.Logger, startTime time.Time, outcome string, err error) {
	p.recordOutcome(startTime, func(s *Stats) { s.Failed++ })
	metrics.AdmissionOutcomes.WithLabelValues(outcome).Inc()
	logger.Warn("Admission stage", zap.String("stage", StageFailed), zap.String("outcome", outcome), zap.Error(err))
}

// recordOutcome updates service statistics
func (p *Pipeline) recordOutcome(startTime time.Time, update func(*Stats)) {
	p.statsMutex.Lock()
	defer p.statsMutex.Unlock()

	p.stats.TotalChecks++
	p.stats.TotalProcessingTime += time.Since(startTime)
	update(p.stats)
}

// GetStats returns service statistics
func (p *Pipeline) GetStats() *models.StatsResponse {
	p.statsMutex.RLock()
	defer p.statsMutex.RUnlock()

	var avgResponseTimeMs float64
	if p.stats.TotalChecks > 0 {
		avgResponseTimeMs = float64(p.stats.TotalProcessingTime.Milliseconds()) / float64(p.stats.TotalChecks)
	}

	return &models.StatsResponse{
		TotalChecks:       p.stats.TotalChecks,
		Admitted:          p.stats.Admitted,
		Rejected:          p.stats.Rejected,
		Inconclusive:      p.stats.Inconclusive,
		Failed:            p.stats.Failed,
		AvgResponseTimeMs: avgResponseTimeMs,
	}
}

// Policy returns the admission policy in use
func (p *Pipeline) Policy() *AdmissionPolicy {
	return p.policy
}

// ExpectedLocation returns the reference coordinate used for scoring
func (p *Pipeline) ExpectedLocation() models.Coordinate {
	return p.expected
}

// LocationThresholdKm returns the scorer's zero-accuracy distance
func (p *Pipeline) LocationThresholdKm() float64 {
	if p.scorer == nil {
		return 0
	}
	return p.scorer.thresholdKm
}
