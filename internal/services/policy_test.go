package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"image-admission-service/internal/models"
)

func classification(levels map[models.Category]models.Likelihood) *models.ClassificationResult {
	return &models.ClassificationResult{Likelihoods: levels}
}

func TestAdmissionPolicyAdmitsBelowLikely(t *testing.T) {
	t.Parallel()

	policy := NewAdmissionPolicy(nil)
	admitLevels := []models.Likelihood{
		models.LikelihoodUnknown,
		models.LikelihoodVeryUnlikely,
		models.LikelihoodUnlikely,
		models.LikelihoodPossible,
	}

	for _, adult := range admitLevels {
		for _, violence := range admitLevels {
			for _, racy := range admitLevels {
				decision := policy.Decide(classification(map[models.Category]models.Likelihood{
					models.CategoryAdult:    adult,
					models.CategoryViolence: violence,
					models.CategoryRacy:     racy,
				}))
				assert.True(t, decision.Admitted, "adult=%s violence=%s racy=%s", adult, violence, racy)
				assert.Empty(t, decision.Reasons)
			}
		}
	}
}

func TestAdmissionPolicyRejectsLikelyAndAbove(t *testing.T) {
	t.Parallel()

	policy := NewAdmissionPolicy(nil)
	categories := []models.Category{models.CategoryAdult, models.CategoryViolence, models.CategoryRacy}

	for _, category := range categories {
		for _, level := range []models.Likelihood{models.LikelihoodLikely, models.LikelihoodVeryLikely} {
			decision := policy.Decide(classification(map[models.Category]models.Likelihood{
				category: level,
			}))
			assert.False(t, decision.Admitted, "%s=%s", category, level)
			assert.Equal(t, []models.Category{category}, decision.Reasons)
		}
	}
}

func TestAdmissionPolicyDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		levels       map[models.Category]models.Likelihood
		wantAdmitted bool
		wantReasons  []models.Category
	}{
		{
			name: "violence likely only",
			levels: map[models.Category]models.Likelihood{
				models.CategoryAdult:    models.LikelihoodVeryUnlikely,
				models.CategoryViolence: models.LikelihoodLikely,
				models.CategoryRacy:     models.LikelihoodUnlikely,
			},
			wantAdmitted: false,
			wantReasons:  []models.Category{models.CategoryViolence},
		},
		{
			name: "all rejecting, reasons in table order",
			levels: map[models.Category]models.Likelihood{
				models.CategoryRacy:     models.LikelihoodVeryLikely,
				models.CategoryViolence: models.LikelihoodLikely,
				models.CategoryAdult:    models.LikelihoodVeryLikely,
			},
			wantAdmitted: false,
			wantReasons:  []models.Category{models.CategoryAdult, models.CategoryViolence, models.CategoryRacy},
		},
		{
			name:         "no categories present fails open",
			levels:       map[models.Category]models.Likelihood{},
			wantAdmitted: true,
		},
		{
			name:         "nil map fails open",
			levels:       nil,
			wantAdmitted: true,
		},
		{
			name: "categories outside the table are ignored",
			levels: map[models.Category]models.Likelihood{
				models.CategorySpoof:   models.LikelihoodVeryLikely,
				models.CategoryMedical: models.LikelihoodVeryLikely,
			},
			wantAdmitted: true,
		},
	}

	policy := NewAdmissionPolicy(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := policy.Decide(classification(tt.levels))
			assert.Equal(t, tt.wantAdmitted, decision.Admitted)
			assert.Equal(t, tt.wantReasons, decision.Reasons)
		})
	}
}

func TestAdmissionPolicyCustomRules(t *testing.T) {
	t.Parallel()

	policy := NewAdmissionPolicy([]PolicyRule{
		{Category: models.CategoryMedical, RejectAt: models.LikelihoodPossible},
	})

	decision := policy.Decide(classification(map[models.Category]models.Likelihood{
		models.CategoryAdult:   models.LikelihoodVeryLikely,
		models.CategoryMedical: models.LikelihoodPossible,
	}))
	assert.False(t, decision.Admitted)
	assert.Equal(t, []models.Category{models.CategoryMedical}, decision.Reasons)

	rules := policy.Rules()
	rules[0].RejectAt = models.LikelihoodVeryLikely
	assert.Equal(t, models.LikelihoodPossible, policy.Rules()[0].RejectAt)
}

func TestParseLikelihood(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want models.Likelihood
	}{
		{"UNKNOWN", models.LikelihoodUnknown},
		{"VERY_UNLIKELY", models.LikelihoodVeryUnlikely},
		{"UNLIKELY", models.LikelihoodUnlikely},
		{"POSSIBLE", models.LikelihoodPossible},
		{"LIKELY", models.LikelihoodLikely},
		{"VERY_LIKELY", models.LikelihoodVeryLikely},
		{" likely ", models.LikelihoodLikely},
		{"EXTREMELY_LIKELY", models.LikelihoodUnknown},
		{"", models.LikelihoodUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.ParseLikelihood(tt.in), tt.in)
	}
	assert.Equal(t, "UNKNOWN", models.Likelihood(42).String())
}
