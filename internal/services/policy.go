package services

import (
	"image-admission-service/internal/models"
)

// PolicyRule rejects an image when its category reaches RejectAt or above
type PolicyRule struct {
	Category models.Category
	RejectAt models.Likelihood
}

// DefaultPolicyRules is the admission table. Categories not listed here are
// never evaluated, and listed categories missing from a classification are
// treated as UNKNOWN, which never rejects.
var DefaultPolicyRules = []PolicyRule{
	{Category: models.CategoryAdult, RejectAt: models.LikelihoodLikely},
	{Category: models.CategoryViolence, RejectAt: models.LikelihoodLikely},
	{Category: models.CategoryRacy, RejectAt: models.LikelihoodLikely},
}

// AdmissionPolicy maps a classification to an admit/reject decision
type AdmissionPolicy struct {
	rules []PolicyRule
}

// NewAdmissionPolicy creates a policy over rules; nil means DefaultPolicyRules
func NewAdmissionPolicy(rules []PolicyRule) *AdmissionPolicy {
	if rules == nil {
		rules = DefaultPolicyRules
	}
	copied := make([]PolicyRule, len(rules))
	copy(copied, rules)
	return &AdmissionPolicy{rules: copied}
}

// Decide is pure: the same classification always yields the same decision,
// with reasons listed in rule order
func (p *AdmissionPolicy) Decide(result *models.ClassificationResult) models.AdmissionDecision {
	var reasons []models.Category
	for _, rule := range p.rules {
		level := result.Level(rule.Category)
		if level == models.LikelihoodUnknown {
			continue
		}
		if level >= rule.RejectAt {
			reasons = append(reasons, rule.Category)
		}
	}
	return models.AdmissionDecision{
		Admitted: len(reasons) == 0,
		Reasons:  reasons,
	}
}

// Rules returns a copy of the policy table
func (p *AdmissionPolicy) Rules() []PolicyRule {
	out := make([]PolicyRule, len(p.rules))
	copy(out, p.rules)
	return out
}
