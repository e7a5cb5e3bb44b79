package models

// CheckImageResponse is returned when an upload is admitted
type CheckImageResponse struct {
	Safe     bool    `json:"safe"`
	Message  string  `json:"message"`
	Accuracy *string `json:"accuracy"`
}

// RejectedImageResponse is returned when an upload fails the admission policy
type RejectedImageResponse struct {
	Safe    bool       `json:"safe"`
	Message string     `json:"message"`
	Reasons []Category `json:"reasons,omitempty"`
}

// StatsResponse represents statistics response
type StatsResponse struct {
	TotalChecks       int64   `json:"total_checks"`
	Admitted          int64   `json:"admitted"`
	Rejected          int64   `json:"rejected"`
	Inconclusive      int64   `json:"inconclusive"`
	Failed            int64   `json:"failed"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// PolicyRuleResponse describes one row of the admission policy table
type PolicyRuleResponse struct {
	Category Category `json:"category"`
	RejectAt string   `json:"reject_at"`
}

// PolicyResponse exposes the active admission and scoring configuration
type PolicyResponse struct {
	Rules               []PolicyRuleResponse `json:"rules"`
	ExpectedLocation    Coordinate           `json:"expected_location"`
	LocationThresholdKm float64              `json:"location_threshold_km"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// MessageResponse is a plain informational payload
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
