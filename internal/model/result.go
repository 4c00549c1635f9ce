package model

import (
	"fmt"
	"time"
)

// CheckResult is the uniform output of every check.
type CheckResult struct {
	Comments []string `json:"comments"`
	Score    float64  `json:"score"`
}

// Domain is the kind of dataset a submission carries.
type Domain string

const (
	// DomainLocation covers location-history traces.
	DomainLocation Domain = "location"
	// DomainPreference covers preference-comparison logs.
	DomainPreference Domain = "preference"
)

// Report collects the results of one scoring run. It is never persisted.
type Report struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Checks      map[string]CheckResult `json:"checks"`
	ID          string                 `json:"id"`
	Domain      Domain                 `json:"domain"`
	Dialect     string                 `json:"dialect"`
	Order       []string               `json:"order"`
	Score       float64                `json:"score"`
}

// Result returns the named check result.
func (r *Report) Result(name string) (CheckResult, bool) {
	res, ok := r.Checks[name]
	return res, ok
}

// OutcomeKind tags how a scoring run ended.
type OutcomeKind string

const (
	// OutcomeEvaluated carries a real score in [0,1].
	OutcomeEvaluated OutcomeKind = "evaluated"
	// OutcomeFormatError means the submission could not be evaluated.
	OutcomeFormatError OutcomeKind = "format_error"
	// OutcomePolicyReject means the submission was evaluated and rejected.
	OutcomePolicyReject OutcomeKind = "policy_reject"
)

// LegacyRejectScore is the wire value older consumers expect for any
// non-evaluated outcome.
const LegacyRejectScore = -1.0

// Outcome is the tagged result of a scoring run. Score is meaningful only
// when Kind is OutcomeEvaluated.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
	Score  float64     `json:"score"`
}

// Evaluated builds an evaluated outcome.
func Evaluated(score float64) Outcome {
	return Outcome{Kind: OutcomeEvaluated, Score: score}
}

// FormatError builds a format-error outcome.
func FormatError(reason string) Outcome {
	return Outcome{Kind: OutcomeFormatError, Reason: reason}
}

// PolicyReject builds a policy-reject outcome.
func PolicyReject(format string, args ...any) Outcome {
	return Outcome{Kind: OutcomePolicyReject, Reason: fmt.Sprintf(format, args...)}
}

// IsEvaluated reports whether Score holds a real score.
func (o Outcome) IsEvaluated() bool {
	return o.Kind == OutcomeEvaluated
}

// Legacy returns the score on the old wire, where -1 means rejected.
func (o Outcome) Legacy() float64 {
	if o.Kind != OutcomeEvaluated {
		return LegacyRejectScore
	}
	return o.Score
}

// ProofResponse is the record handed back to the incentive system.
type ProofResponse struct {
	Attributes   map[string]any `json:"attributes"`
	DLPID        int            `json:"dlp_id"`
	Valid        bool           `json:"valid"`
	Score        float64        `json:"score"`
	Uniqueness   float64        `json:"uniqueness"`
	Quality      float64        `json:"quality"`
	Ownership    float64        `json:"ownership"`
	Authenticity float64        `json:"authenticity"`
}

// NewProofResponse returns a response with the fixed external signals set.
func NewProofResponse(dlpID int) *ProofResponse {
	return &ProofResponse{
		DLPID:        dlpID,
		Ownership:    1.0,
		Authenticity: 1.0,
		Attributes:   map[string]any{},
	}
}
