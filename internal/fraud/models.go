package fraud

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/order-risk/internal/review"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/pkg/validation"
)

// ErrAssessmentNotFound is returned when no assessment exists for a lookup.
var ErrAssessmentNotFound = errors.New("assessment not found")

// Reasons an assessment was produced on partial information.
const (
	DegradedHistoryUnavailable  = "history_unavailable"
	DegradedBaselineUnavailable = "baseline_unavailable"
	DegradedEvaluationFailed    = "evaluation_failed"
	DegradedReviewFailed        = "review_failed"
)

// Assessment is one screening of one order.
type Assessment struct {
	ID         uuid.UUID        `json:"id"`
	OrderID    string           `json:"order_id"`
	CustomerID string           `json:"customer_id"`
	Result     *risk.RiskResult `json:"result"`
	Review     review.Decision  `json:"review"`
	// Degraded is set when a dependency failed and the score was computed
	// with less information than usual.
	Degraded        bool      `json:"degraded"`
	DegradedReasons []string  `json:"degraded_reasons,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (a *Assessment) degrade(reason string) {
	a.Degraded = true
	for _, r := range a.DegradedReasons {
		if r == reason {
			return
		}
	}
	a.DegradedReasons = append(a.DegradedReasons, reason)
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := *a
	out.Result = a.Result.Clone()
	if a.Review.MatchedRules != nil {
		out.Review.MatchedRules = append([]string(nil), a.Review.MatchedRules...)
	}
	if a.DegradedReasons != nil {
		out.DegradedReasons = append([]string(nil), a.DegradedReasons...)
	}
	return &out
}

var requestValidator = validation.New()

// ScreenRequest asks for one order to be screened.
type ScreenRequest struct {
	Order risk.Order `json:"order"`
	// History, when present, replaces the stored order history.
	History []risk.Order `json:"history,omitempty"`
	// BaselineOrderValue, when present, replaces the stored average.
	BaselineOrderValue *float64 `json:"baseline_order_value,omitempty" validate:"omitempty,gte=0"`
}

// Validate checks the fields the service cannot screen without. It applies
// the same rules BindJSON does, so direct callers get the same errors.
func (r *ScreenRequest) Validate() error {
	return validation.Struct(requestValidator, r)
}
