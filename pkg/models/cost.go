package models

import "time"

// CostCategory classifies what a cost entry paid for.
type CostCategory string

const (
	// CostAnalysis covers goal analysis and team formation calls.
	CostAnalysis CostCategory = "analysis"
	// CostDecomposition covers task decomposition calls.
	CostDecomposition CostCategory = "decomposition"
	// CostExecution covers worker execution steps.
	CostExecution CostCategory = "execution"
	// CostReview covers manager review calls.
	CostReview CostCategory = "review"
)

// Valid returns true if the category is a known value.
func (c CostCategory) Valid() bool {
	switch c {
	case CostAnalysis, CostDecomposition, CostExecution, CostReview:
		return true
	default:
		return false
	}
}

// CostEntry is an immutable record attributing a monetary amount to a team
// and optionally a specific task. Entries are append-only; the running sum
// of Amount for a team is the team's current spend.
type CostEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// TeamID is the team the cost is attributed to.
	TeamID string `json:"team_id"`
	// TaskID is the task the cost is attributed to, if any (weak reference).
	TaskID string `json:"task_id,omitempty"`
	// RequestID deduplicates retried writes; recording the same RequestID
	// twice is a no-op at the storage boundary.
	RequestID string `json:"request_id"`
	// Category classifies the operation that incurred the cost.
	Category CostCategory `json:"category"`
	// Provider is the upstream provider (e.g. "anthropic").
	Provider string `json:"provider"`
	// Model is the model identifier the cost was incurred against.
	Model string `json:"model"`
	// Amount is the cost in USD.
	Amount float64 `json:"amount"`
	// Units is the unit count the amount covers (e.g. tokens).
	Units int64 `json:"units"`
	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time `json:"created_at"`
}
