package orchestrator

import (
	"fmt"
	"sync"

	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

// BudgetVerdict is the outcome of a pre-step budget check.
type BudgetVerdict int

const (
	// BudgetAllowed indicates the step may proceed.
	BudgetAllowed BudgetVerdict = iota
	// BudgetWarning indicates the step may proceed but the team is past the
	// warning threshold.
	BudgetWarning
	// BudgetExceeded indicates the step must not proceed.
	BudgetExceeded
)

// String returns a human-readable representation of the verdict.
func (v BudgetVerdict) String() string {
	switch v {
	case BudgetAllowed:
		return "allowed"
	case BudgetWarning:
		return "warning"
	case BudgetExceeded:
		return "exceeded"
	default:
		return "unknown"
	}
}

// DefaultWarningThreshold is the utilization at which warnings begin.
const DefaultWarningThreshold = 0.80

// BudgetCheck is the full result of a budget check.
type BudgetCheck struct {
	// Verdict is the decision.
	Verdict BudgetVerdict
	// Utilization is spend/limit before the step (0 when no limit is set).
	Utilization float64
	// Spend is the team's recorded spend so far.
	Spend float64
}

// BudgetEnforcer gates costed steps on a team's budget. Spend is seeded from
// the store and tracked in memory; Record writes through so a restarted
// engine re-seeds to the same number.
type BudgetEnforcer struct {
	mu               sync.Mutex
	teamID           string
	limit            *float64
	spend            float64
	warningThreshold float64
	costs            store.CostStore
}

// NewBudgetEnforcer creates an enforcer seeded with the team's recorded
// spend. A nil limit disables enforcement.
func NewBudgetEnforcer(teamID string, limit *float64, costs store.CostStore) (*BudgetEnforcer, error) {
	spend, err := costs.TeamSpend(teamID)
	if err != nil {
		return nil, fmt.Errorf("seed budget spend for team %s: %w", teamID, err)
	}
	return &BudgetEnforcer{
		teamID:           teamID,
		limit:            limit,
		spend:            spend,
		warningThreshold: DefaultWarningThreshold,
		costs:            costs,
	}, nil
}

// Check decides whether a step with the given estimated cost may run.
// With no limit the answer is always allowed. Warning fires on pre-call
// utilization above the threshold; exceeded fires when spend plus the
// estimate would overrun the limit.
func (b *BudgetEnforcer) Check(estimate float64) BudgetCheck {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit == nil {
		return BudgetCheck{Verdict: BudgetAllowed, Spend: b.spend}
	}

	limit := *b.limit
	utilization := b.spend / limit
	check := BudgetCheck{Utilization: utilization, Spend: b.spend}

	switch {
	case b.spend+estimate > limit:
		check.Verdict = BudgetExceeded
	case utilization > b.warningThreshold:
		check.Verdict = BudgetWarning
	default:
		check.Verdict = BudgetAllowed
	}
	return check
}

// Record persists a cost entry and folds it into the running spend. The
// RequestID makes retried recordings idempotent at the storage layer; the
// in-memory spend trusts the caller to record each request once.
func (b *BudgetEnforcer) Record(entry *models.CostEntry) error {
	entry.TeamID = b.teamID
	if err := b.costs.RecordCost(entry); err != nil {
		return fmt.Errorf("record cost for team %s: %w", b.teamID, err)
	}

	b.mu.Lock()
	b.spend += entry.Amount
	b.mu.Unlock()
	return nil
}

// Spend returns the current recorded spend.
func (b *BudgetEnforcer) Spend() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spend
}

// Utilization returns spend/limit, or 0 when no limit is set.
func (b *BudgetEnforcer) Utilization() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit == nil || *b.limit == 0 {
		return 0
	}
	return b.spend / *b.limit
}
