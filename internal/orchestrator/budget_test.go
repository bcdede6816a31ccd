package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

func costEntry(teamID, requestID string, amount float64) *models.CostEntry {
	return &models.CostEntry{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		RequestID: requestID,
		Category:  models.CostExecution,
		Provider:  "anthropic",
		Model:     "test-model",
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}

func TestBudgetEnforcer_NoLimit(t *testing.T) {
	db := setupTestStore(t)
	seedTeamRow(t, db, "team-1")

	b, err := NewBudgetEnforcer("team-1", nil, db)
	if err != nil {
		t.Fatalf("NewBudgetEnforcer failed: %v", err)
	}

	check := b.Check(1e9)
	if check.Verdict != BudgetAllowed {
		t.Errorf("expected allowed with no limit, got %s", check.Verdict)
	}
	if b.Utilization() != 0 {
		t.Errorf("expected zero utilization with no limit, got %f", b.Utilization())
	}
}

func TestBudgetEnforcer_Verdicts(t *testing.T) {
	db := setupTestStore(t)
	seedTeamRow(t, db, "team-1")

	limit := 10.0
	b, err := NewBudgetEnforcer("team-1", &limit, db)
	if err != nil {
		t.Fatalf("NewBudgetEnforcer failed: %v", err)
	}

	if check := b.Check(1.0); check.Verdict != BudgetAllowed {
		t.Errorf("fresh budget: expected allowed, got %s", check.Verdict)
	}

	// Spend to exactly the threshold. Warnings fire only past it.
	if err := b.Record(costEntry("team-1", "req-1", 8.0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if check := b.Check(1.0); check.Verdict != BudgetAllowed {
		t.Errorf("at threshold: expected allowed, got %s", check.Verdict)
	}

	if err := b.Record(costEntry("team-1", "req-2", 0.5)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	check := b.Check(1.0)
	if check.Verdict != BudgetWarning {
		t.Errorf("past threshold: expected warning, got %s", check.Verdict)
	}
	if check.Utilization != 0.85 {
		t.Errorf("expected utilization 0.85, got %f", check.Utilization)
	}

	// An estimate that would overrun the limit is refused outright.
	if check := b.Check(2.0); check.Verdict != BudgetExceeded {
		t.Errorf("overrunning estimate: expected exceeded, got %s", check.Verdict)
	}
}

func TestBudgetEnforcer_SeedsFromStore(t *testing.T) {
	db := setupTestStore(t)
	seedTeamRow(t, db, "team-1")

	limit := 10.0
	b, err := NewBudgetEnforcer("team-1", &limit, db)
	if err != nil {
		t.Fatalf("NewBudgetEnforcer failed: %v", err)
	}
	if err := b.Record(costEntry("team-1", "req-1", 4.0)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// A fresh enforcer over the same store sees the same spend.
	reseeded, err := NewBudgetEnforcer("team-1", &limit, db)
	if err != nil {
		t.Fatalf("NewBudgetEnforcer failed: %v", err)
	}
	if reseeded.Spend() != 4.0 {
		t.Errorf("expected reseeded spend 4.0, got %f", reseeded.Spend())
	}
}
