package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

// CheckpointManager records execution progress durably, step by step. Steps
// for a task are contiguous from zero; a step is only considered started
// after the previous one is on disk, so resumption never sees a gap.
type CheckpointManager struct {
	checkpoints store.CheckpointStore
	now         func() time.Time
}

// NewCheckpointManager creates a checkpoint manager over the given store.
func NewCheckpointManager(checkpoints store.CheckpointStore, now func() time.Time) *CheckpointManager {
	if now == nil {
		now = time.Now
	}
	return &CheckpointManager{checkpoints: checkpoints, now: now}
}

// Create durably records one step. The step number must be exactly one past
// the latest recorded step (or zero for the first); anything else is
// ErrNonContiguousStep. Re-creating an existing step with identical output
// is an idempotent no-op, which makes crash-then-retry safe.
func (m *CheckpointManager) Create(taskID string, step int, result *models.StepResult) (*models.Checkpoint, error) {
	latest, err := m.checkpoints.LatestCheckpoint(taskID)
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint for task %s: %w", taskID, err)
	}

	next := 0
	if latest != nil {
		next = latest.StepNumber + 1
	}
	// One step behind is a retry of the already-durable step; the store
	// absorbs it when the payload matches.
	if step != next && !(latest != nil && step == latest.StepNumber) {
		return nil, fmt.Errorf("%w: task %s step %d, expected %d", ErrNonContiguousStep, taskID, step, next)
	}

	cp := &models.Checkpoint{
		ID:                 uuid.New().String(),
		TaskID:             taskID,
		StepNumber:         step,
		StepOutput:         result.Output,
		AccumulatedContext: result.AccumulatedContext,
		InputTokens:        result.InputTokens,
		OutputTokens:       result.OutputTokens,
		Cost:               result.Cost,
		CreatedAt:          m.now().UTC(),
	}
	if err := m.checkpoints.CreateCheckpoint(cp); err != nil {
		return nil, fmt.Errorf("create checkpoint for task %s step %d: %w", taskID, step, err)
	}
	return cp, nil
}

// Latest returns the task's resumption point: the highest recorded step, or
// nil when the task has never checkpointed.
func (m *CheckpointManager) Latest(taskID string) (*models.Checkpoint, error) {
	cp, err := m.checkpoints.LatestCheckpoint(taskID)
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint for task %s: %w", taskID, err)
	}
	return cp, nil
}

// History returns the task's full checkpoint trail in step order.
func (m *CheckpointManager) History(taskID string) ([]models.Checkpoint, error) {
	cps, err := m.checkpoints.ListCheckpointsByTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint history for task %s: %w", taskID, err)
	}
	return cps, nil
}

// NextStep returns the step number the task should execute next.
func (m *CheckpointManager) NextStep(taskID string) (int, error) {
	latest, err := m.checkpoints.LatestCheckpoint(taskID)
	if err != nil {
		return 0, fmt.Errorf("load latest checkpoint for task %s: %w", taskID, err)
	}
	if latest == nil {
		return 0, nil
	}
	return latest.StepNumber + 1, nil
}
