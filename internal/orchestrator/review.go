package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spectralhq/ghostcrew/internal/store"
	"github.com/spectralhq/ghostcrew/pkg/models"
)

// ReviewLoop drives the manager's review of submitted task output and
// applies the verdict to the task. The caller serializes task mutations;
// the loop only records messages and cost as side effects.
type ReviewLoop struct {
	reviewer Reviewer
	messages store.MessageStore
	budget   *BudgetEnforcer
	now      func() time.Time
}

// NewReviewLoop creates a review loop.
func NewReviewLoop(reviewer Reviewer, messages store.MessageStore, budget *BudgetEnforcer, now func() time.Time) *ReviewLoop {
	if now == nil {
		now = time.Now
	}
	return &ReviewLoop{reviewer: reviewer, messages: messages, budget: budget, now: now}
}

// Evaluate submits the task's output for review and applies the verdict.
//
//   - approve: task completes.
//   - revise: RevisionCount increments and the task moves to
//     revision_requested with the feedback recorded as a review_feedback
//     message; the runner reassigns it from there. A revise verdict at the
//     revision bound is ErrRevisionsExhausted and fails the task instead.
//   - reject: task fails with the feedback as the reason.
//
// The review call itself is costed and recorded against the team budget.
func (l *ReviewLoop) Evaluate(ctx context.Context, teamID, managerID string, task *models.Task) (*models.ReviewDecision, error) {
	if task.Status != models.TaskStatusReview {
		return nil, fmt.Errorf("%w: task %s is %s, review requires %s",
			ErrInvalidTransition, task.ID, task.Status, models.TaskStatusReview)
	}

	decision, err := l.reviewer.Review(ctx, task, task.Output)
	if err != nil {
		return nil, fmt.Errorf("review task %s: %w", task.ID, err)
	}

	l.recordCost(teamID, task.ID, decision)

	switch decision.Verdict {
	case models.VerdictApprove:
		now := l.now().UTC()
		task.Status = models.TaskStatusCompleted
		task.CompletedAt = &now
		debugLog("[review] task %s approved", task.ID)

	case models.VerdictRevise:
		if task.RevisionCount >= task.MaxRevisions {
			task.Status = models.TaskStatusFailed
			task.Reason = fmt.Sprintf("revisions exhausted after %d rounds: %s", task.RevisionCount, decision.Feedback)
			debugLog("[review] task %s revisions exhausted (%d)", task.ID, task.RevisionCount)
			return decision, fmt.Errorf("task %s: %w", task.ID, ErrRevisionsExhausted)
		}
		task.RevisionCount++
		task.Status = models.TaskStatusRevisionRequested
		l.recordFeedback(teamID, managerID, task, decision.Feedback)
		debugLog("[review] task %s sent back for revision %d/%d", task.ID, task.RevisionCount, task.MaxRevisions)

	case models.VerdictReject:
		task.Status = models.TaskStatusFailed
		task.Reason = "rejected by manager: " + decision.Feedback
		debugLog("[review] task %s rejected", task.ID)
	}

	return decision, nil
}

// recordFeedback appends the manager's revision feedback to the audit trail.
// Audit writes are best effort; a failed append never blocks the verdict.
func (l *ReviewLoop) recordFeedback(teamID, managerID string, task *models.Task, feedback string) {
	msg := &models.Message{
		ID:         uuid.New().String(),
		TeamID:     teamID,
		FromMember: managerID,
		ToMember:   task.AssignedTo,
		Type:       models.MessageReviewFeedback,
		Content:    feedback,
		Metadata:   map[string]string{"task_id": task.ID, "revision": fmt.Sprint(task.RevisionCount)},
		CreatedAt:  l.now().UTC(),
	}
	if err := l.messages.AppendMessage(msg); err != nil {
		debugLog("[review] append feedback message for task %s failed: %v", task.ID, err)
	}
}

func (l *ReviewLoop) recordCost(teamID, taskID string, decision *models.ReviewDecision) {
	if l.budget == nil || decision.Cost == 0 {
		return
	}
	entry := &models.CostEntry{
		ID:        uuid.New().String(),
		TeamID:    teamID,
		TaskID:    taskID,
		RequestID: decision.RequestID,
		Category:  models.CostReview,
		Provider:  decision.Provider,
		Model:     decision.Model,
		Amount:    decision.Cost,
		Units:     decision.InputTokens + decision.OutputTokens,
		CreatedAt: l.now().UTC(),
	}
	if err := l.budget.Record(entry); err != nil {
		debugLog("[review] record review cost for task %s failed: %v", taskID, err)
	}
}
