package orchestrator

import (
	"time"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventTeamStatusChanged indicates a team moved through its lifecycle.
	EventTeamStatusChanged EventType = "team_status_changed"
	// EventTaskStatusChanged indicates a task moved through its state machine.
	EventTaskStatusChanged EventType = "task_status_changed"
	// EventTaskAssigned indicates a task was handed to a worker.
	EventTaskAssigned EventType = "task_assigned"
	// EventStepCheckpointed indicates an execution step was durably recorded.
	EventStepCheckpointed EventType = "step_checkpointed"
	// EventReviewDecided indicates the manager ruled on submitted output.
	EventReviewDecided EventType = "review_decided"
	// EventBudgetWarning indicates a team crossed the budget warning threshold.
	EventBudgetWarning EventType = "budget_warning"
	// EventBudgetExceeded indicates a step was denied for budget reasons.
	EventBudgetExceeded EventType = "budget_exceeded"
	// EventEscalation indicates an unrecoverable failure needs an operator.
	EventEscalation EventType = "escalation"
	// EventMessageAppended indicates a new audit message was recorded.
	EventMessageAppended EventType = "message_appended"
)

// Event is one engine occurrence, fanned out to subscribers. Delivery is
// at least once and lossy under backpressure; consumers needing the full
// record reconcile against the store.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TeamID is the team this event belongs to.
	TeamID string
	// TaskID is the related task, if applicable.
	TaskID string
	// MemberID is the related member, if applicable.
	MemberID string
	// Status carries the new team or task status for status events.
	Status string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Utilization is the budget utilization for budget events (0.0-1.0+).
	Utilization float64
	// Verdict carries the review outcome for review events.
	Verdict models.ReviewVerdict
	// StepNumber is the checkpoint step for checkpoint events.
	StepNumber int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
