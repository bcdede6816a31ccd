package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been assigned.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned indicates a worker has been assigned.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusInProgress indicates the worker has started execution.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusReview indicates output has been submitted for manager review.
	TaskStatusReview TaskStatus = "review"
	// TaskStatusRevisionRequested indicates the manager asked for changes.
	TaskStatusRevisionRequested TaskStatus = "revision_requested"
	// TaskStatusCompleted indicates the manager approved the output.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task ended unsuccessfully.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusReview, TaskStatusRevisionRequested, TaskStatusCompleted,
		TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the task can make no further progress.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether the transition from s to next is legal.
// Any non-terminal state may transition to failed (unrecoverable errors
// divert directly to failed regardless of position in the lifecycle).
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if next == TaskStatusFailed {
		return !s.Terminal()
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusAssigned
	case TaskStatusAssigned:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next == TaskStatusReview
	case TaskStatusReview:
		return next == TaskStatusCompleted || next == TaskStatusRevisionRequested
	case TaskStatusRevisionRequested:
		return next == TaskStatusAssigned
	default:
		return false
	}
}

// DefaultMaxRevisions bounds the review/revision loop per task.
const DefaultMaxRevisions = 3

// Task is a unit of work, optionally nested under a parent task. A task's
// dependencies are exactly its unresolved children: the tree models
// hierarchical decomposition, not a general DAG.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// TeamID is the team that owns this task.
	TeamID string `json:"team_id"`
	// ParentID is the ID of the parent task, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// AcceptanceCriteria defines the ordered criteria for completion.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// Specialization names the worker specialization the task wants.
	Specialization string `json:"specialization,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// AssignedTo is the member executing the task (weak reference).
	AssignedTo string `json:"assigned_to,omitempty"`
	// AssignedBy is the member that made the assignment (weak reference).
	AssignedBy string `json:"assigned_by,omitempty"`
	// RevisionCount is the number of revisions requested so far.
	RevisionCount int `json:"revision_count"`
	// MaxRevisions bounds the revision loop. Zero means no revisions allowed.
	MaxRevisions int `json:"max_revisions"`
	// Critical indicates the task is on the mission's critical path: its
	// failure fails the parent. Non-critical failures leave siblings and
	// the parent schedulable.
	Critical bool `json:"critical"`
	// Input is the task's input payload.
	Input string `json:"input,omitempty"`
	// Output is the task's final output payload.
	Output string `json:"output,omitempty"`
	// Reason records why the task failed, if it did.
	Reason string `json:"reason,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution first began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RevisionsValid reports whether 0 <= RevisionCount <= MaxRevisions holds.
func (t *Task) RevisionsValid() bool {
	return t.RevisionCount >= 0 && t.RevisionCount <= t.MaxRevisions
}
