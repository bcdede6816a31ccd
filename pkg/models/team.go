// Package models defines the core entities shared across ghostcrew:
// teams, members, tasks, messages, checkpoints, and cost entries.
package models

import "time"

// TeamStatus represents the lifecycle state of a team.
type TeamStatus string

const (
	// TeamStatusPending indicates the team has been created but not formed.
	TeamStatusPending TeamStatus = "pending"
	// TeamStatusForming indicates the team is analyzing its goal and
	// materializing workers.
	TeamStatusForming TeamStatus = "forming"
	// TeamStatusActive indicates the team is executing tasks.
	TeamStatusActive TeamStatus = "active"
	// TeamStatusCompleted indicates the team finished its mission.
	TeamStatusCompleted TeamStatus = "completed"
	// TeamStatusFailed indicates the team failed before completion.
	TeamStatusFailed TeamStatus = "failed"
	// TeamStatusArchived indicates the team has been archived after a
	// terminal state.
	TeamStatusArchived TeamStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s TeamStatus) Valid() bool {
	switch s {
	case TeamStatusPending, TeamStatusForming, TeamStatusActive,
		TeamStatusCompleted, TeamStatusFailed, TeamStatusArchived:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further lifecycle transitions are possible
// other than archival.
func (s TeamStatus) Terminal() bool {
	return s == TeamStatusCompleted || s == TeamStatusFailed
}

// CanTransitionTo reports whether the transition from s to next is legal.
// Teams move forward only; there is no resurrection after a terminal state.
func (s TeamStatus) CanTransitionTo(next TeamStatus) bool {
	switch s {
	case TeamStatusPending:
		return next == TeamStatusForming || next == TeamStatusFailed
	case TeamStatusForming:
		return next == TeamStatusActive || next == TeamStatusFailed
	case TeamStatusActive:
		return next == TeamStatusCompleted || next == TeamStatusFailed
	case TeamStatusCompleted, TeamStatusFailed:
		return next == TeamStatusArchived
	default:
		return false
	}
}

// Team represents one ephemeral mission: a goal, a roster of members, and
// the task tree decomposed from the goal.
type Team struct {
	// ID is the unique identifier for this team.
	ID string `json:"id"`
	// Goal is the natural-language objective the team was formed for.
	Goal string `json:"goal"`
	// Status is the current lifecycle state.
	Status TeamStatus `json:"status"`
	// BudgetLimit is the optional spending ceiling in USD. Nil means no limit.
	BudgetLimit *float64 `json:"budget_limit,omitempty"`
	// Reason records why the team failed, if it did.
	Reason string `json:"reason,omitempty"`
	// Metadata holds free-form key/value annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
	// CreatedAt is when the team was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the team began executing, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the team reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
