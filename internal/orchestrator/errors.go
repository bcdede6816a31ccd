// Package orchestrator coordinates agent teams through task decomposition,
// execution, review, and checkpoint-based recovery.
package orchestrator

import "errors"

var (
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidParent indicates a task references a missing parent or one
	// belonging to another team.
	ErrInvalidParent = errors.New("invalid parent task")
	// ErrInvalidTeamSize indicates a worker roster outside the 3-5 range.
	ErrInvalidTeamSize = errors.New("team must have 3 to 5 workers")
	// ErrCapacityExceeded indicates an assignment would push a member past
	// its concurrent task limit.
	ErrCapacityExceeded = errors.New("member capacity exceeded")
	// ErrNonContiguousStep indicates a checkpoint step number that skips ahead.
	ErrNonContiguousStep = errors.New("checkpoint step not contiguous")
	// ErrRevisionsExhausted indicates a revision was requested past the bound.
	ErrRevisionsExhausted = errors.New("revision limit exhausted")
	// ErrBudgetExceeded indicates a step was denied because it would
	// overrun the team budget.
	ErrBudgetExceeded = errors.New("team budget exceeded")
	// ErrTeamNotFound indicates an operation referenced an unknown team.
	ErrTeamNotFound = errors.New("team not found")
	// ErrTaskNotFound indicates an operation referenced an unknown task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoEligibleWorker indicates no worker matches a task's needs right now.
	ErrNoEligibleWorker = errors.New("no eligible worker")
)
