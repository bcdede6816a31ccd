package models

import "time"

// MemberRole distinguishes the manager from its workers.
type MemberRole string

const (
	// RoleManager reviews output and owns team-level decisions.
	RoleManager MemberRole = "manager"
	// RoleWorker executes assigned tasks.
	RoleWorker MemberRole = "worker"
)

// Valid returns true if the role is a known value.
func (r MemberRole) Valid() bool {
	return r == RoleManager || r == RoleWorker
}

// MemberStatus represents the availability of a member.
type MemberStatus string

const (
	// MemberStatusActive indicates the member is online and accepting work.
	MemberStatusActive MemberStatus = "active"
	// MemberStatusIdle indicates the member has no current assignments.
	MemberStatusIdle MemberStatus = "idle"
	// MemberStatusBusy indicates the member is at or near capacity.
	MemberStatusBusy MemberStatus = "busy"
	// MemberStatusOffline indicates the member is not accepting work.
	MemberStatusOffline MemberStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusActive, MemberStatusIdle, MemberStatusBusy, MemberStatusOffline:
		return true
	default:
		return false
	}
}

// Member is a manager or worker instance bound to exactly one team.
// Behavior differences between the roles are enforced by which operations
// the orchestrator invokes per role, not by the type itself.
type Member struct {
	// ID is the unique identifier for this member.
	ID string `json:"id"`
	// TeamID is the team this member belongs to.
	TeamID string `json:"team_id"`
	// Role is manager or worker.
	Role MemberRole `json:"role"`
	// Specialization is the worker's area of expertise (e.g. "Coder").
	Specialization string `json:"specialization,omitempty"`
	// Skills lists concrete capabilities within the specialization.
	Skills []string `json:"skills,omitempty"`
	// Status is the member's current availability.
	Status MemberStatus `json:"status"`
	// CurrentWorkload is the number of tasks currently assigned.
	CurrentWorkload int `json:"current_workload"`
	// MaxConcurrentTasks is the assignment capacity.
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
	// JoinedAt is when the member was materialized.
	JoinedAt time.Time `json:"joined_at"`
}

// HasCapacity reports whether the member can accept another assignment.
// Capacity takes precedence over the status flag.
func (m *Member) HasCapacity() bool {
	return m.CurrentWorkload < m.MaxConcurrentTasks
}

// WorkloadValid reports whether the workload invariant
// 0 <= CurrentWorkload <= MaxConcurrentTasks holds.
func (m *Member) WorkloadValid() bool {
	return m.CurrentWorkload >= 0 && m.CurrentWorkload <= m.MaxConcurrentTasks
}
