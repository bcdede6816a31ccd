// Package store provides SQLite-based persistence for ghostcrew.
package store

import (
	"io"
	"time"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// MessageFilter narrows an audit query. Zero values mean "no constraint".
type MessageFilter struct {
	// Type restricts results to one message type.
	Type models.MessageType
	// Since restricts results to messages created at or after this time.
	Since time.Time
	// Until restricts results to messages created before this time.
	Until time.Time
}

// CostAggregate is one row of a team's cost breakdown.
type CostAggregate struct {
	Category models.CostCategory
	Provider string
	Model    string
	Amount   float64
	Units    int64
}

// TeamStore handles team persistence.
type TeamStore interface {
	CreateTeam(t *models.Team) error
	GetTeam(id string) (*models.Team, error)
	UpdateTeam(t *models.Team) error
	ListTeams(status *models.TeamStatus) ([]models.Team, error)
}

// MemberStore handles member persistence.
type MemberStore interface {
	CreateMember(m *models.Member) error
	GetMember(id string) (*models.Member, error)
	UpdateMember(m *models.Member) error
	ListMembersByTeam(teamID string) ([]models.Member, error)
}

// TaskStore handles task persistence.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
	ListTasksByTeam(teamID string) ([]models.Task, error)
	ListTasksByParent(parentID string) ([]models.Task, error)
}

// MessageStore handles the append-only audit trail.
type MessageStore interface {
	AppendMessage(m *models.Message) error
	ListMessagesByTeam(teamID string, filter MessageFilter) ([]models.Message, error)
}

// CheckpointStore handles the append-only checkpoint log. The storage
// boundary enforces step uniqueness per task; the contiguity invariant is
// enforced by the checkpoint manager above it.
type CheckpointStore interface {
	CreateCheckpoint(c *models.Checkpoint) error
	LatestCheckpoint(taskID string) (*models.Checkpoint, error)
	ListCheckpointsByTask(taskID string) ([]models.Checkpoint, error)
}

// CostStore handles append-only cost recording and spend queries.
type CostStore interface {
	RecordCost(e *models.CostEntry) error
	TeamSpend(teamID string) (float64, error)
	CostBreakdown(teamID string) ([]CostAggregate, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for ghostcrew persistence. It lets the
// orchestrator work with any backend without depending on the concrete
// SQLite implementation.
type Store interface {
	io.Closer
	Migrator
	TeamStore
	MemberStore
	TaskStore
	MessageStore
	CheckpointStore
	CostStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store           = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ TeamStore       = (*DB)(nil)
	_ MemberStore     = (*DB)(nil)
	_ TaskStore       = (*DB)(nil)
	_ MessageStore    = (*DB)(nil)
	_ CheckpointStore = (*DB)(nil)
	_ CostStore       = (*DB)(nil)
)
