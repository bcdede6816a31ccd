package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// CreateTeam inserts a new team.
func (db *DB) CreateTeam(t *models.Team) error {
	metadata, _ := json.Marshal(t.Metadata)

	_, err := db.Exec(`
		INSERT INTO teams (id, goal, status, budget_limit, reason, metadata, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Goal, string(t.Status), t.BudgetLimit, t.Reason, string(metadata),
		formatTime(t.CreatedAt), formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// GetTeam retrieves a team by ID. Returns nil if not found.
func (db *DB) GetTeam(id string) (*models.Team, error) {
	row := db.QueryRow(`
		SELECT id, goal, status, budget_limit, reason, metadata, created_at, started_at, completed_at
		FROM teams WHERE id = ?
	`, id)

	t, err := scanTeam(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

// UpdateTeam updates a team's mutable fields.
func (db *DB) UpdateTeam(t *models.Team) error {
	metadata, _ := json.Marshal(t.Metadata)

	_, err := db.Exec(`
		UPDATE teams SET goal = ?, status = ?, budget_limit = ?, reason = ?, metadata = ?,
			started_at = ?, completed_at = ?
		WHERE id = ?
	`, t.Goal, string(t.Status), t.BudgetLimit, t.Reason, string(metadata),
		formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// ListTeams lists all teams, optionally filtered by status, newest first.
func (db *DB) ListTeams(status *models.TeamStatus) ([]models.Team, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, goal, status, budget_limit, reason, metadata, created_at, started_at, completed_at
			FROM teams WHERE status = ? ORDER BY created_at DESC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, goal, status, budget_limit, reason, metadata, created_at, started_at, completed_at
			FROM teams ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		t, err := scanTeam(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

// scanTeam scans one team row via the given scan function.
func scanTeam(scan func(...any) error) (*models.Team, error) {
	var t models.Team
	var createdAt string
	var startedAt, completedAt sql.NullString
	var reason, metadata sql.NullString
	var budgetLimit sql.NullFloat64

	err := scan(&t.ID, &t.Goal, &t.Status, &budgetLimit, &reason, &metadata,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if budgetLimit.Valid {
		t.BudgetLimit = &budgetLimit.Float64
	}
	if reason.Valid {
		t.Reason = reason.String
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		json.Unmarshal([]byte(metadata.String), &t.Metadata)
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}
