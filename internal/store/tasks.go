package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

const taskColumns = `id, team_id, parent_id, title, description, acceptance_criteria,
	specialization, status, assigned_to, assigned_by, revision_count, max_revisions,
	critical, input, output, reason, created_at, started_at, completed_at`

// CreateTask inserts a new task.
func (db *DB) CreateTask(t *models.Task) error {
	criteria, _ := json.Marshal(t.AcceptanceCriteria)

	_, err := db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.TeamID, t.ParentID, t.Title, t.Description, string(criteria),
		t.Specialization, string(t.Status), t.AssignedTo, t.AssignedBy, t.RevisionCount,
		t.MaxRevisions, boolToInt(t.Critical), t.Input, t.Output, t.Reason,
		formatTime(t.CreatedAt), formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns nil if not found.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask updates a task's mutable fields.
func (db *DB) UpdateTask(t *models.Task) error {
	criteria, _ := json.Marshal(t.AcceptanceCriteria)

	_, err := db.Exec(`
		UPDATE tasks SET title = ?, description = ?, acceptance_criteria = ?,
			specialization = ?, status = ?, assigned_to = ?, assigned_by = ?,
			revision_count = ?, max_revisions = ?, critical = ?, input = ?,
			output = ?, reason = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, t.Title, t.Description, string(criteria), t.Specialization, string(t.Status),
		t.AssignedTo, t.AssignedBy, t.RevisionCount, t.MaxRevisions,
		boolToInt(t.Critical), t.Input, t.Output, t.Reason,
		formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ListTasksByTeam lists a team's tasks in creation order.
func (db *DB) ListTasksByTeam(teamID string) ([]models.Task, error) {
	rows, err := db.Query(`SELECT `+taskColumns+` FROM tasks WHERE team_id = ? ORDER BY created_at, id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by team: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListTasksByParent lists all direct children of a task in creation order.
func (db *DB) ListTasksByParent(parentID string) ([]models.Task, error) {
	rows, err := db.Query(`SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? ORDER BY created_at, id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by parent: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// scanTasks scans task rows into a slice.
func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// scanTask scans one task row via the given scan function.
func scanTask(scan func(...any) error) (*models.Task, error) {
	var t models.Task
	var parentID, description, criteria, specialization sql.NullString
	var assignedTo, assignedBy sql.NullString
	var input, output, reason sql.NullString
	var critical int
	var createdAt string
	var startedAt, completedAt sql.NullString

	err := scan(&t.ID, &t.TeamID, &parentID, &t.Title, &description, &criteria,
		&specialization, &t.Status, &assignedTo, &assignedBy, &t.RevisionCount,
		&t.MaxRevisions, &critical, &input, &output, &reason, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if specialization.Valid {
		t.Specialization = specialization.String
	}

	if parentID.Valid {
		t.ParentID = parentID.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if criteria.Valid && criteria.String != "" && criteria.String != "null" {
		json.Unmarshal([]byte(criteria.String), &t.AcceptanceCriteria)
	}
	if assignedTo.Valid {
		t.AssignedTo = assignedTo.String
	}
	if assignedBy.Valid {
		t.AssignedBy = assignedBy.String
	}
	t.Critical = critical != 0
	if input.Valid {
		t.Input = input.String
	}
	if output.Valid {
		t.Output = output.String
	}
	if reason.Valid {
		t.Reason = reason.String
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
