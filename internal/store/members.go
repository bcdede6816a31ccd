package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// CreateMember inserts a new member.
func (db *DB) CreateMember(m *models.Member) error {
	skills, _ := json.Marshal(m.Skills)

	_, err := db.Exec(`
		INSERT INTO members (id, team_id, role, specialization, skills, status, current_workload, max_concurrent_tasks, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.TeamID, string(m.Role), m.Specialization, string(skills),
		string(m.Status), m.CurrentWorkload, m.MaxConcurrentTasks, formatTime(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// GetMember retrieves a member by ID. Returns nil if not found.
func (db *DB) GetMember(id string) (*models.Member, error) {
	row := db.QueryRow(`
		SELECT id, team_id, role, specialization, skills, status, current_workload, max_concurrent_tasks, joined_at
		FROM members WHERE id = ?
	`, id)

	m, err := scanMember(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// UpdateMember updates a member's mutable fields.
func (db *DB) UpdateMember(m *models.Member) error {
	skills, _ := json.Marshal(m.Skills)

	_, err := db.Exec(`
		UPDATE members SET specialization = ?, skills = ?, status = ?, current_workload = ?, max_concurrent_tasks = ?
		WHERE id = ?
	`, m.Specialization, string(skills), string(m.Status), m.CurrentWorkload, m.MaxConcurrentTasks, m.ID)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

// ListMembersByTeam lists a team's members in join order.
func (db *DB) ListMembersByTeam(teamID string) ([]models.Member, error) {
	rows, err := db.Query(`
		SELECT id, team_id, role, specialization, skills, status, current_workload, max_concurrent_tasks, joined_at
		FROM members WHERE team_id = ? ORDER BY joined_at
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list members by team: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// scanMember scans one member row via the given scan function.
func scanMember(scan func(...any) error) (*models.Member, error) {
	var m models.Member
	var skills, specialization sql.NullString
	var joinedAt string

	err := scan(&m.ID, &m.TeamID, &m.Role, &specialization, &skills, &m.Status,
		&m.CurrentWorkload, &m.MaxConcurrentTasks, &joinedAt)
	if err != nil {
		return nil, err
	}

	if specialization.Valid {
		m.Specialization = specialization.String
	}
	if skills.Valid && skills.String != "" && skills.String != "null" {
		json.Unmarshal([]byte(skills.String), &m.Skills)
	}
	m.JoinedAt, _ = parseTime(joinedAt)
	return &m, nil
}
