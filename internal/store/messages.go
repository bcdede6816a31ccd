package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// AppendMessage inserts an audit message. Messages are append-only: there
// is intentionally no update or delete operation.
func (db *DB) AppendMessage(m *models.Message) error {
	metadata, _ := json.Marshal(m.Metadata)

	_, err := db.Exec(`
		INSERT INTO messages (id, team_id, from_member, to_member, type, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.TeamID, m.FromMember, m.ToMember, string(m.Type), m.Content,
		string(metadata), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessagesByTeam lists a team's messages in creation order, narrowed by
// the given filter.
func (db *DB) ListMessagesByTeam(teamID string, filter MessageFilter) ([]models.Message, error) {
	var conds []string
	var args []any

	conds = append(conds, "team_id = ?")
	args = append(args, teamID)

	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, formatTime(filter.Until))
	}

	query := `
		SELECT id, team_id, from_member, to_member, type, content, metadata, created_at
		FROM messages WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at, id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages by team: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var fromMember, toMember, metadata sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.TeamID, &fromMember, &toMember, &m.Type,
			&m.Content, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if fromMember.Valid {
			m.FromMember = fromMember.String
		}
		if toMember.Valid {
			m.ToMember = toMember.String
		}
		if metadata.Valid && metadata.String != "" && metadata.String != "null" {
			json.Unmarshal([]byte(metadata.String), &m.Metadata)
		}
		m.CreatedAt, _ = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
