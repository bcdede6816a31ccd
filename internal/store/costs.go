package store

import (
	"fmt"

	"github.com/spectralhq/ghostcrew/pkg/models"
)

// RecordCost appends a cost entry. Entries are deduplicated on RequestID so
// a retried write after an uncertain result cannot double-count spend.
// Recording never fails for budget reasons, only for storage errors.
func (db *DB) RecordCost(e *models.CostEntry) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO cost_entries (id, team_id, task_id, request_id, category, provider, model, amount, units, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TeamID, e.TaskID, e.RequestID, string(e.Category), e.Provider,
		e.Model, e.Amount, e.Units, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("record cost: %w", err)
	}
	return nil
}

// TeamSpend returns the running sum of a team's cost entries in USD.
func (db *DB) TeamSpend(teamID string) (float64, error) {
	row := db.QueryRow(`
		SELECT COALESCE(SUM(amount), 0) FROM cost_entries WHERE team_id = ?
	`, teamID)

	var spend float64
	if err := row.Scan(&spend); err != nil {
		return 0, fmt.Errorf("team spend: %w", err)
	}
	return spend, nil
}

// CostBreakdown aggregates a team's spend by category, provider, and model.
func (db *DB) CostBreakdown(teamID string) ([]CostAggregate, error) {
	rows, err := db.Query(`
		SELECT category, provider, model, SUM(amount), SUM(units)
		FROM cost_entries WHERE team_id = ?
		GROUP BY category, provider, model
		ORDER BY category, provider, model
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("cost breakdown: %w", err)
	}
	defer rows.Close()

	var breakdown []CostAggregate
	for rows.Next() {
		var agg CostAggregate
		var category string
		if err := rows.Scan(&category, &agg.Provider, &agg.Model, &agg.Amount, &agg.Units); err != nil {
			return nil, fmt.Errorf("scan cost aggregate: %w", err)
		}
		agg.Category = models.CostCategory(category)
		breakdown = append(breakdown, agg)
	}
	return breakdown, rows.Err()
}
