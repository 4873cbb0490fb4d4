package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// UpsertSignalItems stores scored signal items in one transaction,
// replacing earlier rows with the same ID so a rescore is idempotent.
func (db *DB) UpsertSignalItems(items []model.SignalItem) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO signal_items
		(id, source_id, text, author, timestamp, format, signal_type,
		 priority_score, severity_score, recurrence_score, business_weight,
		 account_tier, reasons, recommended_action)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		reasons, err := json.Marshal(it.Reasons)
		if err != nil {
			return fmt.Errorf("marshaling reasons for %s: %w", it.ID, err)
		}
		_, err = stmt.Exec(
			it.ID, it.SourceID, it.Text, it.Author,
			it.Timestamp.UTC().Format(time.RFC3339),
			it.Format, it.SignalType,
			it.PriorityScore, it.SeverityScore, it.RecurrenceScore, it.BusinessWeight,
			it.AccountTier, string(reasons), it.RecommendedAction,
		)
		if err != nil {
			return fmt.Errorf("storing item %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

// TopSignalItems returns the n highest-priority scored items. Ties break
// on severity, then ID for a stable order.
func (db *DB) TopSignalItems(n int) ([]model.SignalItem, error) {
	rows, err := db.conn.Query(`
		SELECT id, source_id, text, author, timestamp, format, signal_type,
			priority_score, severity_score, recurrence_score, business_weight,
			account_tier, reasons, recommended_action
		FROM signal_items
		ORDER BY priority_score DESC, severity_score DESC, id
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.SignalItem
	for rows.Next() {
		var (
			it      model.SignalItem
			ts      string
			reasons *string
		)
		if err := rows.Scan(
			&it.ID, &it.SourceID, &it.Text, &it.Author, &ts,
			&it.Format, &it.SignalType,
			&it.PriorityScore, &it.SeverityScore, &it.RecurrenceScore, &it.BusinessWeight,
			&it.AccountTier, &reasons, &it.RecommendedAction,
		); err != nil {
			return nil, err
		}
		it.Timestamp = parseStoredTime(ts)
		if reasons != nil {
			if err := json.Unmarshal([]byte(*reasons), &it.Reasons); err != nil {
				it.Reasons = nil
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
