package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// LogOutcome records what happened after a signal was actioned. Logging
// twice for the same signal replaces the earlier record. The signal must
// exist; its review status is not checked, since teams sometimes respond
// before the queue catches up.
func (db *DB) LogOutcome(o model.Outcome) error {
	var exists int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM signals WHERE id = ?", o.SignalID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	loggedAt := o.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = time.Now().UTC()
	}

	_, err = db.conn.Exec(
		`INSERT OR REPLACE INTO outcomes (signal_id, responded, response_type, notes, logged_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.SignalID, boolToInt(o.Responded), string(o.ResponseType), o.Notes,
		loggedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("logging outcome: %w", err)
	}
	return nil
}

// GetOutcome returns the outcome for a signal, or ErrNotFound.
func (db *DB) GetOutcome(signalID string) (*model.Outcome, error) {
	row := db.conn.QueryRow(
		"SELECT signal_id, responded, response_type, notes, logged_at FROM outcomes WHERE signal_id = ?",
		signalID,
	)
	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOutcomes returns all logged outcomes, newest first.
func (db *DB) ListOutcomes() ([]model.Outcome, error) {
	rows, err := db.conn.Query(
		"SELECT signal_id, responded, response_type, notes, logged_at FROM outcomes ORDER BY logged_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*model.Outcome, error) {
	var (
		o         model.Outcome
		responded int
		loggedAt  string
	)
	if err := row.Scan(&o.SignalID, &responded, &o.ResponseType, &o.Notes, &loggedAt); err != nil {
		return nil, err
	}
	o.Responded = responded != 0
	o.LoggedAt = parseStoredTime(loggedAt)
	return &o, nil
}

// OutcomeMetrics aggregates the outcome log.
type OutcomeMetrics struct {
	Total      int     `json:"total"`
	Acted      int     `json:"acted"`
	Skipped    int     `json:"skipped"`
	ActionRate float64 `json:"action_rate"`
}

// Outcomes computes aggregate outcome metrics. ActionRate is 0 when
// nothing has been logged.
func (db *DB) Outcomes() (OutcomeMetrics, error) {
	var m OutcomeMetrics
	err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(responded), 0) FROM outcomes`,
	).Scan(&m.Total, &m.Acted)
	if err != nil {
		return m, err
	}
	m.Skipped = m.Total - m.Acted
	if m.Total > 0 {
		m.ActionRate = float64(m.Acted) / float64(m.Total)
	}
	return m, nil
}
