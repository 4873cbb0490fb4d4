package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// AddReviewItem inserts a signal with its classification and queues it as
// pending, all in one transaction. Returns false when the signal's
// source_id (or id) already exists; duplication is a normal outcome, not
// an error, and the stored original is never touched.
func (db *DB) AddReviewItem(sig model.Signal, cls model.Classification) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("begin add: %w", err)
	}
	defer tx.Rollback()

	var metrics *string
	if len(sig.Metrics) > 0 {
		data, err := json.Marshal(sig.Metrics)
		if err != nil {
			return false, fmt.Errorf("marshaling metrics: %w", err)
		}
		s := string(data)
		metrics = &s
	}

	_, err = tx.Exec(
		`INSERT INTO signals (id, source, actor, text, timestamp, source_id, reply_to, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Source, sig.Actor, sig.Text,
		sig.Timestamp.UTC().Format(time.RFC3339), sig.SourceID, sig.ReplyTo, metrics,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("inserting signal: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO classifications
		(signal_id, intent_stage, primary_pain, urgency, confidence, momentum_flag, recommended_action)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cls.SignalID, string(cls.IntentStage), cls.PrimaryPain, string(cls.Urgency),
		cls.Confidence, boolToInt(cls.MomentumFlag), cls.RecommendedAction,
	)
	if err != nil {
		return false, fmt.Errorf("inserting classification: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO review_queue (signal_id, status) VALUES (?, ?)`,
		sig.ID, model.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("queueing signal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit add: %w", err)
	}
	return true, nil
}

// ListByStatus returns review items with the given status, momentum-flagged
// items first, then by urgency rank, then by descending confidence.
func (db *DB) ListByStatus(status string, limit int) ([]model.ReviewItem, error) {
	return db.queryItems("rq.status = ?", limit, status)
}

// ListAll returns review items regardless of status, same ordering.
func (db *DB) ListAll(limit int) ([]model.ReviewItem, error) {
	return db.queryItems("1=1", limit)
}

// GetReviewItem returns a single review item by full signal ID, or
// ErrNotFound.
func (db *DB) GetReviewItem(signalID string) (*model.ReviewItem, error) {
	items, err := db.queryItems("s.id = ?", 1, signalID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

const urgencyOrder = `CASE c.urgency
	WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END`

func (db *DB) queryItems(where string, limit int, params ...any) ([]model.ReviewItem, error) {
	query := fmt.Sprintf(`
		SELECT s.id, s.source, s.actor, s.text, s.timestamp, s.source_id, s.reply_to, s.metrics,
			c.intent_stage, c.primary_pain, c.urgency, c.confidence, c.momentum_flag, c.recommended_action,
			rq.status, rq.reviewed_at
		FROM review_queue rq
		JOIN signals s ON rq.signal_id = s.id
		JOIN classifications c ON c.signal_id = s.id
		WHERE %s
		ORDER BY c.momentum_flag DESC, %s, c.confidence DESC
		LIMIT ?`, where, urgencyOrder)

	rows, err := db.conn.Query(query, append(params, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanReviewItem(rows *sql.Rows) (*model.ReviewItem, error) {
	var (
		item       model.ReviewItem
		ts         string
		metrics    *string
		momentum   int
		reviewedAt *string
	)
	if err := rows.Scan(
		&item.Signal.ID, &item.Signal.Source, &item.Signal.Actor, &item.Signal.Text,
		&ts, &item.Signal.SourceID, &item.Signal.ReplyTo, &metrics,
		&item.Classification.IntentStage, &item.Classification.PrimaryPain,
		&item.Classification.Urgency, &item.Classification.Confidence,
		&momentum, &item.Classification.RecommendedAction,
		&item.Status, &reviewedAt,
	); err != nil {
		return nil, err
	}

	item.Classification.SignalID = item.Signal.ID
	item.Classification.MomentumFlag = momentum != 0
	item.Signal.Timestamp = parseStoredTime(ts)

	if metrics != nil {
		if err := json.Unmarshal([]byte(*metrics), &item.Signal.Metrics); err != nil {
			item.Signal.Metrics = nil
		}
	}
	if reviewedAt != nil {
		t := parseStoredTime(*reviewedAt)
		item.ReviewedAt = &t
	}
	return &item, nil
}

// Approve transitions a pending item to approved. Approved and discarded
// are terminal.
func (db *DB) Approve(signalID string) error {
	return db.transition(signalID, model.StatusApproved)
}

// Discard transitions a pending item to discarded.
func (db *DB) Discard(signalID string) error {
	return db.transition(signalID, model.StatusDiscarded)
}

func (db *DB) transition(signalID, status string) error {
	var current string
	err := db.conn.QueryRow(
		"SELECT status FROM review_queue WHERE signal_id = ?", signalID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current != model.StatusPending {
		return fmt.Errorf("%w: status is %s", ErrAlreadyReviewed, current)
	}

	_, err = db.conn.Exec(
		"UPDATE review_queue SET status = ?, reviewed_at = ? WHERE signal_id = ?",
		status, time.Now().UTC().Format(time.RFC3339), signalID,
	)
	return err
}

// ResolveSignalID expands a signal ID prefix to the full ID. Exactly one
// match is required: zero matches is ErrNotFound, more than one is
// ErrAmbiguous with the candidates listed.
func (db *DB) ResolveSignalID(prefix string) (string, error) {
	rows, err := db.conn.Query(
		"SELECT id FROM signals WHERE id LIKE ? || '%' LIMIT 10", prefix,
	)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%w: %q matches %s", ErrAmbiguous, prefix, strings.Join(shorten(ids), ", "))
}

func shorten(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if len(id) > 12 {
			id = id[:12]
		}
		out[i] = id
	}
	return out
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
