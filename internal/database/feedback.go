package database

import (
	"database/sql"
	"fmt"

	"github.com/signalry/signalry/internal/model"
)

// Feedback ratings.
const (
	RatingPositive = "positive"
	RatingNegative = "negative"
)

// Feedback is a reviewer's thumbs-up or thumbs-down on a classification.
type Feedback struct {
	SignalID string `json:"signal_id"`
	Rating   string `json:"rating"`
}

// UpsertFeedback records a reviewer rating for a signal, replacing any
// earlier rating. The signal must exist and the rating must be valid.
func (db *DB) UpsertFeedback(signalID, rating string) error {
	if rating != RatingPositive && rating != RatingNegative {
		return fmt.Errorf("invalid rating %q, want %s or %s", rating, RatingPositive, RatingNegative)
	}

	var exists int
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM signals WHERE id = ?", signalID,
	).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO feedback (signal_id, rating) VALUES (?, ?)",
		signalID, rating,
	)
	return err
}

// GetFeedback returns the stored rating for a signal, or ErrNotFound.
func (db *DB) GetFeedback(signalID string) (string, error) {
	var rating string
	err := db.conn.QueryRow(
		"SELECT rating FROM feedback WHERE signal_id = ?", signalID,
	).Scan(&rating)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return rating, err
}

// FeedbackCounts tallies ratings per classification dimension, used to
// spot systematically wrong keyword rules.
type FeedbackCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// FeedbackByStage aggregates ratings by the intent stage of the rated
// classification.
func (db *DB) FeedbackByStage() (map[model.IntentStage]FeedbackCounts, error) {
	rows, err := db.conn.Query(`
		SELECT c.intent_stage, f.rating, COUNT(*)
		FROM feedback f JOIN classifications c ON c.signal_id = f.signal_id
		GROUP BY c.intent_stage, f.rating`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.IntentStage]FeedbackCounts)
	for rows.Next() {
		var (
			stage  string
			rating string
			n      int
		)
		if err := rows.Scan(&stage, &rating, &n); err != nil {
			return nil, err
		}
		counts := out[model.IntentStage(stage)]
		if rating == RatingPositive {
			counts.Positive += n
		} else {
			counts.Negative += n
		}
		out[model.IntentStage(stage)] = counts
	}
	return out, rows.Err()
}
