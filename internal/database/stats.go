package database

import "github.com/signalry/signalry/internal/model"

// Stats is a point-in-time summary of the store, computed on demand
// rather than maintained as counters.
type Stats struct {
	TotalSignals  int            `json:"total_signals"`
	Pending       int            `json:"pending"`
	Approved      int            `json:"approved"`
	Discarded     int            `json:"discarded"`
	MomentumFlags int            `json:"momentum_flags"`
	ByStage       map[string]int `json:"by_stage"`
	ByUrgency     map[string]int `json:"by_urgency"`
	ScoredItems   int            `json:"scored_items"`
	Outcomes      OutcomeMetrics `json:"outcomes"`
}

// Stats computes queue and classification counts with fresh queries.
func (db *DB) Stats() (*Stats, error) {
	s := &Stats{
		ByStage:   make(map[string]int),
		ByUrgency: make(map[string]int),
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM signals").Scan(&s.TotalSignals); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query("SELECT status, COUNT(*) FROM review_queue GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch status {
		case model.StatusPending:
			s.Pending = n
		case model.StatusApproved:
			s.Approved = n
		case model.StatusDiscarded:
			s.Discarded = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM classifications WHERE momentum_flag = 1",
	).Scan(&s.MomentumFlags); err != nil {
		return nil, err
	}

	if err := db.groupCount("SELECT intent_stage, COUNT(*) FROM classifications GROUP BY intent_stage", s.ByStage); err != nil {
		return nil, err
	}
	if err := db.groupCount("SELECT urgency, COUNT(*) FROM classifications GROUP BY urgency", s.ByUrgency); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM signal_items").Scan(&s.ScoredItems); err != nil {
		return nil, err
	}

	s.Outcomes, err = db.Outcomes()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) groupCount(query string, into map[string]int) error {
	rows, err := db.conn.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
