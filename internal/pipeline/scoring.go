package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/signalry/signalry/internal/database"
	"github.com/signalry/signalry/internal/model"
	"github.com/signalry/signalry/internal/score"
)

// ScoreResult summarizes a scoring run.
type ScoreResult struct {
	Loaded  int                `json:"loaded"`
	Dropped int                `json:"dropped"` // too short or zero priority
	Stored  int                `json:"stored"`
	Items   []model.SignalItem `json:"items"`
}

// ScoreFile loads raw posts from a JSON file, scores them, and stores the
// surviving items. Rescoring the same file replaces earlier rows.
func ScoreFile(db *database.DB, path string) (*ScoreResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading posts: %w", err)
	}

	var posts []model.RawPost
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("parsing posts: %w", err)
	}

	items := score.ScoreAll(posts)
	if err := db.UpsertSignalItems(items); err != nil {
		return nil, fmt.Errorf("storing items: %w", err)
	}

	log.Printf("scored %d posts: %d stored, %d dropped", len(posts), len(items), len(posts)-len(items))
	return &ScoreResult{
		Loaded:  len(posts),
		Dropped: len(posts) - len(items),
		Stored:  len(items),
		Items:   items,
	}, nil
}
