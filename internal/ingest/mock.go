package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// MockConnector reads posts from a local JSON file. Used for demos and
// end-to-end testing without network access.
type MockConnector struct {
	path string
}

// NewMockConnector creates a mock connector backed by a JSON file.
func NewMockConnector(path string) *MockConnector {
	return &MockConnector{path: path}
}

// Name implements PullConnector.
func (m *MockConnector) Name() string { return "mock" }

// mockPost is the on-disk shape: a signal with a string timestamp so hand
// written fixture files stay forgiving.
type mockPost struct {
	Actor     string         `json:"actor"`
	Author    string         `json:"author"` // accepted alias for actor
	Text      string         `json:"text"`
	Timestamp string         `json:"timestamp"`
	SourceID  string         `json:"source_id"`
	ID        string         `json:"id"` // accepted alias for source_id
	ReplyTo   *string        `json:"reply_to,omitempty"`
	Metrics   map[string]int `json:"metrics,omitempty"`
}

// Fetch loads and filters the file's posts. The since bound is inclusive.
func (m *MockConnector) Fetch(ctx context.Context, keywords []string, since time.Time, limit int) ([]model.Signal, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("reading mock posts: %w", err)
	}

	var posts []mockPost
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("parsing mock posts: %w", err)
	}

	var signals []model.Signal
	for _, p := range posts {
		if atLimit(len(signals), limit) {
			break
		}

		actor := p.Actor
		if actor == "" {
			actor = p.Author
		}
		sourceID := p.SourceID
		if sourceID == "" {
			sourceID = p.ID
		}

		ts := parsePostTime(p.Timestamp)
		if !withinWindow(ts, since) || !matchesKeywords(p.Text, keywords) {
			continue
		}

		signals = append(signals, model.Signal{
			ID:        model.NewSignalID(),
			Source:    m.Name(),
			Actor:     actor,
			Text:      p.Text,
			Timestamp: ts,
			SourceID:  sourceID,
			ReplyTo:   p.ReplyTo,
			Metrics:   p.Metrics,
		})
	}
	return signals, nil
}

// parsePostTime accepts RFC 3339 or a naive local-less timestamp. Anything
// unparseable gets the current time so the post still flows through.
func parsePostTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
