package report

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/signalry/signalry/internal/database"
	"github.com/signalry/signalry/internal/model"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *database.DB, sourceID, actor string, momentumFlag bool) {
	t.Helper()
	sig := model.Signal{
		ID:        model.NewSignalID(),
		Source:    "mock",
		Actor:     actor,
		Text:      "the sync flow keeps failing for " + actor,
		Timestamp: time.Now().UTC(),
		SourceID:  sourceID,
	}
	cls := model.Classification{
		SignalID:          sig.ID,
		IntentStage:       model.StageChurning,
		PrimaryPain:       "sync reliability",
		Urgency:           model.UrgencyHigh,
		Confidence:        0.7,
		MomentumFlag:      momentumFlag,
		RecommendedAction: "reach out",
	}
	if added, err := db.AddReviewItem(sig, cls); err != nil || !added {
		t.Fatalf("seed: added=%v err=%v", added, err)
	}
}

func TestBuildEmptyQueue(t *testing.T) {
	db := openTestDB(t)
	text, err := Build(db)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(text, "# Signal Report") {
		t.Error("missing report header")
	}
	if !strings.Contains(text, "Queue is empty") {
		t.Error("missing empty-queue notice")
	}
}

func TestBuildWithSignals(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "p1", "alice", true)
	seed(t, db, "p2", "bob", true)
	seed(t, db, "p3", "carol", false)

	text, err := Build(db)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !strings.Contains(text, "Pending: 3") {
		t.Errorf("missing stats line, got:\n%s", text)
	}
	if !strings.Contains(text, "## Momentum") {
		t.Error("missing momentum section for flagged signals")
	}
	if !strings.Contains(text, "sync reliability") {
		t.Error("missing cluster pain label")
	}
	if !strings.Contains(text, "[momentum]") {
		t.Error("pending list should mark flagged items")
	}
	if !strings.Contains(text, "@alice") && !strings.Contains(text, "alice") {
		t.Error("missing actor in pending list")
	}
}

func TestBuildItems(t *testing.T) {
	db := openTestDB(t)

	err := db.UpsertSignalItems([]model.SignalItem{{
		ID: "abc", SourceID: "1", Text: "crash report with details", Author: "alice",
		Timestamp: time.Now().UTC(), Format: model.FormatGeneral,
		SignalType: model.TypeIncidentBug, PriorityScore: 62.5,
		AccountTier: model.TierGrowth, Reasons: []string{"+severity: 50 likes, 10 reposts"},
		RecommendedAction: "Escalate to engineering immediately",
	}})
	if err != nil {
		t.Fatal(err)
	}

	text, err := BuildItems(db, 10)
	if err != nil {
		t.Fatalf("BuildItems: %v", err)
	}
	if !strings.Contains(text, "62.5") || !strings.Contains(text, "@alice") {
		t.Errorf("missing item fields:\n%s", text)
	}
	if !strings.Contains(text, "Escalate to engineering immediately") {
		t.Error("missing recommended action")
	}
}

func TestTruncateCutsOnRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 30)
	got := truncate(s, 20)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 20) + "..."; got != want {
		t.Errorf("truncate = %q, want %q", got, want)
	}
}

func TestBuildItemsEmpty(t *testing.T) {
	db := openTestDB(t)
	text, err := BuildItems(db, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "No scored items") {
		t.Error("missing empty notice")
	}
}
