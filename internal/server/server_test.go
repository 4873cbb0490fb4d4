package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func seedSignal(t *testing.T, db *database.DB, sourceID, actor string) model.Signal {
	t.Helper()
	sig := model.Signal{
		ID:        model.NewSignalID(),
		Source:    "mock",
		Actor:     actor,
		Text:      "signal text from " + actor,
		Timestamp: time.Now().UTC(),
		SourceID:  sourceID,
	}
	cls := model.Classification{
		SignalID:    sig.ID,
		IntentStage: model.StageEvaluating,
		PrimaryPain: "slow sync",
		Urgency:     model.UrgencyHigh,
		Confidence:  0.6,
	}
	added, err := db.AddReviewItem(sig, cls)
	if err != nil || !added {
		t.Fatalf("seeding signal: added=%v err=%v", added, err)
	}
	return sig
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seedSignal(t, db, "p1", "alice")
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Review Queue") {
		t.Error("expected 'Review Queue' in response body")
	}
	if !strings.Contains(body, "alice") {
		t.Error("expected seeded actor in response body")
	}
}

func TestStaticRoute(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-family") {
		t.Error("expected CSS content")
	}
}

func TestAPIQueue(t *testing.T) {
	db := openTestDB(t)
	seedSignal(t, db, "p1", "alice")
	seedSignal(t, db, "p2", "bob")
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/queue?status=pending", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Items []model.ReviewItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("got %d items, want 2", len(resp.Items))
	}
}

func TestAPIApproveFlow(t *testing.T) {
	db := openTestDB(t)
	sig := seedSignal(t, db, "p1", "alice")
	srv := newTestServer(t, db)

	// Approve by ID prefix.
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/signals/%s/approve", sig.ID[:8]), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	item, err := db.GetReviewItem(sig.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", item.Status)
	}

	// Second approve conflicts.
	req = httptest.NewRequest("POST", fmt.Sprintf("/api/signals/%s/approve", sig.ID[:8]), nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("double approve: expected 409, got %d", rec.Code)
	}
}

func TestAPIApproveUnknown(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("POST", "/api/signals/zzzzzz/approve", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAPIOutcome(t *testing.T) {
	db := openTestDB(t)
	sig := seedSignal(t, db, "p1", "alice")
	srv := newTestServer(t, db)

	body := strings.NewReader(`{"responded": true, "response_type": "reply", "notes": "answered"}`)
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/signals/%s/outcome", sig.ID[:8]), body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	o, err := db.GetOutcome(sig.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !o.Responded || o.ResponseType != model.ResponseReply {
		t.Errorf("outcome = %+v", o)
	}
}

func TestAPIOutcomeInvalidType(t *testing.T) {
	db := openTestDB(t)
	sig := seedSignal(t, db, "p1", "alice")
	srv := newTestServer(t, db)

	body := strings.NewReader(`{"responded": true, "response_type": "carrier_pigeon"}`)
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/signals/%s/outcome", sig.ID[:8]), body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAPIStats(t *testing.T) {
	db := openTestDB(t)
	seedSignal(t, db, "p1", "alice")
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats database.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats.TotalSignals != 1 || stats.Pending != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAPIMomentumEmpty(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	req := httptest.NewRequest("GET", "/api/momentum", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"clusters":[]`) {
		t.Errorf("expected empty clusters array, got %s", rec.Body.String())
	}
}

func TestQueueFormAction(t *testing.T) {
	db := openTestDB(t)
	sig := seedSignal(t, db, "p1", "alice")
	srv := newTestServer(t, db)

	req := httptest.NewRequest("POST", fmt.Sprintf("/queue/%s/discard", sig.ID), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	item, _ := db.GetReviewItem(sig.ID)
	if item.Status != model.StatusDiscarded {
		t.Errorf("status = %q, want discarded", item.Status)
	}
}
