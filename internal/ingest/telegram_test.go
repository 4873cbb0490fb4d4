package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func telegramUpdatesServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegramSourceIDsIncludeChat(t *testing.T) {
	// Two chats can both be on message_id 7; the dedup key must still
	// tell them apart.
	srv := telegramUpdatesServer(t, `{
		"ok": true,
		"result": [
			{"update_id": 100, "message": {"message_id": 7, "text": "the sync flow is broken for us",
				"date": 1756400000, "chat": {"id": -1001}, "from": {"username": "alice"}}},
			{"update_id": 101, "message": {"message_id": 7, "text": "anyone else seeing sync errors?",
				"date": 1756400060, "chat": {"id": -1002}, "from": {"username": "bob"}}}
		]
	}`)

	tc := &TelegramConnector{token: "tok", apiBase: srv.URL + "/bot", client: srv.Client()}
	signals, err := tc.getUpdates(context.Background())
	if err != nil {
		t.Fatalf("getUpdates: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("got %d signals, want 2", len(signals))
	}

	if signals[0].SourceID == signals[1].SourceID {
		t.Errorf("source IDs collide across chats: %s", signals[0].SourceID)
	}
	if signals[0].SourceID != "tg--1001-7" || signals[1].SourceID != "tg--1002-7" {
		t.Errorf("source IDs = %s, %s", signals[0].SourceID, signals[1].SourceID)
	}

	if signals[0].Actor != "alice" || signals[1].Actor != "bob" {
		t.Errorf("actors = %s, %s", signals[0].Actor, signals[1].Actor)
	}
	if got := signals[0].Timestamp; !got.Equal(time.Unix(1756400000, 0)) {
		t.Errorf("timestamp = %v", got)
	}

	// Offset must advance past the highest update for the next poll.
	if tc.offset != 102 {
		t.Errorf("offset = %d, want 102", tc.offset)
	}
}

func TestTelegramSkipsNonTextMessages(t *testing.T) {
	srv := telegramUpdatesServer(t, `{
		"ok": true,
		"result": [
			{"update_id": 200, "message": {"message_id": 1, "text": "",
				"date": 1756400000, "chat": {"id": -1001}, "from": {"username": "alice"}}}
		]
	}`)

	tc := &TelegramConnector{token: "tok", apiBase: srv.URL + "/bot", client: srv.Client()}
	signals, err := tc.getUpdates(context.Background())
	if err != nil {
		t.Fatalf("getUpdates: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("got %d signals, want 0 for a text-less message", len(signals))
	}
	if tc.offset != 201 {
		t.Errorf("offset = %d, want 201 (skipped updates still acknowledged)", tc.offset)
	}
}
