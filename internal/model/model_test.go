package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSignalJSONRoundTrip(t *testing.T) {
	parent := "parent-123"
	in := Signal{
		ID:        NewSignalID(),
		Source:    "x",
		Actor:     "alice",
		Text:      "the export flow 🚀 keeps timing out",
		Timestamp: time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		SourceID:  "p1",
		ReplyTo:   &parent,
		Metrics:   map[string]int{"likes": 5, "reposts": 2},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Signal
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip changed the signal:\n in: %+v\nout: %+v", in, out)
	}
	if out.ReplyTo == nil || *out.ReplyTo != parent {
		t.Error("reply_to pointer not preserved")
	}
	if out.Metrics["reposts"] != 2 {
		t.Error("metrics not preserved")
	}
}

func TestSignalOptionalFieldsOmitted(t *testing.T) {
	data, err := json.Marshal(Signal{ID: "s1", Source: "mock", Actor: "a", Text: "hello", SourceID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"reply_to", "metrics"} {
		if strings.Contains(string(data), key) {
			t.Errorf("empty %s should be omitted, got %s", key, data)
		}
	}
}

func TestClassificationJSONRoundTrip(t *testing.T) {
	in := Classification{
		SignalID:          "s1",
		IntentStage:       StageChurning,
		PrimaryPain:       "sync reliability",
		Urgency:           UrgencyCritical,
		Confidence:        0.85,
		MomentumFlag:      true,
		RecommendedAction: "reach out before they leave",
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Enum values serialize as their exact strings.
	for _, want := range []string{`"intent_stage":"churning"`, `"urgency":"critical"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("missing %s in %s", want, data)
		}
	}

	var out Classification
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip changed the classification:\n in: %+v\nout: %+v", in, out)
	}
	if !out.IntentStage.Valid() || !out.Urgency.Valid() {
		t.Error("decoded enums no longer valid")
	}
}

func TestOutcomeJSONRoundTrip(t *testing.T) {
	in := Outcome{
		SignalID:     "s1",
		Responded:    true,
		ResponseType: ResponseFollowUp,
		Notes:        "scheduled a call",
		LoggedAt:     time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"response_type":"follow_up"`) {
		t.Errorf("response type enum string lost: %s", data)
	}

	var out Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip changed the outcome:\n in: %+v\nout: %+v", in, out)
	}
}
