package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// fakeProvider returns a canned response or error.
type fakeProvider struct {
	response   string
	err        error
	configured bool
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f.response, f.err
}

func (f *fakeProvider) IsConfigured() bool { return f.configured }

func testSignal() model.Signal {
	return model.Signal{
		ID:        "sig-1",
		Source:    "mock",
		Actor:     "alice",
		Text:      "the sync is broken",
		Timestamp: time.Now(),
		SourceID:  "p1",
	}
}

func TestNewLiveClassifierRequiresProvider(t *testing.T) {
	if _, err := NewLiveClassifier(nil); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := NewLiveClassifier(&fakeProvider{configured: false}); err == nil {
		t.Error("expected error for unconfigured provider")
	}
	if _, err := NewLiveClassifier(&fakeProvider{configured: true}); err != nil {
		t.Errorf("configured provider rejected: %v", err)
	}
}

func TestLiveClassifyValidResponse(t *testing.T) {
	lc, _ := NewLiveClassifier(&fakeProvider{
		configured: true,
		response: "```json\n" + `{
			"intent_stage": "churning",
			"primary_pain": "sync reliability",
			"urgency": "high",
			"confidence": 0.824,
			"recommended_action": "reach out"
		}` + "\n```",
	})

	cls, err := lc.Classify(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.IntentStage != model.StageChurning {
		t.Errorf("stage = %s", cls.IntentStage)
	}
	if cls.Urgency != model.UrgencyHigh {
		t.Errorf("urgency = %s", cls.Urgency)
	}
	if cls.Confidence != 0.82 {
		t.Errorf("confidence = %v, want rounded 0.82", cls.Confidence)
	}
	if cls.RecommendedAction != "reach out" {
		t.Errorf("action = %q", cls.RecommendedAction)
	}
	if cls.MomentumFlag {
		t.Error("classifier must not set the momentum flag")
	}
}

func TestLiveClassifySchemaErrors(t *testing.T) {
	responses := []string{
		`not json at all`,
		`{"intent_stage": "vibing", "primary_pain": "x", "urgency": "high", "confidence": 0.5}`,
		`{"intent_stage": "churning", "primary_pain": "x", "urgency": "extreme", "confidence": 0.5}`,
		`{"intent_stage": "churning", "primary_pain": "", "urgency": "high", "confidence": 0.5}`,
		`{"intent_stage": "churning", "primary_pain": "x", "urgency": "high"}`,
		`{"intent_stage": "churning", "primary_pain": "x", "urgency": "high", "confidence": 1.7}`,
	}

	for _, resp := range responses {
		lc, _ := NewLiveClassifier(&fakeProvider{configured: true, response: resp})
		_, err := lc.Classify(context.Background(), testSignal())
		var schemaErr *SchemaError
		if !errors.As(err, &schemaErr) {
			t.Errorf("response %q: err = %v, want SchemaError", resp, err)
		}
	}
}

func TestLiveClassifyFallbackAction(t *testing.T) {
	lc, _ := NewLiveClassifier(&fakeProvider{
		configured: true,
		response:   `{"intent_stage": "evaluating", "primary_pain": "exports", "urgency": "low", "confidence": 0.4}`,
	})

	cls, err := lc.Classify(context.Background(), testSignal())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.RecommendedAction == "" {
		t.Error("expected fallback recommended action when response omits one")
	}
}

func TestClassifyAllSkipsFailures(t *testing.T) {
	// Provider that fails on the second call.
	calls := 0
	c := classifierFunc(func(ctx context.Context, sig model.Signal) (model.Classification, error) {
		calls++
		if calls == 2 {
			return model.Classification{}, &SchemaError{Field: "confidence", Reason: "missing"}
		}
		return model.Classification{SignalID: sig.ID, IntentStage: model.StageExploring,
			PrimaryPain: "x", Urgency: model.UrgencyLow, Confidence: 0.3}, nil
	})

	signals := []model.Signal{
		{ID: "a", SourceID: "1", Actor: "u", Text: "t"},
		{ID: "b", SourceID: "2", Actor: "u", Text: "t"},
		{ID: "c", SourceID: "3", Actor: "u", Text: "t"},
	}

	kept, classes, skipped := ClassifyAll(context.Background(), c, signals)
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(kept) != 2 || len(classes) != 2 {
		t.Fatalf("kept/classes = %d/%d, want 2/2", len(kept), len(classes))
	}
	// Alignment: classes[i] belongs to kept[i].
	for i := range kept {
		if classes[i].SignalID != kept[i].ID {
			t.Errorf("misaligned at %d: %s vs %s", i, classes[i].SignalID, kept[i].ID)
		}
	}
}

type classifierFunc func(ctx context.Context, sig model.Signal) (model.Classification, error)

func (f classifierFunc) Classify(ctx context.Context, sig model.Signal) (model.Classification, error) {
	return f(ctx, sig)
}
