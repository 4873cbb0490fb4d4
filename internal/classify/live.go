package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/signalry/signalry/internal/llm"
	"github.com/signalry/signalry/internal/model"
)

const classifyPrompt = `You are a signal intelligence agent. You analyze social media posts and classify them according to a strict schema.

Focus on EXPLICIT intent — what the person is actually asking or doing, not vibes or sentiment. Do NOT infer intent that isn't clearly stated.

Post:
Author: %s
Text: %s
Metrics: %s
Timestamp: %s

Respond with ONLY this JSON:
{
    "intent_stage": "exploring" | "evaluating" | "requesting" | "churning" | "advocating",
    "primary_pain": "brief description of the core pain or need",
    "urgency": "critical" | "high" | "medium" | "low",
    "confidence": 0.0-1.0,
    "recommended_action": "one specific, actionable suggestion"
}

intent_stage: exploring (browsing), evaluating (comparing), requesting (asking for something), churning (leaving/frustrated), advocating (promoting).
urgency: critical = hours, high = today, medium = this week, low = backlog.`

// LiveClassifier classifies signals via an LLM provider. The raw response
// is validated and coerced into the fixed schema; anything outside the
// defined domains is a SchemaError for that signal.
type LiveClassifier struct {
	provider llm.Provider
}

// NewLiveClassifier creates an LLM-backed classifier. Fails fast when no
// provider is configured so a misconfigured run dies before batch work.
func NewLiveClassifier(provider llm.Provider) (*LiveClassifier, error) {
	if provider == nil || !provider.IsConfigured() {
		return nil, fmt.Errorf("live classifier requires a configured LLM provider")
	}
	return &LiveClassifier{provider: provider}, nil
}

// Classify sends the signal text to the LLM and parses the response.
func (lc *LiveClassifier) Classify(ctx context.Context, sig model.Signal) (model.Classification, error) {
	metrics, _ := json.Marshal(sig.Metrics)
	prompt := fmt.Sprintf(classifyPrompt, sig.Actor, sig.Text, string(metrics), sig.Timestamp.Format("2006-01-02T15:04:05Z07:00"))

	responseText, err := lc.provider.Generate(ctx, prompt, 300)
	if err != nil {
		return model.Classification{}, fmt.Errorf("classifying signal %s: %w", sig.ID, err)
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return model.Classification{}, &SchemaError{Field: "response", Reason: "not valid JSON"}
	}

	return coerce(sig, parsed)
}

// coerce validates the parsed response against the schema domains.
func coerce(sig model.Signal, parsed map[string]any) (model.Classification, error) {
	stage := model.IntentStage(strings.ToLower(getString(parsed, "intent_stage")))
	if !stage.Valid() {
		return model.Classification{}, &SchemaError{Field: "intent_stage", Reason: fmt.Sprintf("unknown value %q", stage)}
	}

	urgency := model.Urgency(strings.ToLower(getString(parsed, "urgency")))
	if !urgency.Valid() {
		return model.Classification{}, &SchemaError{Field: "urgency", Reason: fmt.Sprintf("unknown value %q", urgency)}
	}

	pain := strings.TrimSpace(getString(parsed, "primary_pain"))
	if pain == "" {
		return model.Classification{}, &SchemaError{Field: "primary_pain", Reason: "missing"}
	}

	confidence, ok := getFloat(parsed, "confidence")
	if !ok {
		return model.Classification{}, &SchemaError{Field: "confidence", Reason: "missing or not a number"}
	}
	if confidence < 0 || confidence > 1 {
		return model.Classification{}, &SchemaError{Field: "confidence", Reason: fmt.Sprintf("%v out of range [0,1]", confidence)}
	}

	action := strings.TrimSpace(getString(parsed, "recommended_action"))
	if action == "" {
		action = RecommendAction(stage, pain, sig.Actor)
	}

	return model.Classification{
		SignalID:          sig.ID,
		IntentStage:       stage,
		PrimaryPain:       pain,
		Urgency:           urgency,
		Confidence:        math.Round(confidence*100) / 100,
		MomentumFlag:      false,
		RecommendedAction: action,
	}, nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
