package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/signalry/signalry/internal/model"
)

// Keyword sets for the deterministic classifier. Later stages win when a
// post matches several, so churn and advocacy language override evaluation
// language.
var (
	evaluatingWords = []string{"need", "looking for", "searching", "recommend"}
	requestingWords = []string{"please add", "feature request", "wish", "when will"}
	churningWords   = []string{"leaving", "left", "dropped", "cancelled", "switching back"}
	advocatingWords = []string{"love", "switched to", "started using", "best tool"}

	criticalWords = []string{"urgent", "asap", "critical", "down", "broken now"}
	highWords     = []string{"today", "right now", "immediately"}
	lowWords      = []string{"eventually", "someday", "nice to have"}

	// More intent markers means higher confidence.
	confidenceWords = []string{
		"need", "want", "looking", "please", "wish", "bug",
		"broken", "switch", "leaving", "love", "recommend",
	}
)

// painCategories maps keyword hits to a primary pain label, first match wins.
var painCategories = []struct {
	label string
	words []string
}{
	{"reliability/bugs", []string{"bug", "broken", "error", "crash"}},
	{"performance", []string{"slow", "performance", "lag"}},
	{"usability", []string{"confusing", "ux", "hard to use", "unintuitive"}},
	{"pricing", []string{"price", "expensive", "cost", "pricing"}},
	{"missing feature", []string{"missing", "no support for", "doesn't have"}},
	{"trust/security", []string{"scam", "rug", "honeypot", "drain"}},
	{"token utility", []string{"token", "utility", "tokenomics"}},
}

// RuleClassifier is a deterministic keyword classifier. No API calls,
// suitable for offline development and as the pipeline default.
type RuleClassifier struct{}

// NewRuleClassifier creates a rule-based classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify maps keyword presence to a Classification. Never fails.
func (rc *RuleClassifier) Classify(_ context.Context, sig model.Signal) (model.Classification, error) {
	text := strings.ToLower(sig.Text)

	stage := model.StageExploring
	if containsAny(text, evaluatingWords) {
		stage = model.StageEvaluating
	}
	if containsAny(text, requestingWords) {
		stage = model.StageRequesting
	}
	if containsAny(text, churningWords) {
		stage = model.StageChurning
	}
	if containsAny(text, advocatingWords) {
		stage = model.StageAdvocating
	}

	pain := "general feedback"
	for _, cat := range painCategories {
		if containsAny(text, cat.words) {
			pain = cat.label
			break
		}
	}

	urgency := model.UrgencyMedium
	switch {
	case containsAny(text, criticalWords):
		urgency = model.UrgencyCritical
	case containsAny(text, highWords):
		urgency = model.UrgencyHigh
	case containsAny(text, lowWords):
		urgency = model.UrgencyLow
	}

	matches := 0
	for _, w := range confidenceWords {
		if strings.Contains(text, w) {
			matches++
		}
	}
	confidence := math.Min(0.3+float64(matches)*0.15, 0.85)

	return model.Classification{
		SignalID:          sig.ID,
		IntentStage:       stage,
		PrimaryPain:       pain,
		Urgency:           urgency,
		Confidence:        math.Round(confidence*100) / 100,
		MomentumFlag:      false, // owned by the momentum detector
		RecommendedAction: RecommendAction(stage, pain, sig.Actor),
	}, nil
}

// RecommendAction is the single authoritative action table keyed by intent
// stage and pain.
func RecommendAction(stage model.IntentStage, pain, actor string) string {
	switch stage {
	case model.StageChurning:
		return fmt.Sprintf("Engage %s: address %s before they leave", actor, pain)
	case model.StageRequesting:
		return fmt.Sprintf("Log feature request (%s) and check if it clusters", pain)
	case model.StageEvaluating:
		return fmt.Sprintf("Respond to %s with relevant info about %s", actor, pain)
	case model.StageAdvocating:
		return fmt.Sprintf("Amplify: %s is a potential champion", actor)
	}
	return "Monitor and assess if the pattern continues"
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
