// Package filter gates raw signals before any classification work.
// Only posts with explicit intent pass; sentiment alone is not a signal.
//
// The filter is deliberately conservative: better to let some noise
// through than to miss a real signal. The classifier is the second gate.
package filter

import (
	"regexp"
	"strings"

	"github.com/signalry/signalry/internal/model"
)

// Minimum content requirements.
const (
	MinTextLength = 15
	MinWordCount  = 3
)

// intentPatterns mark explicit intent: someone wants, needs, or asks for
// something. These are action markers, not sentiment words.
var intentPatterns = []*regexp.Regexp{
	// Direct requests / needs
	regexp.MustCompile(`(?i)\b(need|looking for|searching for|want|require)\b`),
	regexp.MustCompile(`(?i)\b(can anyone|does anyone|anyone know|who has|who can)\b`),
	regexp.MustCompile(`(?i)\b(recommend|suggestion|alternative to|instead of)\b`),

	// Evaluation / comparison
	regexp.MustCompile(`(?i)\b(comparing|vs\.?|versus|better than|switch from|migrate from)\b`),
	regexp.MustCompile(`(?i)\b(thinking about|considering|evaluating|should i)\b`),
	regexp.MustCompile(`(?i)\b(worth it|is it good|how is|review of)\b`),

	// Pain / frustration with an explicit problem
	regexp.MustCompile(`(?i)\b(broken|doesn't work|can't|cannot|impossible to|frustrated)\b`),
	regexp.MustCompile(`(?i)\b(bug|issue|problem with|trouble with|struggling)\b`),
	regexp.MustCompile(`(?i)\b(why (is|does|can't|won't))\b`),

	// Feature requests / wishes
	regexp.MustCompile(`(?i)\b(wish|if only|would be great|please add|feature request)\b`),
	regexp.MustCompile(`(?i)\b(when will|roadmap|planned|eta for)\b`),

	// Adoption / churn
	regexp.MustCompile(`(?i)\b(just (started|switched|moved|migrated) to)\b`),
	regexp.MustCompile(`(?i)\b(leaving|left|dropped|cancelled|unsubscribed)\b`),
	regexp.MustCompile(`(?i)\b(going back to|returning to|switching back)\b`),

	// Crypto-adjacent intent markers
	regexp.MustCompile(`(?i)\b(rug(ged)?|scam|honeypot|drain)\b`),
	regexp.MustCompile(`(?i)\b(when (launch|token|airdrop|listing))\b`),
	regexp.MustCompile(`(?i)\b(utility|use case|tokenomics|real product)\b`),
	regexp.MustCompile(`(?i)\b(shipping|building|dev update|release)\b`),
}

// noisePatterns always discard, regardless of other content.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[\s]*(gm|gn|wagmi|ngmi|lfg|bullish)[\s!.🚀🔥]*$`), // one-word hype
	regexp.MustCompile(`(?i)^(gm\s+wagmi|wagmi\s+gm)[\s!.🚀🔥]*$`),
	regexp.MustCompile(`(?i)\b(airdrop.*free|free.*airdrop)\b`),             // airdrop spam
	regexp.MustCompile(`(?i)\b(follow.*retweet|rt.*follow|like.*follow)\b`), // engagement bait
	regexp.MustCompile(`(?i)\b\d+x\s*(gain|return|profit)\b`),               // pump hype
	regexp.MustCompile(`(🚀{3,}|🔥{3,}|💰{3,})`),                            // emoji spam
}

// HasExplicitIntent reports whether text matches at least one intent pattern.
func HasExplicitIntent(text string) bool {
	for _, p := range intentPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsNoise reports whether text matches a known noise pattern.
func IsNoise(text string) bool {
	for _, p := range noisePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// MeetsMinimumQuality applies the length and word-count gate.
func MeetsMinimumQuality(text string) bool {
	clean := strings.TrimSpace(text)
	if len(clean) < MinTextLength {
		return false
	}
	return len(strings.Fields(clean)) >= MinWordCount
}

// Apply runs all filter stages and returns the order-preserving subset of
// signals worth classifying. Stages per signal, first failure wins:
// required-field check, batch dedup by source_id, quality gate, noise gate,
// intent gate. Idempotent: Apply(Apply(x)) == Apply(x).
func Apply(signals []model.Signal) []model.Signal {
	seen := make(map[string]struct{}, len(signals))
	var passed []model.Signal

	for _, sig := range signals {
		if sig.SourceID == "" || sig.Actor == "" || sig.Text == "" {
			continue // malformed, never stored
		}
		if _, dup := seen[sig.SourceID]; dup {
			continue
		}
		seen[sig.SourceID] = struct{}{}

		if !MeetsMinimumQuality(sig.Text) {
			continue
		}
		if IsNoise(sig.Text) {
			continue
		}
		if !HasExplicitIntent(sig.Text) {
			continue
		}

		passed = append(passed, sig)
	}

	return passed
}
