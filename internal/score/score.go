// Package score implements the priority-scoring pipeline: a deterministic
// rule engine turning raw posts plus engagement metadata into ranked,
// explainable signal items.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/signalry/signalry/internal/model"
)

const minTextLength = 10

// Priority score weights.
const (
	wSeverity   = 0.45
	wRecurrence = 0.30
	wBusiness   = 0.25
)

var (
	threadMarkers  = []string{"1/", "thread", "a]", "1)", "1."}
	actionKeywords = []string{"shipped", "built", "launched", "released", "deployed", "created", "implemented"}

	// Short markers are matched as whole tokens; "gn" inside "signal" is
	// not spam.
	spamTokens  = []string{"gm", "gn", "f4f", "like4like"}
	spamPhrases = []string{"follow for follow", "check my", "dm me"}

	incidentKeywords = []string{"bug", "broken", "error", "crash", "fail", "issue", "problem", "doesn't work", "can't", "unable", "stuck", "down", "outage"}
	feedbackKeywords = []string{"love", "great", "works well", "amazing", "helpful", "useful", "recommend", "switched to", "using", "adopted", "our stack", "power users"}
	featureKeywords  = []string{"wish", "would be nice", "looking for", "need", "want", "missing", "should have", "feature request", "any tool", "alternative"}
	launchKeywords   = []string{"shipped", "launched", "released", "introducing", "announcing", "just built", "now live", "deployed", "new feature"}

	numberedListRe     = regexp.MustCompile(`\d[.):]\s`)
	quantifiedImpactRe = regexp.MustCompile(`\d+%|\d+x|\d+ (users|customers|people)`)
	scaleMentionRe     = regexp.MustCompile(`\d+ (users|customers|people)|\d+[kmb]\s*(users|arr|mrr)`)
)

// businessWeights is the fixed lookup per signal type.
var businessWeights = map[string]float64{
	model.TypeLaunchUpdate:   100,
	model.TypeIncidentBug:    85,
	model.TypeFeedback:       70,
	model.TypeFeatureRequest: 55,
	model.TypeSpamNoise:      0,
}

// Score converts a raw post into a scored SignalItem. Returns nil for
// posts that are too short or score zero or below; those are never stored.
func Score(post model.RawPost) *model.SignalItem {
	text := strings.TrimSpace(post.Text)
	if len(text) < minTextLength {
		return nil
	}

	textLower := strings.ToLower(post.Text)

	format := classifyFormat(textLower, post.Text)
	signalType := classifySignalType(textLower)

	severity := computeSeverity(post)
	recurrence := computeRecurrence(textLower)
	business := businessWeights[signalType]

	priority := wSeverity*severity + wRecurrence*recurrence + wBusiness*business
	if signalType == model.TypeSpamNoise {
		priority = math.Max(0, priority-50)
	}
	if priority <= 0 {
		return nil
	}

	return &model.SignalItem{
		ID:                model.ItemID(post),
		SourceID:          post.ID,
		Text:              text,
		Author:            post.Author,
		Timestamp:         parseTimestamp(post.Timestamp),
		Format:            format,
		SignalType:        signalType,
		PriorityScore:     round1(priority),
		SeverityScore:     round1(severity),
		RecurrenceScore:   round1(recurrence),
		BusinessWeight:    round1(business),
		AccountTier:       inferAccountTier(post),
		Reasons:           buildReasons(severity, recurrence, business, signalType, post),
		RecommendedAction: recommendAction(signalType, priority),
	}
}

// ScoreAll scores a batch, dropping posts that score out.
func ScoreAll(posts []model.RawPost) []model.SignalItem {
	var items []model.SignalItem
	for _, post := range posts {
		if item := Score(post); item != nil {
			items = append(items, *item)
		}
	}
	return items
}

// computeSeverity scores engagement on a log scale, 0-100.
func computeSeverity(post model.RawPost) float64 {
	raw := post.Likes + post.Reposts*2
	if raw == 0 {
		return 0
	}
	return math.Min(math.Log10(float64(raw)+1)*25, 100)
}

// computeRecurrence rewards structural patterns that indicate a worked-out
// report rather than a throwaway remark. 0-100, capped.
func computeRecurrence(textLower string) float64 {
	score := 0.0

	if containsAny(textLower, threadMarkers) {
		score += 30
	}
	if numberedListRe.MatchString(textLower) {
		score += 15
	}
	if containsAny(textLower, []string{"but ", "however", "although", "instead"}) {
		score += 10
	}
	if quantifiedImpactRe.MatchString(textLower) {
		score += 25
	}
	if containsAny(textLower, []string{"i learned", "we found", "after", "when i", "when we"}) {
		score += 20
	}

	return math.Min(score, 100)
}

func classifyFormat(textLower, text string) string {
	if containsAny(textLower, threadMarkers) {
		return model.FormatThread
	}
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		return model.FormatQuestion
	}
	if containsAny(textLower, actionKeywords) {
		return model.FormatAnnouncement
	}
	return model.FormatGeneral
}

// classifySignalType picks the category with the most keyword hits. Spam is
// checked first and wins outright.
func classifySignalType(textLower string) string {
	if isSpam(textLower) {
		return model.TypeSpamNoise
	}

	best := model.TypeLaunchUpdate
	bestHits := countHits(textLower, launchKeywords)
	for _, cand := range []struct {
		name  string
		words []string
	}{
		{model.TypeIncidentBug, incidentKeywords},
		{model.TypeFeedback, feedbackKeywords},
		{model.TypeFeatureRequest, featureKeywords},
	} {
		if hits := countHits(textLower, cand.words); hits > bestHits {
			best, bestHits = cand.name, hits
		}
	}
	if bestHits > 0 {
		return best
	}

	// Zero keyword hits: fall back to quantified-impact heuristics.
	if scaleMentionRe.MatchString(textLower) {
		return model.TypeFeedback
	}
	if containsAny(textLower, []string{"power users", "advanced users", "heavy users", "teams"}) &&
		containsAny(textLower, []string{"use", "using", "adopted", "rely", "depend"}) {
		return model.TypeFeedback
	}

	return model.TypeFeatureRequest // default for substantive content
}

// inferAccountTier infers a tier from engagement totals. Placeholder until
// real account data is available.
func inferAccountTier(post model.RawPost) string {
	total := post.Likes + post.Reposts
	switch {
	case total > 500:
		return model.TierEnterprise
	case total > 100:
		return model.TierGrowth
	}
	return model.TierStandard
}

// buildReasons renders the two highest-weighted positive sub-contributions
// as explanation strings, plus a spam marker when applicable.
func buildReasons(severity, recurrence, business float64, signalType string, post model.RawPost) []string {
	contributions := []struct {
		score  float64
		reason string
	}{
		{severity * wSeverity, fmt.Sprintf("severity: %d likes, %d reposts", post.Likes, post.Reposts)},
		{recurrence * wRecurrence, "recurrence: structural patterns"},
		{business * wBusiness, "business: " + signalType},
	}

	for i := 0; i < len(contributions); i++ {
		for j := i + 1; j < len(contributions); j++ {
			if contributions[j].score > contributions[i].score {
				contributions[i], contributions[j] = contributions[j], contributions[i]
			}
		}
	}

	var reasons []string
	for _, c := range contributions[:2] {
		if c.score > 0 {
			reasons = append(reasons, "+"+c.reason)
		}
	}
	if signalType == model.TypeSpamNoise {
		reasons = append(reasons, "-spam detected")
	}
	return reasons
}

// recommendAction maps signal type and priority band to a suggested action.
func recommendAction(signalType string, priority float64) string {
	switch {
	case priority > 60:
		switch signalType {
		case model.TypeIncidentBug:
			return "Escalate to engineering immediately"
		case model.TypeFeedback:
			return "Schedule user interview to understand pain"
		case model.TypeFeatureRequest:
			return "Add to feature backlog with high priority"
		case model.TypeLaunchUpdate:
			return "Share internally + monitor engagement"
		}
		return "DM author directly to understand context"
	case priority > 40:
		switch signalType {
		case model.TypeIncidentBug:
			return "Add to bug tracker"
		case model.TypeFeedback:
			return "Add to improvement backlog"
		case model.TypeFeatureRequest:
			return "Monitor for recurrence"
		case model.TypeLaunchUpdate:
			return "Track for momentum"
		}
		return "Monitor weekly digest"
	}
	return "Archive - no immediate action needed"
}

func parseTimestamp(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", ts); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func isSpam(textLower string) bool {
	if containsAny(textLower, spamPhrases) {
		return true
	}
	for _, tok := range strings.Fields(textLower) {
		tok = strings.Trim(tok, "!.,🚀🔥")
		for _, s := range spamTokens {
			if tok == s {
				return true
			}
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func countHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return hits
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
