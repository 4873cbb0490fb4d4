// Package report builds markdown summaries of the review queue.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/signalry/signalry/internal/database"
	"github.com/signalry/signalry/internal/model"
	"github.com/signalry/signalry/internal/momentum"
)

const topPendingCount = 10

// Build assembles a markdown report: store stats, momentum clusters, and
// the highest-ranked pending items.
func Build(db *database.DB) (string, error) {
	stats, err := db.Stats()
	if err != nil {
		return "", fmt.Errorf("loading stats: %w", err)
	}

	pending, err := db.ListByStatus(model.StatusPending, topPendingCount)
	if err != nil {
		return "", fmt.Errorf("loading pending items: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Signal Report\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))

	writeStats(&b, stats)
	writeMomentum(&b, db)
	writePending(&b, pending)

	return b.String(), nil
}

func writeStats(b *strings.Builder, s *database.Stats) {
	fmt.Fprintf(b, "## Queue\n\n")
	fmt.Fprintf(b, "- Signals: %d\n", s.TotalSignals)
	fmt.Fprintf(b, "- Pending: %d, approved: %d, discarded: %d\n", s.Pending, s.Approved, s.Discarded)
	fmt.Fprintf(b, "- Momentum flagged: %d\n", s.MomentumFlags)
	if s.Outcomes.Total > 0 {
		fmt.Fprintf(b, "- Outcomes: %d logged, %.0f%% acted on\n",
			s.Outcomes.Total, s.Outcomes.ActionRate*100)
	}
	b.WriteString("\n")
}

func writeMomentum(b *strings.Builder, db *database.DB) {
	items, err := db.ListAll(1000)
	if err != nil {
		return
	}

	signals := make([]model.Signal, len(items))
	classifications := make([]model.Classification, len(items))
	for i, it := range items {
		signals[i] = it.Signal
		classifications[i] = it.Classification
	}

	clusters := momentum.Summarize(signals, classifications)
	if len(clusters) == 0 {
		return
	}

	fmt.Fprintf(b, "## Momentum\n\n")
	for _, c := range clusters {
		fmt.Fprintf(b, "### %s\n\n", c.Pain)
		fmt.Fprintf(b, "%d signals from %d actors\n\n", c.SignalCount, c.UniqueActors)
		for _, s := range c.Signals {
			fmt.Fprintf(b, "- **%s** (%s): %s\n", s.Actor, s.Urgency, s.TextPreview)
		}
		b.WriteString("\n")
	}
}

func writePending(b *strings.Builder, pending []model.ReviewItem) {
	if len(pending) == 0 {
		fmt.Fprintf(b, "## Top Pending\n\nQueue is empty.\n")
		return
	}

	fmt.Fprintf(b, "## Top Pending\n\n")
	for i, it := range pending {
		flag := ""
		if it.Classification.MomentumFlag {
			flag = " [momentum]"
		}
		fmt.Fprintf(b, "%d. **%s** / %s / %s%s (%.2f)\n",
			i+1, it.Signal.Actor, it.Classification.IntentStage,
			it.Classification.Urgency, flag, it.Classification.Confidence)
		fmt.Fprintf(b, "   %s\n", truncate(it.Signal.Text, 120))
		if it.Classification.RecommendedAction != "" {
			fmt.Fprintf(b, "   Action: %s\n", it.Classification.RecommendedAction)
		}
	}
}

// BuildItems renders the scored signal item leaderboard as markdown.
func BuildItems(db *database.DB, n int) (string, error) {
	items, err := db.TopSignalItems(n)
	if err != nil {
		return "", fmt.Errorf("loading items: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Priority Signals\n\n")
	if len(items) == 0 {
		b.WriteString("No scored items. Run the scorer first.\n")
		return b.String(), nil
	}

	for i, it := range items {
		fmt.Fprintf(&b, "%d. **%.1f** %s by @%s (%s, %s)\n",
			i+1, it.PriorityScore, it.SignalType, it.Author, it.AccountTier, it.Format)
		fmt.Fprintf(&b, "   %s\n", truncate(it.Text, 120))
		if len(it.Reasons) > 0 {
			fmt.Fprintf(&b, "   Why: %s\n", strings.Join(it.Reasons, "; "))
		}
		fmt.Fprintf(&b, "   Action: %s\n", it.RecommendedAction)
	}
	return b.String(), nil
}

// truncate collapses whitespace and cuts on a rune boundary so
// multi-byte characters never get split mid-sequence.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}
