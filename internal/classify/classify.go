// Package classify turns filtered signals into structured classifications.
// Two variants share the contract: a deterministic keyword-rule classifier
// for offline use and an LLM-backed classifier for live runs.
package classify

import (
	"context"
	"fmt"
	"log"

	"github.com/signalry/signalry/internal/model"
)

// Classifier produces a Classification for a signal. Classifications of
// independent signals share no mutable state, so implementations are safe
// to call concurrently.
type Classifier interface {
	Classify(ctx context.Context, sig model.Signal) (model.Classification, error)
}

// SchemaError reports an external classifier response that falls outside
// the defined enum/numeric domains.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("classification schema error: %s: %s", e.Field, e.Reason)
}

// ClassifyAll classifies each signal in order. Signals whose classification
// fails are logged and skipped rather than aborting the batch; the returned
// signal slice is the aligned subset that classified successfully.
func ClassifyAll(ctx context.Context, c Classifier, signals []model.Signal) ([]model.Signal, []model.Classification, int) {
	var (
		kept    []model.Signal
		classes []model.Classification
		skipped int
	)
	for _, sig := range signals {
		cls, err := c.Classify(ctx, sig)
		if err != nil {
			log.Printf("Skipping signal %s: %v", sig.ID, err)
			skipped++
			continue
		}
		kept = append(kept, sig)
		classes = append(classes, cls)
	}
	return kept, classes, skipped
}
