// Package pipeline wires ingestion, filtering, classification, momentum
// detection, and queueing into a single run.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/signalry/signalry/internal/classify"
	"github.com/signalry/signalry/internal/database"
	"github.com/signalry/signalry/internal/filter"
	"github.com/signalry/signalry/internal/ingest"
	"github.com/signalry/signalry/internal/model"
	"github.com/signalry/signalry/internal/momentum"
)

// Counts tallies what happened to signals at each pipeline stage.
type Counts struct {
	Ingested   int `json:"ingested"`
	Filtered   int `json:"filtered"`   // dropped by the intent filter
	Classified int `json:"classified"` // survived classification
	Skipped    int `json:"skipped"`    // classification failures
	Queued     int `json:"queued"`     // newly added to the review queue
	Duplicates int `json:"duplicates"` // already in the store
}

// RunItem pairs a classified signal with what happened to it at the
// queueing stage.
type RunItem struct {
	Signal         model.Signal         `json:"signal"`
	Classification model.Classification `json:"classification"`
	Queued         bool                 `json:"queued"`
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunAt    time.Time          `json:"run_at"`
	Counts   Counts             `json:"counts"`
	Momentum []momentum.Cluster `json:"momentum,omitempty"`
	Items    []RunItem          `json:"items,omitempty"`
}

// Pipeline runs signals from sources to the review queue.
type Pipeline struct {
	registry   *ingest.Registry
	classifier classify.Classifier
	detector   *momentum.Detector
	db         *database.DB

	// FetchLimit caps how many signals each connector may return per
	// run. Zero means no cap.
	FetchLimit int
}

// New assembles a pipeline.
func New(registry *ingest.Registry, classifier classify.Classifier, detector *momentum.Detector, db *database.DB) *Pipeline {
	return &Pipeline{
		registry:   registry,
		classifier: classifier,
		detector:   detector,
		db:         db,
	}
}

// Run executes one full pass: fetch, filter, classify, detect momentum,
// queue. Keywords restrict what the connectors return; an empty list
// takes everything. Failures inside a stage drop individual signals,
// never the run.
func (p *Pipeline) Run(ctx context.Context, keywords []string, since time.Time) (*RunResult, error) {
	result := &RunResult{RunAt: time.Now().UTC()}

	raw := p.registry.FetchAll(ctx, keywords, since, p.FetchLimit)
	result.Counts.Ingested = len(raw)

	kept := filter.Apply(raw)
	result.Counts.Filtered = len(raw) - len(kept)
	log.Printf("filter: %d of %d signals kept", len(kept), len(raw))

	signals, classifications, skipped := classify.ClassifyAll(ctx, p.classifier, kept)
	result.Counts.Classified = len(classifications)
	result.Counts.Skipped = skipped

	classifications = p.detector.Detect(signals, classifications)
	result.Momentum = momentum.Summarize(signals, classifications)

	for i := range signals {
		added, err := p.db.AddReviewItem(signals[i], classifications[i])
		if err != nil {
			log.Printf("queueing %s failed: %v", signals[i].SourceID, err)
			continue
		}
		result.Items = append(result.Items, RunItem{
			Signal:         signals[i],
			Classification: classifications[i],
			Queued:         added,
		})
		if added {
			result.Counts.Queued++
		} else {
			result.Counts.Duplicates++
		}
	}

	log.Printf("run complete: %d queued, %d duplicates, %d skipped",
		result.Counts.Queued, result.Counts.Duplicates, result.Counts.Skipped)
	return result, nil
}

// Listen runs the push connectors until ctx is done, processing each
// incoming signal as it arrives. Momentum flags are left to the next
// batch run; live signals go through filter, classify, and queue only.
func (p *Pipeline) Listen(ctx context.Context) error {
	push := p.registry.Push()
	if len(push) == 0 {
		return errors.New("no push connectors configured")
	}

	out := make(chan model.Signal)
	for _, c := range push {
		go func(c ingest.PushConnector) {
			if err := c.Start(ctx, out); err != nil && ctx.Err() == nil {
				log.Printf("connector %s stopped: %v", c.Name(), err)
			}
		}(c)
	}

	log.Printf("listening on %d push connector(s)", len(push))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-out:
			p.processLive(ctx, sig)
		}
	}
}

func (p *Pipeline) processLive(ctx context.Context, sig model.Signal) {
	kept := filter.Apply([]model.Signal{sig})
	if len(kept) == 0 {
		return
	}

	signals, classifications, _ := classify.ClassifyAll(ctx, p.classifier, kept)
	for i := range signals {
		added, err := p.db.AddReviewItem(signals[i], classifications[i])
		if err != nil {
			log.Printf("queueing %s failed: %v", signals[i].SourceID, err)
			continue
		}
		if added {
			log.Printf("queued live signal from @%s via %s", signals[i].Actor, signals[i].Source)
		}
	}
}
