// Package ingest pulls raw posts from configured sources and normalizes
// them into signals. Connectors are independent; one failing source never
// blocks the others.
package ingest

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// PullConnector fetches recent posts from a source on demand.
type PullConnector interface {
	// Name is the source tag written into Signal.Source.
	Name() string
	// Fetch returns signals with timestamps at or after since whose text
	// matches at least one keyword (any text if keywords is empty). A
	// positive limit caps the result count; zero means no cap.
	Fetch(ctx context.Context, keywords []string, since time.Time, limit int) ([]model.Signal, error)
}

// PushConnector delivers signals as the source emits them.
type PushConnector interface {
	Name() string
	// Start blocks, sending signals to out until ctx is done.
	Start(ctx context.Context, out chan<- model.Signal) error
}

// Registry holds the configured connectors for a run.
type Registry struct {
	pull []PullConnector
	push []PushConnector
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddPull registers a pull connector.
func (r *Registry) AddPull(c PullConnector) {
	r.pull = append(r.pull, c)
}

// AddPush registers a push connector.
func (r *Registry) AddPush(c PushConnector) {
	r.push = append(r.push, c)
}

// Pull returns the registered pull connectors.
func (r *Registry) Pull() []PullConnector {
	return r.pull
}

// Push returns the registered push connectors.
func (r *Registry) Push() []PushConnector {
	return r.push
}

// FetchAll fetches from every pull connector and concatenates the results.
// A connector error is logged and skipped so the rest of the run proceeds.
// The limit applies per connector, not to the combined result.
func (r *Registry) FetchAll(ctx context.Context, keywords []string, since time.Time, limit int) []model.Signal {
	var all []model.Signal
	for _, c := range r.pull {
		signals, err := c.Fetch(ctx, keywords, since, limit)
		if err != nil {
			log.Printf("connector %s failed: %v", c.Name(), err)
			continue
		}
		log.Printf("connector %s: %d signals", c.Name(), len(signals))
		all = append(all, signals...)
	}
	return all
}

// withinWindow reports whether ts is at or after since. Zero since means
// no lower bound.
func withinWindow(ts, since time.Time) bool {
	if since.IsZero() {
		return true
	}
	return !ts.Before(since)
}

// matchesKeywords reports whether text contains any of the keywords,
// case insensitive. An empty keyword list matches everything.
func matchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// atLimit reports whether n has reached a positive limit.
func atLimit(n, limit int) bool {
	return limit > 0 && n >= limit
}
