// Package momentum flags clusters and repeats across classified signals.
// This is counting plus time windowing, not ML: if enough distinct actors
// raise the same pain inside the window, that's momentum.
package momentum

import (
	"strings"
	"time"

	"github.com/signalry/signalry/internal/model"
)

// Default thresholds.
const (
	DefaultWindowHours          = 48
	DefaultMinClusterSize       = 3
	DefaultActorRepeatThreshold = 2
)

// Detector flags momentum on classifications. The momentum flag is the only
// field it mutates.
type Detector struct {
	WindowHours          int
	MinClusterSize       int
	ActorRepeatThreshold int

	now func() time.Time // overridable for tests
}

// NewDetector creates a detector with default thresholds.
func NewDetector() *Detector {
	return &Detector{
		WindowHours:          DefaultWindowHours,
		MinClusterSize:       DefaultMinClusterSize,
		ActorRepeatThreshold: DefaultActorRepeatThreshold,
		now:                  time.Now,
	}
}

// Detect updates momentum flags in place and returns the same slice.
//
// A classification is flagged when either:
//  1. Topic clustering: its pain label was raised by MinClusterSize or more
//     distinct actors within the window ending now. Once a pain qualifies,
//     every classification sharing that label is flagged, including ones
//     outside the window, so signals that went quiet still surface when
//     the topic reignites.
//  2. Actor persistence: the same actor raised the same pain
//     ActorRepeatThreshold or more times anywhere in the input.
func (d *Detector) Detect(signals []model.Signal, classifications []model.Classification) []model.Classification {
	if len(signals) == 0 || len(classifications) == 0 {
		return classifications
	}

	sigByID := make(map[string]model.Signal, len(signals))
	for _, s := range signals {
		sigByID[s.ID] = s
	}

	windowStart := d.now().Add(-time.Duration(d.WindowHours) * time.Hour)

	// Topic clustering: distinct actors per pain, window-restricted.
	painActors := make(map[string]map[string]struct{})
	for i := range classifications {
		sig, ok := sigByID[classifications[i].SignalID]
		if !ok || sig.Timestamp.Before(windowStart) {
			continue
		}
		pain := normalizePain(classifications[i].PrimaryPain)
		if painActors[pain] == nil {
			painActors[pain] = make(map[string]struct{})
		}
		painActors[pain][sig.Actor] = struct{}{}
	}

	momentumPains := make(map[string]struct{})
	for pain, actors := range painActors {
		if len(actors) >= d.MinClusterSize {
			momentumPains[pain] = struct{}{}
		}
	}

	// Actor persistence: (actor, pain) counts over the entire input.
	pairCount := make(map[[2]string]int)
	for i := range classifications {
		sig, ok := sigByID[classifications[i].SignalID]
		if !ok {
			continue
		}
		pairCount[[2]string{sig.Actor, normalizePain(classifications[i].PrimaryPain)}]++
	}

	for i := range classifications {
		pain := normalizePain(classifications[i].PrimaryPain)
		if _, hot := momentumPains[pain]; hot {
			classifications[i].MomentumFlag = true
			continue
		}
		if sig, ok := sigByID[classifications[i].SignalID]; ok {
			if pairCount[[2]string{sig.Actor, pain}] >= d.ActorRepeatThreshold {
				classifications[i].MomentumFlag = true
			}
		}
	}

	return classifications
}

// ClusterSignal is one flagged signal inside a cluster summary.
type ClusterSignal struct {
	SignalID    string        `json:"signal_id"`
	Actor       string        `json:"actor"`
	TextPreview string        `json:"text_preview"`
	Urgency     model.Urgency `json:"urgency"`
}

// Cluster summarizes the flagged signals sharing one pain label.
type Cluster struct {
	Pain         string          `json:"pain"`
	SignalCount  int             `json:"signal_count"`
	UniqueActors int             `json:"unique_actors"`
	Signals      []ClusterSignal `json:"signals"`
}

// Summarize groups momentum-flagged classifications by primary pain for
// reporting. It does no further filtering.
func Summarize(signals []model.Signal, classifications []model.Classification) []Cluster {
	sigByID := make(map[string]model.Signal, len(signals))
	for _, s := range signals {
		sigByID[s.ID] = s
	}

	groups := make(map[string][]ClusterSignal)
	var order []string
	for _, cls := range classifications {
		if !cls.MomentumFlag {
			continue
		}
		sig := sigByID[cls.SignalID]
		if _, seen := groups[cls.PrimaryPain]; !seen {
			order = append(order, cls.PrimaryPain)
		}
		groups[cls.PrimaryPain] = append(groups[cls.PrimaryPain], ClusterSignal{
			SignalID:    cls.SignalID,
			Actor:       sig.Actor,
			TextPreview: preview(sig.Text),
			Urgency:     cls.Urgency,
		})
	}

	clusters := make([]Cluster, 0, len(order))
	for _, pain := range order {
		items := groups[pain]
		actors := make(map[string]struct{})
		for _, it := range items {
			actors[it.Actor] = struct{}{}
		}
		clusters = append(clusters, Cluster{
			Pain:         pain,
			SignalCount:  len(items),
			UniqueActors: len(actors),
			Signals:      items,
		})
	}
	return clusters
}

func normalizePain(pain string) string {
	return strings.TrimSpace(strings.ToLower(pain))
}

// preview shortens text for cluster summaries, cutting on a rune
// boundary so emoji-heavy posts stay valid UTF-8.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) > 80 {
		return string(runes[:80]) + "..."
	}
	return text
}
