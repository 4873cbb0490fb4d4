// Package model defines the core data types: signals, classifications,
// review items, and outcomes. Signals and classifications are immutable
// once produced, except for the momentum flag which is owned by the
// momentum detector.
package model

import (
	"time"

	"github.com/google/uuid"
)

// IntentStage is where the actor is in their decision/feedback journey.
type IntentStage string

const (
	StageExploring  IntentStage = "exploring"  // looking around, comparing options
	StageEvaluating IntentStage = "evaluating" // actively assessing, asking questions
	StageRequesting IntentStage = "requesting" // explicit ask for a feature/fix/change
	StageChurning   IntentStage = "churning"   // signaling departure or frustration
	StageAdvocating IntentStage = "advocating" // promoting, recommending to others
)

// Valid reports whether s is one of the defined intent stages.
func (s IntentStage) Valid() bool {
	switch s {
	case StageExploring, StageEvaluating, StageRequesting, StageChurning, StageAdvocating:
		return true
	}
	return false
}

// Urgency is how time-sensitive a signal is.
type Urgency string

const (
	UrgencyCritical Urgency = "critical" // needs attention within hours
	UrgencyHigh     Urgency = "high"     // within a day
	UrgencyMedium   Urgency = "medium"   // this week
	UrgencyLow      Urgency = "low"      // backlog-worthy
)

// Valid reports whether u is one of the defined urgency levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// Rank returns the sort rank of an urgency level; lower is more severe.
// Unknown values sort last.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 3
	}
	return 4
}

// ResponseType categorizes how a reviewer responded to a signal.
type ResponseType string

const (
	ResponseReply    ResponseType = "reply"
	ResponseFollowUp ResponseType = "follow_up"
	ResponseNone     ResponseType = "none"
)

// Valid reports whether r is one of the defined response types.
func (r ResponseType) Valid() bool {
	switch r {
	case ResponseReply, ResponseFollowUp, ResponseNone:
		return true
	}
	return false
}

// Review item statuses. Pending items transition to approved or discarded
// exactly once; there is no way back to pending.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDiscarded = "discarded"
)

// Signal is a raw ingested post.
type Signal struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"` // platform tag: "x", "feed", "telegram", "mock"
	Actor     string         `json:"actor"`  // username / handle
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	SourceID  string         `json:"source_id"`          // platform-native ID, dedup key
	ReplyTo   *string        `json:"reply_to,omitempty"` // parent post ID if reply
	Metrics   map[string]int `json:"metrics,omitempty"`  // likes, reposts, etc.
}

// NewSignalID returns a fresh signal identifier.
func NewSignalID() string {
	return uuid.NewString()
}

// Classification is the structured judgment about a single signal.
type Classification struct {
	SignalID          string      `json:"signal_id"`
	IntentStage       IntentStage `json:"intent_stage"`
	PrimaryPain       string      `json:"primary_pain"`
	Urgency           Urgency     `json:"urgency"`
	Confidence        float64     `json:"confidence"`    // 0.0-1.0
	MomentumFlag      bool        `json:"momentum_flag"` // set by the momentum detector
	RecommendedAction string      `json:"recommended_action"`
}

// ReviewItem is a signal plus its classification, queued for human review.
type ReviewItem struct {
	Signal         Signal         `json:"signal"`
	Classification Classification `json:"classification"`
	Status         string         `json:"status"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty"`
}

// Outcome records what happened after a signal was acted on (or not).
type Outcome struct {
	SignalID     string       `json:"signal_id"`
	Responded    bool         `json:"responded"`
	ResponseType ResponseType `json:"response_type"`
	Notes        string       `json:"notes"`
	LoggedAt     time.Time    `json:"logged_at"`
}
