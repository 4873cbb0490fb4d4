package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Signal types for the priority-scoring pipeline.
const (
	TypeLaunchUpdate   = "launch_update"
	TypeIncidentBug    = "incident_bug"
	TypeFeedback       = "feedback_improvement"
	TypeFeatureRequest = "feature_request_use_case"
	TypeSpamNoise      = "spam_noise"
)

// Post formats recognized by the scorer.
const (
	FormatThread       = "thread"
	FormatQuestion     = "question"
	FormatAnnouncement = "announcement"
	FormatGeneral      = "general"
)

// Account tiers inferred from engagement. Placeholder until real account
// data is wired in.
const (
	TierEnterprise = "enterprise"
	TierGrowth     = "growth"
	TierStandard   = "standard"
)

// RawPost is an unprocessed post as handed to the priority scorer.
type RawPost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"` // ISO 8601
	Likes     int    `json:"likes"`
	Reposts   int    `json:"reposts"`
}

// SignalItem is a scored post with an explainable priority breakdown.
// Created once per scoring run; reruns replace by ID.
type SignalItem struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`

	Format     string `json:"format"`
	SignalType string `json:"signal_type"`

	PriorityScore   float64 `json:"priority_score"`
	SeverityScore   float64 `json:"severity_score"`   // 0-100
	RecurrenceScore float64 `json:"recurrence_score"` // 0-100
	BusinessWeight  float64 `json:"business_weight"`  // 0-100

	AccountTier string `json:"account_tier"`

	Reasons           []string `json:"reasons"`
	RecommendedAction string   `json:"recommended_action"`
}

// ItemID derives a stable signal item ID from a post's ID and author.
func ItemID(post RawPost) string {
	sum := sha256.Sum256([]byte(post.ID + ":" + post.Author))
	return hex.EncodeToString(sum[:])[:12]
}
