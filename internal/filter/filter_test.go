package filter

import (
	"testing"
	"time"

	"github.com/signalry/signalry/internal/model"
)

func sig(sourceID, actor, text string) model.Signal {
	return model.Signal{
		ID:        model.NewSignalID(),
		Source:    "mock",
		Actor:     actor,
		Text:      text,
		Timestamp: time.Now(),
		SourceID:  sourceID,
	}
}

func TestHasExplicitIntent(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I need a tool that can export my data to CSV", true},
		{"does anyone know a good alternative to this wallet?", true},
		{"thinking about switching from my current provider", true},
		{"the app is broken again, can't even log in", true},
		{"would be great if you could please add dark mode", true},
		{"just switched to the new client and it's much faster", true},
		{"when launch? asking for the roadmap", true},
		{"this project looks amazing, great community vibes", false},
		{"what a beautiful sunset today", false},
	}

	for _, tt := range tests {
		if got := HasExplicitIntent(tt.text); got != tt.want {
			t.Errorf("HasExplicitIntent(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsNoise(t *testing.T) {
	noisy := []string{
		"gm",
		"GM!!",
		"wagmi 🚀",
		"LFG!!!",
		"free airdrop claim now before it ends",
		"follow and retweet for a chance to win",
		"this coin will 100x gain guaranteed",
		"🚀🚀🚀🚀 to the moon",
	}
	for _, text := range noisy {
		if !IsNoise(text) {
			t.Errorf("IsNoise(%q) = false, want true", text)
		}
	}

	clean := []string{
		"I need help with the broken export feature",
		"good morning everyone, quick question about pricing",
	}
	for _, text := range clean {
		if IsNoise(text) {
			t.Errorf("IsNoise(%q) = true, want false", text)
		}
	}
}

func TestMeetsMinimumQuality(t *testing.T) {
	if MeetsMinimumQuality("too short") {
		t.Error("expected short text to fail the quality gate")
	}
	if MeetsMinimumQuality("supercalifragilisticexpialidocious") {
		t.Error("expected single long word to fail the word-count gate")
	}
	if !MeetsMinimumQuality("this is long enough to pass the gate") {
		t.Error("expected normal sentence to pass")
	}
}

func TestApplyDropsHypeKeepsIntent(t *testing.T) {
	input := []model.Signal{
		sig("1", "alice", "gm"),
		sig("2", "bob", "I need a better way to export transaction history"),
		sig("3", "carol", "wagmi 🚀🚀🚀🚀"),
		sig("4", "dave", "the sync feature is broken and I can't use the app"),
		sig("5", "erin", "lovely weather we are having today friends"),
	}

	out := Apply(input)
	if len(out) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(out))
	}
	if out[0].SourceID != "2" || out[1].SourceID != "4" {
		t.Errorf("wrong survivors: %s, %s", out[0].SourceID, out[1].SourceID)
	}
}

func TestApplyDedupBySourceID(t *testing.T) {
	input := []model.Signal{
		sig("same", "alice", "I need a better export feature for my reports"),
		sig("same", "alice", "I need a better export feature for my reports"),
	}
	out := Apply(input)
	if len(out) != 1 {
		t.Errorf("expected duplicate source_id collapsed to 1, got %d", len(out))
	}
}

func TestApplyDropsMissingFields(t *testing.T) {
	input := []model.Signal{
		{SourceID: "", Actor: "alice", Text: "I need something with all required words here"},
		{SourceID: "a", Actor: "", Text: "I need something with all required words here"},
		{SourceID: "b", Actor: "bob", Text: ""},
	}
	if out := Apply(input); len(out) != 0 {
		t.Errorf("expected malformed signals dropped, got %d", len(out))
	}
}

func TestApplyIdempotent(t *testing.T) {
	input := []model.Signal{
		sig("1", "alice", "I need a better way to export transaction history"),
		sig("2", "bob", "gm"),
		sig("3", "carol", "please add support for hardware wallets soon"),
	}

	once := Apply(input)
	twice := Apply(once)

	if len(once) != len(twice) {
		t.Fatalf("Apply not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].SourceID != twice[i].SourceID {
			t.Errorf("order changed at %d: %s vs %s", i, once[i].SourceID, twice[i].SourceID)
		}
	}
}
