package momentum

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/signalry/signalry/internal/model"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testDetector() *Detector {
	d := NewDetector()
	d.now = func() time.Time { return testNow }
	return d
}

func makePair(id, actor, pain string, age time.Duration) (model.Signal, model.Classification) {
	sig := model.Signal{
		ID:        id,
		Source:    "mock",
		Actor:     actor,
		Text:      "text for " + id,
		Timestamp: testNow.Add(-age),
		SourceID:  "src-" + id,
	}
	cls := model.Classification{
		SignalID:    id,
		IntentStage: model.StageEvaluating,
		PrimaryPain: pain,
		Urgency:     model.UrgencyMedium,
		Confidence:  0.5,
	}
	return sig, cls
}

func TestDetectClusterOfThreeActors(t *testing.T) {
	var signals []model.Signal
	var classifications []model.Classification
	for i, actor := range []string{"alice", "bob", "carol"} {
		s, c := makePair(fmt.Sprintf("s%d", i), actor, "slow sync", time.Hour)
		signals = append(signals, s)
		classifications = append(classifications, c)
	}

	out := testDetector().Detect(signals, classifications)
	for i, c := range out {
		if !c.MomentumFlag {
			t.Errorf("classification %d not flagged, expected cluster of 3 actors to flag", i)
		}
	}
}

func TestDetectTwoActorsNotEnough(t *testing.T) {
	var signals []model.Signal
	var classifications []model.Classification
	for i, actor := range []string{"alice", "bob"} {
		s, c := makePair(fmt.Sprintf("s%d", i), actor, "slow sync", time.Hour)
		signals = append(signals, s)
		classifications = append(classifications, c)
	}

	out := testDetector().Detect(signals, classifications)
	for i, c := range out {
		if c.MomentumFlag {
			t.Errorf("classification %d flagged, 2 actors is below the cluster threshold", i)
		}
	}
}

func TestDetectSameActorRepeatedDoesNotCluster(t *testing.T) {
	// Three signals, one actor: no cluster, but the repeat rule fires
	// because 3 >= the repeat threshold of 2.
	var signals []model.Signal
	var classifications []model.Classification
	for i := 0; i < 3; i++ {
		s, c := makePair(fmt.Sprintf("s%d", i), "alice", "slow sync", time.Hour)
		signals = append(signals, s)
		classifications = append(classifications, c)
	}

	d := testDetector()
	d.ActorRepeatThreshold = 10 // isolate the cluster rule
	out := d.Detect(signals, classifications)
	for i, c := range out {
		if c.MomentumFlag {
			t.Errorf("classification %d flagged, distinct actors required for clustering", i)
		}
	}
}

func TestDetectActorPersistence(t *testing.T) {
	s1, c1 := makePair("s1", "alice", "missing export", time.Hour)
	s2, c2 := makePair("s2", "alice", "missing export", 2*time.Hour)
	s3, c3 := makePair("s3", "bob", "pricing", time.Hour)

	d := testDetector()
	d.MinClusterSize = 100 // isolate the persistence rule
	out := d.Detect(
		[]model.Signal{s1, s2, s3},
		[]model.Classification{c1, c2, c3},
	)

	if !out[0].MomentumFlag || !out[1].MomentumFlag {
		t.Error("expected alice's repeated pain flagged by the persistence rule")
	}
	if out[2].MomentumFlag {
		t.Error("bob's single signal should not be flagged")
	}
}

func TestDetectWindowExcludesOldSignals(t *testing.T) {
	// Two in-window actors plus one outside the 48h window: the old
	// signal must not count toward the cluster.
	s1, c1 := makePair("s1", "alice", "slow sync", time.Hour)
	s2, c2 := makePair("s2", "bob", "slow sync", 2*time.Hour)
	s3, c3 := makePair("s3", "carol", "slow sync", 72*time.Hour)

	out := testDetector().Detect(
		[]model.Signal{s1, s2, s3},
		[]model.Classification{c1, c2, c3},
	)
	for i, c := range out {
		if c.MomentumFlag {
			t.Errorf("classification %d flagged, old signal must not complete the cluster", i)
		}
	}
}

func TestDetectFlagsOutOfWindowSharedPain(t *testing.T) {
	// Once three in-window actors establish momentum on a pain, an
	// out-of-window signal with the same pain is flagged too.
	var signals []model.Signal
	var classifications []model.Classification
	for i, actor := range []string{"alice", "bob", "carol"} {
		s, c := makePair(fmt.Sprintf("s%d", i), actor, "slow sync", time.Hour)
		signals = append(signals, s)
		classifications = append(classifications, c)
	}
	sOld, cOld := makePair("old", "dave", "slow sync", 100*time.Hour)
	signals = append(signals, sOld)
	classifications = append(classifications, cOld)

	out := testDetector().Detect(signals, classifications)
	if !out[3].MomentumFlag {
		t.Error("expected out-of-window signal sharing a hot pain to be flagged")
	}
}

func TestDetectPainNormalization(t *testing.T) {
	s1, c1 := makePair("s1", "alice", "Slow Sync", time.Hour)
	s2, c2 := makePair("s2", "bob", "slow sync ", time.Hour)
	s3, c3 := makePair("s3", "carol", "SLOW SYNC", time.Hour)

	out := testDetector().Detect(
		[]model.Signal{s1, s2, s3},
		[]model.Classification{c1, c2, c3},
	)
	for i, c := range out {
		if !c.MomentumFlag {
			t.Errorf("classification %d not flagged, case and whitespace must not split the cluster", i)
		}
	}
}

func TestDetectEmptyInput(t *testing.T) {
	out := testDetector().Detect(nil, nil)
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d", len(out))
	}
}

func TestSummarize(t *testing.T) {
	s1, c1 := makePair("s1", "alice", "slow sync", time.Hour)
	s2, c2 := makePair("s2", "bob", "slow sync", time.Hour)
	s3, c3 := makePair("s3", "carol", "pricing", time.Hour)
	c1.MomentumFlag = true
	c2.MomentumFlag = true
	// c3 unflagged, must not appear

	clusters := Summarize(
		[]model.Signal{s1, s2, s3},
		[]model.Classification{c1, c2, c3},
	)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	cl := clusters[0]
	if cl.Pain != "slow sync" {
		t.Errorf("wrong pain label: %q", cl.Pain)
	}
	if cl.SignalCount != 2 || cl.UniqueActors != 2 {
		t.Errorf("wrong counts: %d signals, %d actors", cl.SignalCount, cl.UniqueActors)
	}
}

func TestPreviewCutsOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("🚀", 100)
	got := preview(text)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("🚀", 80) + "..."; got != want {
		t.Errorf("preview cut at the wrong point: %q", got)
	}

	short := "nothing to cut here"
	if got := preview(short); got != short {
		t.Errorf("short text changed: %q", got)
	}
}
