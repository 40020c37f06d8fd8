package main

import (
	"math"
	"testing"
	"time"
)

func repeatHits(hit bool, n int) []bool {
	hits := make([]bool, n)
	for i := range hits {
		hits[i] = hit
	}
	return hits
}

func TestSignatureConfidenceBounds(t *testing.T) {
	if got := SignatureConfidence(0, nil); got != 0 {
		t.Fatalf("no observations means no confidence, got %f", got)
	}
	got := SignatureConfidence(20, repeatHits(true, 20))
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("20 observations of consistent hits should saturate at 1, got %f", got)
	}
	for n := 0; n < 100; n += 7 {
		c := SignatureConfidence(n, nil)
		if c < 0 || c > 1 {
			t.Fatalf("confidence out of [0,1] at n=%d: %f", n, c)
		}
	}
}

func TestSignatureConfidenceMonotoneInSampleSize(t *testing.T) {
	prev := -1.0
	for n := 0; n <= 30; n++ {
		c := SignatureConfidence(n, nil)
		if c < prev {
			t.Fatalf("confidence dropped with more observations at n=%d: %f -> %f", n, prev, c)
		}
		prev = c
	}
}

func TestSignatureConfidenceFewObservationsStayLow(t *testing.T) {
	config := DefaultConfig()
	// Three observations, even all hits, must not clear the bias gate.
	got := SignatureConfidence(3, repeatHits(true, 3))
	if got >= config.BiasConfidenceFloor {
		t.Fatalf("3 observations should stay below the %0.1f gate, got %f",
			config.BiasConfidenceFloor, got)
	}
}

func TestSignatureTrend(t *testing.T) {
	if got := SignatureTrend(repeatHits(true, 19)); got != TrendStable {
		t.Fatalf("trend must stay stable until both windows fill, got %s", got)
	}
	improving := append(repeatHits(false, 10), repeatHits(true, 10)...)
	if got := SignatureTrend(improving); got != "improving" {
		t.Fatalf("misses then hits should trend improving, got %s", got)
	}
	worsening := append(repeatHits(true, 10), repeatHits(false, 10)...)
	if got := SignatureTrend(worsening); got != "worsening" {
		t.Fatalf("hits then misses should trend worsening, got %s", got)
	}
	flat := append(repeatHits(true, 10), repeatHits(true, 10)...)
	if got := SignatureTrend(flat); got != TrendStable {
		t.Fatalf("constant performance should be stable, got %s", got)
	}
}

func TestObserveUpdatesSignature(t *testing.T) {
	config := DefaultConfig()
	sig := WeaknessSignature{Category: "hanging_pieces", Severity: 0.8}
	now := time.Now()
	for i := 0; i < 25; i++ {
		sig.Observe(false, now, config)
	}
	if sig.Occurrences != 25 {
		t.Fatalf("occurrences = %d, want 25", sig.Occurrences)
	}
	if len(sig.RecentHits) != recentHitsWindow {
		t.Fatalf("hit window should stay bounded at %d, got %d", recentHitsWindow, len(sig.RecentHits))
	}
	if sig.Confidence < config.BiasConfidenceFloor {
		t.Fatalf("25 consistent observations should clear the gate, got %f", sig.Confidence)
	}
	if sig.Mastery != 0 {
		t.Fatalf("all misses means zero mastery, got %f", sig.Mastery)
	}
	if sig.Priority <= 0 {
		t.Fatalf("an established unmastered weakness should have positive priority")
	}
}

func TestObserveMasteryScale(t *testing.T) {
	config := DefaultConfig()
	sig := WeaknessSignature{Category: "forks"}
	now := time.Now()
	for i := 0; i < recentHitsWindow; i++ {
		sig.Observe(true, now, config)
	}
	if sig.Mastery != 100 {
		t.Fatalf("consistent hits should reach full mastery on the 0-100 scale, got %f", sig.Mastery)
	}
}

func TestSelectTeachingTargetsTopN(t *testing.T) {
	config := DefaultConfig()
	now := time.Now()
	signatures := []WeaknessSignature{
		{Category: "a", Confidence: 0.9, Mastery: 10, Severity: 0.9, LastSeen: now},
		{Category: "b", Confidence: 0.2, Mastery: 90, Severity: 0.1, LastSeen: now.Add(-60 * 24 * time.Hour)},
		{Category: "c", Confidence: 0.8, Mastery: 20, Severity: 0.7, LastSeen: now},
		{Category: "d", Confidence: 0.3, Mastery: 80, Severity: 0.2, LastSeen: now.Add(-60 * 24 * time.Hour)},
	}
	targets := SelectTeachingTargets(signatures, now, config)
	if len(targets) != 3 {
		t.Fatalf("want top 3, got %d", len(targets))
	}
	if targets[0].Category != "a" {
		t.Fatalf("strongest signature should rank first, got %s", targets[0].Category)
	}
	for i := 1; i < len(targets); i++ {
		if targets[i].Priority > targets[i-1].Priority {
			t.Fatalf("targets must be sorted by priority")
		}
	}
}

func biasSignature(category string, confidence float64, fp ContextFingerprint) WeaknessSignature {
	return WeaknessSignature{
		Category:    category,
		Occurrences: 25,
		Confidence:  confidence,
		Mastery:     10,
		Severity:    0.9,
		Fingerprint: fp,
		LastSeen:    time.Now(),
	}
}

func TestTeachingBiasConfidenceGate(t *testing.T) {
	config := DefaultConfig()
	pos := mustPosition(t, "rnbqkbnr/pppp1p1p/6p1/4p2Q/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 3")
	low := []WeaknessSignature{biasSignature("checks", 0.5, ContextFingerprint{RequiresCheck: true})}
	if bias := NewTeachingBias(pos, 8, low, config); bias != nil {
		t.Fatalf("below-gate confidence must disable the bias entirely")
	}
}

func TestTeachingBiasBonusBounded(t *testing.T) {
	config := DefaultConfig()
	pos := mustPosition(t, "rnbqkbnr/pppp1p1p/6p1/4p2Q/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 3")
	signatures := []WeaknessSignature{biasSignature("checks", 0.95, ContextFingerprint{RequiresCheck: true})}
	bias := NewTeachingBias(pos, 8, signatures, config)
	if bias == nil {
		t.Fatalf("confident signature should enable the bias")
	}
	move := moveByUCI(pos.ValidMoves(), "h5e5")
	if move == nil {
		t.Fatalf("Qxe5+ should be legal")
	}
	raw := 300
	bonus := bias.BonusFor(move, raw)
	if bonus <= 0 {
		t.Fatalf("checking move should earn a bonus for a check-weakness learner")
	}
	limit := int(config.BiasMagnitudeCap * float64(raw))
	if bonus > limit {
		t.Fatalf("bonus %d exceeds cap %d", bonus, limit)
	}
}

func TestTeachingBiasScalesWithLevel(t *testing.T) {
	config := DefaultConfig()
	pos := mustPosition(t, "rnbqkbnr/pppp1p1p/6p1/4p2Q/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 3")
	signatures := []WeaknessSignature{biasSignature("checks", 0.95, ContextFingerprint{RequiresCheck: true})}
	move := moveByUCI(pos.ValidMoves(), "h5e5")
	lowLevel := NewTeachingBias(pos, 2, signatures, config)
	highLevel := NewTeachingBias(pos, 8, signatures, config)
	if lowLevel == nil || highLevel == nil {
		t.Fatalf("bias should be active at both levels")
	}
	raw := 400
	if lowLevel.BonusFor(move, raw) >= highLevel.BonusFor(move, raw) {
		t.Fatalf("higher levels teach harder: level2=%d level8=%d",
			lowLevel.BonusFor(move, raw), highLevel.BonusFor(move, raw))
	}
}

func TestTeachingBiasFingerprintMismatch(t *testing.T) {
	config := DefaultConfig()
	pos := mustPosition(t, "rnbqkbnr/pppp1p1p/6p1/4p2Q/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 3")
	signatures := []WeaknessSignature{biasSignature("checks", 0.95, ContextFingerprint{RequiresCheck: true})}
	bias := NewTeachingBias(pos, 8, signatures, config)
	quiet := moveByUCI(pos.ValidMoves(), "b1c3")
	if quiet == nil {
		t.Fatalf("Nc3 should be legal")
	}
	if bonus := bias.BonusFor(quiet, 300); bonus != 0 {
		t.Fatalf("quiet move must not match a check fingerprint, got bonus %d", bonus)
	}
}

func TestSearchReportsBiasUsage(t *testing.T) {
	config := DefaultConfig()
	pos := mustPosition(t, "rnbqkbnr/pppp1p1p/6p1/4p2Q/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 3")
	legal := pos.ValidMoves()
	spec := searchSpec(config, 2, 10*time.Second)
	spec.Bias = NewTeachingBias(pos, 8, []WeaknessSignature{
		biasSignature("checks", 0.95, ContextFingerprint{RequiresCheck: true}),
	}, config)
	outcome := IterativeSearch(pos, legal, spec)
	if outcome.Move == nil {
		t.Fatalf("search must return a move")
	}
	// UsedBias only flips when a candidate inside the material guard
	// matched, so it may legitimately stay false; the invariant is that
	// the move is legal and the search completed either way.
	if moveByUCI(legal, outcome.Move.String()) == nil {
		t.Fatalf("biased search returned an illegal move %s", outcome.Move)
	}
}

func TestSearchUsesBiasOnMatchingFingerprint(t *testing.T) {
	config := DefaultConfig()
	// Queen-up endgame: every move keeps the endgame phase, so the
	// fingerprint matches the raw best itself and bias usage must report.
	pos := mustPosition(t, "k7/8/8/8/8/8/8/Q3K3 w - - 0 1")
	legal := pos.ValidMoves()
	spec := searchSpec(config, 2, 10*time.Second)
	spec.Bias = NewTeachingBias(pos, 8, []WeaknessSignature{
		biasSignature("endgame_technique", 0.95, ContextFingerprint{Phase: PhaseEndgame}),
	}, config)
	if spec.Bias == nil {
		t.Fatalf("confident endgame signature should enable the bias")
	}
	outcome := IterativeSearch(pos, legal, spec)
	if outcome.Move == nil || moveByUCI(legal, outcome.Move.String()) == nil {
		t.Fatalf("biased search returned an illegal move %v", outcome.Move)
	}
	if !outcome.UsedBias {
		t.Fatalf("a matching fingerprint inside the material guard must report bias usage")
	}
}
