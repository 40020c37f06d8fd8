package main

import (
	"testing"

	"github.com/notnil/chess"
)

func TestCriticalityScoreMonotone(t *testing.T) {
	config := DefaultConfig()
	features := CriticalityFeatures{}
	prev := CriticalityScore(features, config)
	if prev != 0 {
		t.Fatalf("no features should score zero, got %d", prev)
	}
	steps := []func(*CriticalityFeatures){
		func(f *CriticalityFeatures) { f.CapturesAvailable = true },
		func(f *CriticalityFeatures) { f.InCheck = true },
		func(f *CriticalityFeatures) { f.MaterialImbalance = true },
		func(f *CriticalityFeatures) { f.Endgame = true },
		func(f *CriticalityFeatures) { f.HangingPiece = true },
		func(f *CriticalityFeatures) { f.ForcingDensity = true },
		func(f *CriticalityFeatures) { f.MateThreat = true },
	}
	for i, step := range steps {
		step(&features)
		score := CriticalityScore(features, config)
		if score < prev {
			t.Fatalf("adding feature %d lowered the score: %d -> %d", i, prev, score)
		}
		prev = score
	}
	if prev > 100 {
		t.Fatalf("score must be capped at 100, got %d", prev)
	}
}

func TestCriticalityFeaturesQuietStart(t *testing.T) {
	config := DefaultConfig()
	pos := chess.StartingPosition()
	features := ExtractCriticalityFeatures(pos, nil, config)
	if features != (CriticalityFeatures{}) {
		t.Fatalf("starting position should trigger no criticality features, got %+v", features)
	}
}

func TestCriticalityFeaturesCheckAndHanging(t *testing.T) {
	config := DefaultConfig()
	// White to move, in check from the rook on d5, queen on h5 attacked
	// along the fifth rank.
	pos := mustPosition(t, "k7/8/8/3r3Q/8/8/8/3K4 w - - 0 1")
	features := ExtractCriticalityFeatures(pos, nil, config)
	if !features.InCheck {
		t.Fatalf("king on the rook's file is in check")
	}
	if !features.HangingPiece {
		t.Fatalf("attacked queen should register as hanging material")
	}
}

func TestCriticalityEndgamePieceThresholdConfigurable(t *testing.T) {
	config := DefaultConfig()
	pos := chess.StartingPosition()
	if ExtractCriticalityFeatures(pos, nil, config).Endgame {
		t.Fatalf("32 pieces is not an endgame at the default threshold")
	}
	config.CritEndgamePieceMax = 32
	if !ExtractCriticalityFeatures(pos, nil, config).Endgame {
		t.Fatalf("raising the piece threshold should flag the position as endgame")
	}
}

func TestPlanMoveBudgetFormula(t *testing.T) {
	config := DefaultConfig()
	pos := chess.StartingPosition()
	legal := pos.ValidMoves()
	plan := PlanMove(pos, legal, 4, 0, nil, config)
	// 20 legal moves: complexity 0.5, no criticality, opening phase.
	want := int(float64(config.TimeBudgetBaseMs) * 1.5)
	if plan.BudgetMs != want {
		t.Fatalf("budget = %d, want %d", plan.BudgetMs, want)
	}
	if plan.Critical || plan.Middlegame {
		t.Fatalf("starting position is neither critical nor middlegame: %+v", plan)
	}
}

func TestPlanMoveCriticalDoublesBudget(t *testing.T) {
	config := DefaultConfig()
	config.CriticalThreshold = 0
	config.VeryCriticalCutoff = 101
	pos := chess.StartingPosition()
	legal := pos.ValidMoves()
	plan := PlanMove(pos, legal, 4, 0, nil, config)
	want := int(float64(config.TimeBudgetBaseMs) * 1.5 * 2)
	if plan.BudgetMs != want {
		t.Fatalf("critical budget = %d, want %d", plan.BudgetMs, want)
	}
	if plan.MaxDepth != levelMaxDepth[4]+1 {
		t.Fatalf("critical positions get one extra depth: got %d", plan.MaxDepth)
	}
}

func TestPlanMoveRespectsLevelCeiling(t *testing.T) {
	config := DefaultConfig()
	pos := chess.StartingPosition()
	legal := pos.ValidMoves()
	plan := PlanMove(pos, legal, 1, 10_000, nil, config)
	if plan.BudgetMs > levelTimeCeilingMs[1] {
		t.Fatalf("budget %d exceeds level 1 ceiling %d", plan.BudgetMs, levelTimeCeilingMs[1])
	}
}

func TestPlanMoveFixedDepthLevels(t *testing.T) {
	config := DefaultConfig()
	pos := chess.StartingPosition()
	legal := pos.ValidMoves()
	for level := 1; level <= 2; level++ {
		plan := PlanMove(pos, legal, level, 0, nil, config)
		if plan.StartDepth != plan.MaxDepth {
			t.Fatalf("level %d should search a fixed depth, got start=%d max=%d",
				level, plan.StartDepth, plan.MaxDepth)
		}
		if plan.MaxDepth != levelMaxDepth[level] {
			t.Fatalf("level %d depth = %d, want %d", level, plan.MaxDepth, levelMaxDepth[level])
		}
	}
	plan := PlanMove(pos, legal, 8, 0, nil, config)
	if plan.StartDepth != 1 || plan.MaxDepth != levelMaxDepth[8] {
		t.Fatalf("level 8 should deepen from 1 to %d, got %+v", levelMaxDepth[8], plan)
	}
}

func TestTimeBankCapAndDraw(t *testing.T) {
	config := DefaultConfig()
	bank := &TimeBank{}
	bank.Deposit(10*config.TimeBankCapMs, config)
	if bank.ReserveMs() != config.TimeBankCapMs {
		t.Fatalf("reserve must be capped at %d, got %d", config.TimeBankCapMs, bank.ReserveMs())
	}
	drawn := bank.Draw(500)
	if drawn != 500 {
		t.Fatalf("draw within reserve should grant the full amount, got %d", drawn)
	}
	if bank.ReserveMs() != config.TimeBankCapMs-500 {
		t.Fatalf("reserve should shrink by the draw")
	}
	drawn = bank.Draw(1 << 30)
	if drawn != config.TimeBankCapMs-500 {
		t.Fatalf("draw can never exceed the reserve, got %d", drawn)
	}
	if bank.ReserveMs() != 0 {
		t.Fatalf("reserve should be empty after a full draw")
	}
}

func TestTimeBankDisabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableTimeBank = false
	bank := &TimeBank{}
	bank.Deposit(1000, config)
	if bank.ReserveMs() != 0 {
		t.Fatalf("disabled bank must not accumulate")
	}
}

func TestClampLevel(t *testing.T) {
	if clampLevel(0) != MinLevel || clampLevel(99) != MaxLevel || clampLevel(5) != 5 {
		t.Fatalf("level clamp broken: %d %d %d", clampLevel(0), clampLevel(99), clampLevel(5))
	}
}
