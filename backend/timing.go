package main

import (
	"sync"
	"time"

	"github.com/notnil/chess"
)

const (
	MinLevel = 1
	MaxLevel = 8
)

// Per-level hard ceilings (ms) and deepening limits. Levels 1-2 search a
// fixed shallow depth; higher levels iterate up to their ceiling.
var levelTimeCeilingMs = [MaxLevel + 1]int{0, 500, 800, 1200, 1800, 2500, 3500, 5000, 8000}
var levelMaxDepth = [MaxLevel + 1]int{0, 1, 2, 3, 4, 5, 6, 8, 10}
var levelFixedDepth = [MaxLevel + 1]bool{false, true, true, false, false, false, false, false, false}

func clampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// CriticalityFeatures are the seven tactical signals the time manager
// scores. Each present feature adds a strictly positive weight, so a
// position gaining a feature can never score lower.
type CriticalityFeatures struct {
	InCheck           bool
	CapturesAvailable bool
	MaterialImbalance bool
	Endgame           bool
	MateThreat        bool
	HangingPiece      bool
	ForcingDensity    bool
}

// ExtractCriticalityFeatures reads the position through the rules engine
// and the attack scanner. legal may be nil, in which case it is generated.
func ExtractCriticalityFeatures(pos *chess.Position, legal []*chess.Move, config Config) CriticalityFeatures {
	if legal == nil {
		legal = pos.ValidMoves()
	}
	board := pos.Board()
	features := CriticalityFeatures{}
	features.InCheck = inCheck(pos)

	forcing := 0
	for _, move := range legal {
		if move.HasTag(chess.Capture) || move.HasTag(chess.EnPassant) {
			features.CapturesAvailable = true
			forcing++
			continue
		}
		if move.HasTag(chess.Check) {
			forcing++
		}
	}
	if len(legal) > 0 && forcing*3 >= len(legal) {
		features.ForcingDensity = true
	}

	diff := materialFor(board, chess.White) - materialFor(board, chess.Black)
	if diff < 0 {
		diff = -diff
	}
	features.MaterialImbalance = diff >= config.CritImbalanceFloorCp
	features.Endgame = pieceCount(board) <= config.CritEndgamePieceMax

	features.HangingPiece = worstAttackedValue(board, pos.Turn()) >= config.HangingMinValueCp

	// Mate threat: any legal move delivers immediate mate.
	for _, move := range legal {
		if pos.Update(move).Status() == chess.Checkmate {
			features.MateThreat = true
			break
		}
	}
	return features
}

// CriticalityScore folds the features into a 0-100 score.
func CriticalityScore(features CriticalityFeatures, config Config) int {
	score := 0
	if features.InCheck {
		score += config.CritCheckWeight
	}
	if features.CapturesAvailable {
		score += config.CritCaptureWeight
	}
	if features.MaterialImbalance {
		score += config.CritImbalanceWeight
	}
	if features.Endgame {
		score += config.CritEndgameWeight
	}
	if features.MateThreat {
		score += config.CritMateWeight
	}
	if features.HangingPiece {
		score += config.CritHangingWeight
	}
	if features.ForcingDensity {
		score += config.CritForcingWeight
	}
	if score > 100 {
		score = 100
	}
	return score
}

// TimeBank accumulates unspent budget from fast moves so later critical
// moves can draw on it. Both the reserve and any draw stay bounded.
type TimeBank struct {
	mu        sync.Mutex
	reserveMs int
}

func (b *TimeBank) Deposit(unspentMs int, config Config) {
	if unspentMs <= 0 || !config.EnableTimeBank {
		return
	}
	b.mu.Lock()
	b.reserveMs += unspentMs
	if b.reserveMs > config.TimeBankCapMs {
		b.reserveMs = config.TimeBankCapMs
	}
	b.mu.Unlock()
}

// Draw withdraws up to maxMs from the reserve.
func (b *TimeBank) Draw(maxMs int) int {
	if maxMs <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	draw := maxMs
	if draw > b.reserveMs {
		draw = b.reserveMs
	}
	b.reserveMs -= draw
	return draw
}

func (b *TimeBank) ReserveMs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reserveMs
}

// TimePlan is the time manager's verdict for one move: budget, depth
// schedule and the criticality that produced them. Created per request,
// discarded with it.
type TimePlan struct {
	BudgetMs    int
	StartDepth  int
	MaxDepth    int
	Criticality int
	Critical    bool
	Middlegame  bool
	BankDrawMs  int
}

func (p TimePlan) SoftDeadline(start time.Time) time.Time {
	return start.Add(time.Duration(p.BudgetMs) * time.Millisecond)
}

func (p TimePlan) HardDeadline(start time.Time, config Config) time.Time {
	return start.Add(time.Duration(p.BudgetMs+config.HardTimeoutGraceMs) * time.Millisecond)
}

// PlanMove allocates the budget for one move:
// base × (1+complexity) × (critical ? 2 : 1) × (middlegame ? 1.5 : 1),
// plus a bank draw for critical moves, capped at the level ceiling.
func PlanMove(pos *chess.Position, legal []*chess.Move, level int, requestBudgetMs int, bank *TimeBank, config Config) TimePlan {
	level = clampLevel(level)
	if legal == nil {
		legal = pos.ValidMoves()
	}
	features := ExtractCriticalityFeatures(pos, legal, config)
	criticality := CriticalityScore(features, config)
	critical := criticality >= config.CriticalThreshold
	middlegame := isMiddlegame(pos.Board(), config)

	base := config.TimeBudgetBaseMs
	if requestBudgetMs > 0 {
		base = requestBudgetMs
	}
	complexity := float64(len(legal)) / 40.0
	if complexity > 1 {
		complexity = 1
	}
	budget := float64(base) * (1 + complexity)
	if critical {
		budget *= 2
	}
	if middlegame {
		budget *= float64(config.MiddlegameFactorPct) / 100.0
	}
	plan := TimePlan{
		Criticality: criticality,
		Critical:    critical,
		Middlegame:  middlegame,
	}
	ceiling := levelTimeCeilingMs[level]
	plan.BudgetMs = int(budget)
	if critical && bank != nil {
		headroom := ceiling - plan.BudgetMs
		if headroom > 0 {
			plan.BankDrawMs = bank.Draw(headroom)
			plan.BudgetMs += plan.BankDrawMs
		}
	}
	if plan.BudgetMs > ceiling {
		plan.BudgetMs = ceiling
	}

	maxDepth := levelMaxDepth[level]
	if levelFixedDepth[level] {
		plan.StartDepth = maxDepth
		plan.MaxDepth = maxDepth
	} else {
		plan.StartDepth = 1
		bonus := 0
		if criticality >= config.VeryCriticalCutoff {
			bonus = 2
		} else if criticality >= config.CriticalThreshold {
			bonus = 1
		}
		plan.MaxDepth = maxDepth + bonus
	}
	return plan
}

// isMiddlegame: enough material for real attacking chances but past the
// bare opening piece count check is not needed; material alone decides.
func isMiddlegame(board *chess.Board, config Config) bool {
	material := totalMaterial(board)
	return material >= config.EndgameMaterialCp && material < config.MiddlegameMinMaterialCp
}
