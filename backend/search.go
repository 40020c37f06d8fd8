package main

import (
	"time"

	"github.com/notnil/chess"
)

// Mate scores are sentinels far above any material total, decremented per
// ply so a mate in two outranks a mate in three and an immediate mate
// outranks a distant threat.
const (
	mateScore    = 100_000
	mateHorizon  = 512
	maxSearchPly = 128
	drawScore    = 0
)

func mateIn(ply int) int  { return mateScore - ply }
func matedIn(ply int) int { return -(mateScore - ply) }

func isMateScore(v int) bool {
	if v < 0 {
		v = -v
	}
	return v >= mateScore-mateHorizon
}

type SearchStats struct {
	Start           time.Time
	Nodes           int64
	Cutoffs         int64
	TTHints         int64
	CompletedDepths int
	DepthDurations  []time.Duration
}

// ProgressEvent describes one fully-completed deepening iteration.
type ProgressEvent struct {
	Depth        int    `json:"depth"`
	Nodes        int64  `json:"nodes"`
	BestMove     string `json:"best_move"`
	EvaluationCp int    `json:"evaluation_cp"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}

// SearchSpec carries everything one iterative-deepening run needs. It is
// created per move request and discarded with it.
type SearchSpec struct {
	StartDepth   int
	MaxDepth     int
	SoftDeadline time.Time
	HardDeadline time.Time
	Stop         func() bool
	Bias         *TeachingBias
	Config       Config
	Stats        *SearchStats
	TT           *MoveHintTable
	Progress     func(ProgressEvent)
}

type SearchOutcome struct {
	Move         *chess.Move
	EvaluationCp int
	DepthReached int
	Nodes        int64
	TimedOut     bool
	UsedBias     bool
}

type searchContext struct {
	config  Config
	soft    time.Time
	hard    time.Time
	stop    func() bool
	stats   *SearchStats
	tt      *MoveHintTable
	nodes   int64
	aborted bool
}

// expired polls the clock at bounded node intervals; between polls the
// cached aborted flag keeps the per-node cost at a couple of branches.
func (ctx *searchContext) expired() bool {
	if ctx.aborted {
		return true
	}
	if ctx.nodes%ctx.config.NodeCheckInterval != 0 {
		return false
	}
	now := time.Now()
	if now.After(ctx.soft) || now.After(ctx.hard) || (ctx.stop != nil && ctx.stop()) {
		ctx.aborted = true
	}
	return ctx.aborted
}

type rootScore struct {
	move   *chess.Move
	raw    int
	biased int
	bias   int
}

// IterativeSearch runs minimax with alpha-beta pruning at increasing
// depths. A depth's result becomes authoritative only once the whole
// depth completes before the deadline; an interrupted depth is discarded
// and the previous depth's answer stands.
func IterativeSearch(pos *chess.Position, legal []*chess.Move, spec SearchSpec) SearchOutcome {
	outcome := SearchOutcome{}
	if len(legal) == 0 {
		return outcome
	}
	if spec.Config.NodeCheckInterval <= 0 {
		spec.Config.NodeCheckInterval = DefaultConfig().NodeCheckInterval
	}
	ctx := &searchContext{
		config: spec.Config,
		soft:   spec.SoftDeadline,
		hard:   spec.HardDeadline,
		stop:   spec.Stop,
		stats:  spec.Stats,
		tt:     spec.TT,
	}
	if spec.StartDepth < 1 {
		spec.StartDepth = 1
	}
	if spec.MaxDepth < spec.StartDepth {
		spec.MaxDepth = spec.StartDepth
	}
	if ctx.tt != nil {
		ctx.tt.NextGeneration()
	}
	start := time.Now()
	if spec.Stats != nil && spec.Stats.Start.IsZero() {
		spec.Stats.Start = start
	}

	for depth := spec.StartDepth; depth <= spec.MaxDepth; depth++ {
		if depth > spec.StartDepth && time.Now().After(spec.SoftDeadline) {
			outcome.TimedOut = true
			break
		}
		depthStart := time.Now()
		scores, completed := searchRoot(pos, legal, depth, spec.Bias != nil, ctx)
		if !completed {
			outcome.TimedOut = true
			break
		}
		best, usedBias := pickRootMove(scores, spec)
		outcome.Move = best.move
		outcome.EvaluationCp = best.raw
		outcome.DepthReached = depth
		outcome.UsedBias = usedBias
		outcome.Nodes = ctx.nodes
		if spec.Stats != nil {
			spec.Stats.CompletedDepths = depth
			spec.Stats.DepthDurations = append(spec.Stats.DepthDurations, time.Since(depthStart))
		}
		if ctx.tt != nil {
			ctx.tt.Store(pos.Hash(), depth, best.move)
		}
		if spec.Progress != nil {
			spec.Progress(ProgressEvent{
				Depth:        depth,
				Nodes:        ctx.nodes,
				BestMove:     best.move.String(),
				EvaluationCp: best.raw,
				ElapsedMs:    time.Since(start).Milliseconds(),
			})
		}
		if isMateScore(best.raw) && best.raw > 0 {
			break
		}
	}
	outcome.Nodes = ctx.nodes

	if outcome.Move == nil {
		// Deadline fired before depth 1 completed: one-ply scan so the
		// caller still gets a legal move.
		move, eval := onePlyBest(pos, legal, spec.Config)
		outcome.Move = move
		outcome.EvaluationCp = eval
		outcome.DepthReached = 0
		outcome.TimedOut = true
	}
	return outcome
}

// searchRoot runs one full-depth pass over the root moves. It reports
// completed=false the moment the deadline interrupts, in which case the
// partial scores must not be trusted.
//
// With exact set the root window never narrows, so every root move gets
// its true minimax value instead of a fail-low bound. The teaching bias
// compares root moves against each other and a bound can overstate a
// losing move, so biased searches pay the extra nodes for exact values.
func searchRoot(pos *chess.Position, legal []*chess.Move, depth int, exact bool, ctx *searchContext) ([]rootScore, bool) {
	var hint *chess.Move
	if ctx.tt != nil {
		hint = ctx.tt.Probe(pos.Hash(), legal)
		if hint != nil && ctx.stats != nil {
			ctx.stats.TTHints++
		}
	}
	ordered := OrderMoves(pos, legal, hint, ctx.config)
	scores := make([]rootScore, 0, len(ordered))
	alpha := -mateScore - 1
	beta := mateScore + 1
	for _, cand := range ordered {
		child := pos.Update(cand.Move)
		value := -negamax(child, depth-1, 1, -beta, -alpha, ctx)
		if ctx.aborted {
			return nil, false
		}
		scores = append(scores, rootScore{move: cand.Move, raw: value})
		if !exact && value > alpha {
			alpha = value
		}
	}
	return scores, true
}

func negamax(pos *chess.Position, depth, ply, alpha, beta int, ctx *searchContext) int {
	ctx.nodes++
	if ctx.stats != nil {
		ctx.stats.Nodes++
	}
	if ctx.expired() {
		return drawScore
	}

	// Terminal states come from the rules engine and short-circuit the
	// subtree.
	switch pos.Status() {
	case chess.Checkmate:
		return matedIn(ply)
	case chess.Stalemate:
		return drawScore
	}
	if depth <= 0 || ply >= maxSearchPly {
		return Evaluate(pos, ctx.config)
	}

	legal := pos.ValidMoves()
	if len(legal) == 0 {
		return drawScore
	}
	var hint *chess.Move
	if ctx.tt != nil {
		hint = ctx.tt.Probe(pos.Hash(), legal)
		if hint != nil && ctx.stats != nil {
			ctx.stats.TTHints++
		}
	}
	ordered := OrderMoves(pos, legal, hint, ctx.config)

	best := -mateScore - 1
	var bestMove *chess.Move
	for _, cand := range ordered {
		child := pos.Update(cand.Move)
		value := -negamax(child, depth-1, ply+1, -beta, -alpha, ctx)
		if ctx.aborted {
			return drawScore
		}
		if value > best {
			best = value
			bestMove = cand.Move
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			if ctx.stats != nil {
				ctx.stats.Cutoffs++
			}
			break
		}
	}
	if ctx.tt != nil {
		ctx.tt.Store(pos.Hash(), depth, bestMove)
	}
	return best
}

// pickRootMove applies the teaching bias on top of the raw root values,
// which are exact whenever a bias is attached. The bias is additive and
// bounded; a candidate trailing the raw best by more than the material
// guard never wins on bias alone.
func pickRootMove(scores []rootScore, spec SearchSpec) (rootScore, bool) {
	rawBest := scores[0]
	for _, s := range scores[1:] {
		if s.raw > rawBest.raw {
			rawBest = s
		}
	}
	if spec.Bias == nil {
		return rawBest, false
	}
	usedBias := false
	chosen := rawBest
	chosen.biased = rawBest.raw
	for i := range scores {
		s := scores[i]
		if rawBest.raw-s.raw > spec.Config.BiasMaterialGuardCp {
			continue
		}
		bonus := spec.Bias.BonusFor(s.move, s.raw)
		if bonus == 0 {
			continue
		}
		usedBias = true
		s.bias = bonus
		s.biased = s.raw + bonus
		if s.biased > chosen.biased {
			chosen = s
		}
	}
	return chosen, usedBias
}

// onePlyBest evaluates every legal move one ply deep. Fallback path for
// impossibly tight budgets and pipeline faults.
func onePlyBest(pos *chess.Position, legal []*chess.Move, config Config) (*chess.Move, int) {
	if len(legal) == 0 {
		return nil, 0
	}
	best := legal[0]
	bestValue := -mateScore - 1
	for _, move := range legal {
		child := pos.Update(move)
		value := 0
		switch child.Status() {
		case chess.Checkmate:
			value = mateIn(1)
		case chess.Stalemate:
			value = drawScore
		default:
			value = -Evaluate(child, config)
		}
		if value > bestValue {
			bestValue = value
			best = move
		}
	}
	return best, bestValue
}
