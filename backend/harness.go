package main

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrNoLegalMoves    = errors.New("no legal moves")
	ErrCancelled       = errors.New("computation cancelled")
)

type HarnessState int32

const (
	StateIdle HarnessState = iota
	StateComputing
	StateCompleted
	StateTimedOut
	StateCancelled
)

func (s HarnessState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComputing:
		return "computing"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// MoveRequest asks the engine for one move. Position takes precedence
// over FEN when both are set; API callers supply FEN.
type MoveRequest struct {
	FEN          string              `json:"fen"`
	Position     *chess.Position     `json:"-"`
	Level        int                 `json:"level"`
	DepthHint    int                 `json:"depth_hint,omitempty"`
	TimeBudgetMs int                 `json:"time_budget_ms,omitempty"`
	Signatures   []WeaknessSignature `json:"signatures,omitempty"`
}

type MoveResponse struct {
	RequestID        string `json:"request_id"`
	Move             string `json:"move"`
	DepthReached     int    `json:"depth_reached"`
	NodesSearched    int64  `json:"nodes_searched"`
	EvaluationCp     int    `json:"evaluation_cp"`
	TimedOut         bool   `json:"timed_out"`
	UsedTeachingBias bool   `json:"used_teaching_bias"`
	State            string `json:"state"`
	ElapsedMs        int64  `json:"elapsed_ms"`
}

// EnginePlayer owns one search pipeline: a dedicated worker per request,
// an atomic stop flag so a new request supersedes the one in flight, and
// a hard-timeout guard that answers from the latest completed depth (or
// a one-ply scan) if the worker overruns its budget plus grace.
type EnginePlayer struct {
	requestMu  sync.Mutex
	moveMutex  sync.Mutex
	workerDone chan struct{}
	thinking   atomic.Bool
	moveReady  atomic.Bool
	stopSignal atomic.Bool
	state      atomic.Int32

	readyResponse MoveResponse
	bank          *TimeBank
	tt            *MoveHintTable

	snapshotMu sync.Mutex
	snapshot   ProgressEvent
	hasDepth   bool

	ProgressSink func(ProgressEvent)
	log          zerolog.Logger
}

func NewEnginePlayer(log zerolog.Logger) *EnginePlayer {
	config := GetConfig()
	return &EnginePlayer{
		bank: &TimeBank{},
		tt:   NewMoveHintTable(config.TtSize),
		log:  log,
	}
}

func (e *EnginePlayer) State() HarnessState {
	return HarnessState(e.state.Load())
}

func (e *EnginePlayer) IsThinking() bool {
	return e.thinking.Load()
}

func (e *EnginePlayer) HasMoveReady() bool {
	return e.moveReady.Load()
}

func (e *EnginePlayer) TakeResponse() MoveResponse {
	e.moveMutex.Lock()
	defer e.moveMutex.Unlock()
	e.moveReady.Store(false)
	return e.readyResponse
}

// Cancel stops the in-flight request, if any. The worker observes the
// flag at its next deadline poll and winds down without publishing.
func (e *EnginePlayer) Cancel() {
	if e.thinking.Load() {
		e.stopSignal.Store(true)
	}
}

// admit takes over the pipeline for a new request: the previous search,
// sync or async, is told to stop and is waited out first, so at most one
// search owns the pipeline at a time.
func (e *EnginePlayer) admit() chan struct{} {
	e.requestMu.Lock()
	defer e.requestMu.Unlock()
	e.supersede()
	e.thinking.Store(true)
	e.moveReady.Store(false)
	e.state.Store(int32(StateComputing))
	done := make(chan struct{})
	e.workerDone = done
	return done
}

// ComputeMove answers synchronously. It runs on the same pipeline as
// StartThinking: any in-flight request is superseded first, and a later
// request or Cancel stops this one mid-search.
func (e *EnginePlayer) ComputeMove(req MoveRequest) (MoveResponse, error) {
	done := e.admit()
	resp, err := e.compute(req)
	cancelled := e.stopSignal.Load()
	state := StateCompleted
	switch {
	case cancelled:
		state = StateCancelled
	case err != nil:
		state = StateIdle
	case resp.TimedOut:
		state = StateTimedOut
	}
	e.state.Store(int32(state))
	resp.State = state.String()
	e.thinking.Store(false)
	close(done)
	if err != nil {
		return MoveResponse{}, err
	}
	if cancelled {
		return MoveResponse{}, ErrCancelled
	}
	return resp, nil
}

// StartThinking launches the request on its own worker.
func (e *EnginePlayer) StartThinking(req MoveRequest) {
	done := e.admit()
	go func() {
		defer close(done)
		resp, err := e.compute(req)
		if e.stopSignal.Load() {
			e.state.Store(int32(StateCancelled))
			e.moveReady.Store(false)
			e.thinking.Store(false)
			return
		}
		if err != nil {
			e.log.Error().Err(err).Str("fen", req.FEN).Msg("move computation failed")
			e.state.Store(int32(StateIdle))
			e.moveReady.Store(false)
			e.thinking.Store(false)
			return
		}
		if resp.TimedOut {
			e.state.Store(int32(StateTimedOut))
		} else {
			e.state.Store(int32(StateCompleted))
		}
		resp.State = e.State().String()
		e.moveMutex.Lock()
		e.readyResponse = resp
		e.moveMutex.Unlock()
		e.moveReady.Store(true)
		e.thinking.Store(false)
	}()
}

func (e *EnginePlayer) supersede() {
	if e.thinking.Load() {
		e.stopSignal.Store(true)
	}
	if e.workerDone != nil {
		<-e.workerDone
		e.workerDone = nil
	}
	e.stopSignal.Store(false)
}

func resolvePosition(req MoveRequest) (*chess.Position, error) {
	if req.Position != nil {
		return req.Position, nil
	}
	pos := &chess.Position{}
	if err := pos.UnmarshalText([]byte(req.FEN)); err != nil {
		return nil, ErrInvalidPosition
	}
	return pos, nil
}

// compute runs plan, search and fallback for one request. It must
// return a legal move on every path except the two sentinel errors.
func (e *EnginePlayer) compute(req MoveRequest) (MoveResponse, error) {
	config := GetConfig()
	pos, err := resolvePosition(req)
	if err != nil {
		return MoveResponse{}, err
	}
	legal := pos.ValidMoves()
	if len(legal) == 0 {
		return MoveResponse{}, ErrNoLegalMoves
	}

	level := clampLevel(req.Level)
	plan := PlanMove(pos, legal, level, req.TimeBudgetMs, e.bank, config)
	if req.DepthHint > 0 && req.DepthHint < plan.MaxDepth {
		plan.MaxDepth = req.DepthHint
		if plan.StartDepth > plan.MaxDepth {
			plan.StartDepth = plan.MaxDepth
		}
	}

	start := time.Now()
	requestID := uuid.NewString()
	bias := NewTeachingBias(pos, level, req.Signatures, config)
	stats := &SearchStats{Start: start}

	e.snapshotMu.Lock()
	e.snapshot = ProgressEvent{}
	e.hasDepth = false
	e.snapshotMu.Unlock()

	spec := SearchSpec{
		StartDepth:   plan.StartDepth,
		MaxDepth:     plan.MaxDepth,
		SoftDeadline: plan.SoftDeadline(start),
		HardDeadline: plan.HardDeadline(start, config),
		Stop:         func() bool { return e.stopSignal.Load() },
		Bias:         bias,
		Config:       config,
		Stats:        stats,
		TT:           e.tt,
		Progress: func(ev ProgressEvent) {
			e.snapshotMu.Lock()
			e.snapshot = ev
			e.hasDepth = true
			e.snapshotMu.Unlock()
			if e.ProgressSink != nil {
				e.ProgressSink(ev)
			}
		},
	}

	outcome := e.runGuarded(pos, legal, spec, config)
	elapsed := time.Since(start)
	e.bank.Deposit(plan.BudgetMs-int(elapsed.Milliseconds()), config)

	if config.LogSearchStats {
		e.log.Info().
			Str("request_id", requestID).
			Int("level", level).
			Int("criticality", plan.Criticality).
			Int("budget_ms", plan.BudgetMs).
			Int64("elapsed_ms", elapsed.Milliseconds()).
			Int("depth", outcome.DepthReached).
			Int64("nodes", outcome.Nodes).
			Int("eval_cp", outcome.EvaluationCp).
			Bool("timed_out", outcome.TimedOut).
			Bool("used_bias", outcome.UsedBias).
			Msg("search finished")
	}

	return MoveResponse{
		RequestID:        requestID,
		Move:             outcome.Move.String(),
		DepthReached:     outcome.DepthReached,
		NodesSearched:    outcome.Nodes,
		EvaluationCp:     outcome.EvaluationCp,
		TimedOut:         outcome.TimedOut,
		UsedTeachingBias: outcome.UsedBias,
		ElapsedMs:        elapsed.Milliseconds(),
	}, nil
}

// runGuarded wraps the search with the panic fallback and the hard
// timeout. If the worker overruns budget plus grace, the guard answers
// from the last completed depth, or a one-ply scan when no depth ever
// finished, and leaves the stopped worker to drain on its own.
func (e *EnginePlayer) runGuarded(pos *chess.Position, legal []*chess.Move, spec SearchSpec, config Config) SearchOutcome {
	result := make(chan SearchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error().Interface("panic", r).Msg("search panicked, using one-ply fallback")
				move, eval := onePlyBest(pos, legal, config)
				result <- SearchOutcome{
					Move:         move,
					EvaluationCp: eval,
					TimedOut:     true,
				}
			}
		}()
		result <- IterativeSearch(pos, legal, spec)
	}()

	hardTimer := time.NewTimer(time.Until(spec.HardDeadline))
	defer hardTimer.Stop()
	select {
	case outcome := <-result:
		return outcome
	case <-hardTimer.C:
		// The worker polls its own hard deadline and drains shortly; the
		// buffered result channel lets it exit either way.
		e.snapshotMu.Lock()
		snap := e.snapshot
		completed := e.hasDepth
		e.snapshotMu.Unlock()
		if completed {
			if move := moveByUCI(legal, snap.BestMove); move != nil {
				return SearchOutcome{
					Move:         move,
					EvaluationCp: snap.EvaluationCp,
					DepthReached: snap.Depth,
					Nodes:        snap.Nodes,
					TimedOut:     true,
				}
			}
		}
		move, eval := onePlyBest(pos, legal, config)
		return SearchOutcome{Move: move, EvaluationCp: eval, TimedOut: true}
	}
}

func moveByUCI(legal []*chess.Move, uci string) *chess.Move {
	for _, m := range legal {
		if m.String() == uci {
			return m
		}
	}
	return nil
}
