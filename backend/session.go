package main

import (
	"fmt"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusRunning    SessionStatus = "running"
	StatusWhiteWon   SessionStatus = "white_won"
	StatusBlackWon   SessionStatus = "black_won"
	StatusDraw       SessionStatus = "draw"
)

type HistoryEntry struct {
	Move      string  `json:"move"`
	Color     string  `json:"color"`
	ElapsedMs float64 `json:"elapsed_ms"`
	IsEngine  bool    `json:"is_engine"`
	Depth     int     `json:"depth"`
	EvalCp    int     `json:"eval_cp"`
}

type MoveHistory struct {
	entries []HistoryEntry
}

func (h *MoveHistory) Clear() {
	h.entries = nil
}

func (h *MoveHistory) Push(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
}

func (h MoveHistory) Size() int {
	return len(h.entries)
}

func (h MoveHistory) All() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}

// SessionSettings configure one game against the engine.
type SessionSettings struct {
	Level       int    `json:"level"`
	EngineColor string `json:"engine_color"`
	StartFEN    string `json:"start_fen,omitempty"`
}

// Session is one game of learner versus engine. The engine side runs
// through the cancellation harness; the learner side arrives as UCI
// strings from the API. Not safe for concurrent use; the controller
// serializes access.
type Session struct {
	settings  SessionSettings
	game      *chess.Game
	engine    *EnginePlayer
	store     *WeaknessStore
	history   MoveHistory
	status    SessionStatus
	turnStart time.Time
	log       zerolog.Logger
}

func NewSession(settings SessionSettings, store *WeaknessStore, log zerolog.Logger) (*Session, error) {
	s := &Session{
		engine: NewEnginePlayer(log),
		store:  store,
		log:    log,
	}
	if err := s.Reset(settings); err != nil {
		return nil, err
	}
	return s, nil
}

func engineColor(name string) chess.Color {
	if name == "white" {
		return chess.White
	}
	return chess.Black
}

func colorName(c chess.Color) string {
	if c == chess.White {
		return "white"
	}
	return "black"
}

func (s *Session) Reset(settings SessionSettings) error {
	settings.Level = clampLevel(settings.Level)
	if settings.EngineColor == "" {
		settings.EngineColor = "black"
	}
	s.engine.Cancel()
	if settings.StartFEN != "" {
		fen, err := chess.FEN(settings.StartFEN)
		if err != nil {
			return ErrInvalidPosition
		}
		s.game = chess.NewGame(fen)
	} else {
		s.game = chess.NewGame()
	}
	s.settings = settings
	s.history.Clear()
	s.status = StatusNotStarted
	s.turnStart = time.Now()
	return nil
}

func (s *Session) Start() {
	if s.status == StatusNotStarted {
		s.status = StatusRunning
		s.turnStart = time.Now()
		s.log.Info().
			Int("level", s.settings.Level).
			Str("engine_color", s.settings.EngineColor).
			Msg("session started")
	}
}

func (s *Session) Status() SessionStatus {
	return s.status
}

func (s *Session) Position() *chess.Position {
	return s.game.Position()
}

func (s *Session) History() MoveHistory {
	return s.history
}

func (s *Session) EngineThinking() bool {
	return s.engine.IsThinking()
}

func (s *Session) Engine() *EnginePlayer {
	return s.engine
}

func (s *Session) TurnStartedAtMs() int64 {
	if s.turnStart.IsZero() {
		return 0
	}
	return s.turnStart.UnixMilli()
}

func (s *Session) engineToMove() bool {
	return s.game.Position().Turn() == engineColor(s.settings.EngineColor)
}

// ApplyPlayerMove applies one learner move given in UCI. The move is
// matched against the rules engine's legal set; anything else is
// rejected without touching the game.
func (s *Session) ApplyPlayerMove(uci string) error {
	if s.status != StatusRunning {
		return fmt.Errorf("game not running")
	}
	if s.engineToMove() {
		return fmt.Errorf("not your turn")
	}
	move := moveByUCI(s.game.Position().ValidMoves(), uci)
	if move == nil {
		return fmt.Errorf("illegal move %q", uci)
	}
	elapsed := float64(time.Since(s.turnStart).Milliseconds())
	color := s.game.Position().Turn()
	if err := s.game.Move(move); err != nil {
		return err
	}
	s.history.Push(HistoryEntry{
		Move:      uci,
		Color:     colorName(color),
		ElapsedMs: elapsed,
	})
	s.turnStart = time.Now()
	s.refreshStatus()
	return nil
}

// Tick drives the engine side: collect a finished move, or launch the
// search if it is the engine's turn and nothing is in flight. Reports
// whether the visible state changed.
func (s *Session) Tick() bool {
	if s.status != StatusRunning {
		return false
	}
	if !s.engineToMove() {
		return false
	}
	if s.engine.HasMoveReady() {
		resp := s.engine.TakeResponse()
		return s.applyEngineMove(resp)
	}
	if !s.engine.IsThinking() {
		s.launchEngine()
	}
	return false
}

func (s *Session) launchEngine() {
	req := MoveRequest{
		Position: s.game.Position(),
		Level:    s.settings.Level,
	}
	if s.store != nil {
		config := GetConfig()
		signatures, err := s.store.Read(config.BiasTopSignatures)
		if err != nil {
			s.log.Warn().Err(err).Msg("weakness store read failed, searching unbiased")
		} else {
			req.Signatures = signatures
		}
	}
	s.engine.StartThinking(req)
}

func (s *Session) applyEngineMove(resp MoveResponse) bool {
	move := moveByUCI(s.game.Position().ValidMoves(), resp.Move)
	if move == nil {
		// Stale response from a superseded position.
		return false
	}
	elapsed := float64(time.Since(s.turnStart).Milliseconds())
	color := s.game.Position().Turn()
	if err := s.game.Move(move); err != nil {
		s.log.Error().Err(err).Str("move", resp.Move).Msg("engine move rejected")
		return false
	}
	s.history.Push(HistoryEntry{
		Move:      resp.Move,
		Color:     colorName(color),
		ElapsedMs: elapsed,
		IsEngine:  true,
		Depth:     resp.DepthReached,
		EvalCp:    resp.EvaluationCp,
	})
	s.turnStart = time.Now()
	s.refreshStatus()
	return true
}

func (s *Session) refreshStatus() {
	switch s.game.Outcome() {
	case chess.WhiteWon:
		s.status = StatusWhiteWon
	case chess.BlackWon:
		s.status = StatusBlackWon
	case chess.Draw:
		s.status = StatusDraw
	}
}
