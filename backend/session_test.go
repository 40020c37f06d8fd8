package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testSession(t *testing.T, settings SessionSettings) *Session {
	t.Helper()
	session, err := NewSession(settings, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return session
}

func TestSessionRejectsMoveBeforeStart(t *testing.T) {
	session := testSession(t, SessionSettings{Level: 1})
	if err := session.ApplyPlayerMove("e2e4"); err == nil {
		t.Fatalf("moves before start must be rejected")
	}
}

func TestSessionRejectsIllegalMove(t *testing.T) {
	session := testSession(t, SessionSettings{Level: 1})
	session.Start()
	if err := session.ApplyPlayerMove("e2e5"); err == nil {
		t.Fatalf("illegal move must be rejected")
	}
	if err := session.ApplyPlayerMove("e2e4"); err != nil {
		t.Fatalf("legal move rejected: %v", err)
	}
}

func TestSessionRejectsMoveOnEngineTurn(t *testing.T) {
	session := testSession(t, SessionSettings{Level: 1, EngineColor: "white"})
	session.Start()
	if err := session.ApplyPlayerMove("e2e4"); err == nil {
		t.Fatalf("the learner cannot move for the engine")
	}
}

func TestSessionEngineAnswersThroughTick(t *testing.T) {
	session := testSession(t, SessionSettings{Level: 1})
	session.Start()
	if err := session.ApplyPlayerMove("e2e4"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	deadline := time.Now().Add(15 * time.Second)
	for !session.Tick() {
		if time.Now().After(deadline) {
			t.Fatalf("engine never answered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	history := session.History().All()
	if len(history) != 2 {
		t.Fatalf("history should hold both moves, got %d", len(history))
	}
	engineEntry := history[1]
	if !engineEntry.IsEngine {
		t.Fatalf("second entry should be the engine's move")
	}
	if engineEntry.Color != "black" {
		t.Fatalf("engine plays black by default, got %s", engineEntry.Color)
	}
}

func TestSessionInvalidStartFEN(t *testing.T) {
	if _, err := NewSession(SessionSettings{Level: 1, StartFEN: "garbage"}, nil, zerolog.Nop()); err == nil {
		t.Fatalf("invalid start position must be rejected")
	}
}

func TestSessionCustomStartFEN(t *testing.T) {
	fen := "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1"
	session := testSession(t, SessionSettings{Level: 1, StartFEN: fen, EngineColor: "black"})
	session.Start()
	if err := session.ApplyPlayerMove("a1a8"); err != nil {
		t.Fatalf("mating move rejected: %v", err)
	}
	if session.Status() != StatusWhiteWon {
		t.Fatalf("back-rank mate should end the game, got %s", session.Status())
	}
}
