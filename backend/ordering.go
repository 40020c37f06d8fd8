package main

import (
	"sort"

	"github.com/notnil/chess"
)

// ScoredMove is a candidate with the orderer's priority attached.
type ScoredMove struct {
	Move     *chess.Move
	Priority int
}

// OrderMoves ranks legal moves best-first: captures by MVV-LVA, then
// checks (weighted low so they are never chased over material), then
// castling and developing quiet moves. Captures and checks additionally
// pay for any piece they leave attackable. Quiet moves are exempt from
// that scan; running it for every move at every node costs an order of
// magnitude in throughput.
func OrderMoves(pos *chess.Position, moves []*chess.Move, hint *chess.Move, config Config) []ScoredMove {
	board := pos.Board()
	mover := pos.Turn()
	scored := make([]ScoredMove, 0, len(moves))
	for _, move := range moves {
		priority := movePriority(pos, board, mover, move, config)
		if hint != nil && move.S1() == hint.S1() && move.S2() == hint.S2() && move.Promo() == hint.Promo() {
			priority += 1 << 20
		}
		scored = append(scored, ScoredMove{Move: move, Priority: priority})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Priority > scored[j].Priority
	})
	return scored
}

func movePriority(pos *chess.Position, board *chess.Board, mover chess.Color, move *chess.Move, config Config) int {
	priority := 0
	capture := move.HasTag(chess.Capture) || move.HasTag(chess.EnPassant)
	check := move.HasTag(chess.Check)

	if capture {
		victim := pawnValue // en passant
		if v := board.Piece(move.S2()); v != chess.NoPiece {
			victim = pieceValue(v.Type())
		}
		attacker := pieceValue(board.Piece(move.S1()).Type())
		priority += config.OrderCaptureBase + victim - attacker/10
	}
	if move.Promo() == chess.Queen {
		priority += config.OrderPromotionBonus
	}
	if check {
		priority += config.OrderCheckBonus
	}
	if move.HasTag(chess.KingSideCastle) || move.HasTag(chess.QueenSideCastle) {
		priority += config.OrderCastleBonus
	}
	if !capture && isDevelopingMove(board, mover, move) {
		priority += config.OrderDevelopBonus
	}
	if p := board.Piece(move.S1()); p.Type() == chess.Knight && rimSquares[move.S2()] {
		priority -= config.RimKnightPenalty
	}

	// Tactical pre-filter: does this capture or check hang material?
	if capture || check {
		if hung := hangingValueAfter(pos, move, mover); hung >= config.HangingMinValueCp {
			priority -= hung * config.HangingPenaltyScale
		}
	}
	return priority
}

// hangingValueAfter simulates the move and returns the value of the most
// valuable mover piece left pseudo-legally attackable.
func hangingValueAfter(pos *chess.Position, move *chess.Move, mover chess.Color) int {
	next := pos.Update(move)
	if next == nil {
		return 0
	}
	return worstAttackedValue(next.Board(), mover)
}

func isDevelopingMove(board *chess.Board, mover chess.Color, move *chess.Move) bool {
	p := board.Piece(move.S1())
	if p.Type() != chess.Knight && p.Type() != chess.Bishop {
		return false
	}
	homeRank := 0
	if mover == chess.Black {
		homeRank = 7
	}
	return int(move.S1())/8 == homeRank && int(move.S2())/8 != homeRank
}
