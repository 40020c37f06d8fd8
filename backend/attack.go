package main

import "github.com/notnil/chess"

// Pseudo-legal attack detection over a board snapshot. Pins and legality
// are ignored on purpose: the orderer and criticality scorer only need to
// know whether a piece's movement rules reach a square with no blocker on
// a sliding path. Legality stays with the rules engine.

const noSquare = chess.Square(-1)

type squareDelta struct {
	df int
	dr int
}

var knightDeltas = [8]squareDelta{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

var kingDeltas = [8]squareDelta{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

var rookDeltas = [4]squareDelta{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

var bishopDeltas = [4]squareDelta{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

func squareAt(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return noSquare, false
	}
	return chess.Square(rank*8 + file), true
}

// isAttacked reports whether any piece of color `by` attacks sq.
func isAttacked(board *chess.Board, sq chess.Square, by chess.Color) bool {
	file := int(sq) % 8
	rank := int(sq) / 8

	// Pawns attack diagonally toward their forward direction.
	pawnRankStep := -1
	if by == chess.White {
		pawnRankStep = 1
	}
	for _, df := range [2]int{-1, 1} {
		if from, ok := squareAt(file+df, rank-pawnRankStep); ok {
			p := board.Piece(from)
			if p.Type() == chess.Pawn && p.Color() == by {
				return true
			}
		}
	}

	for _, d := range knightDeltas {
		if from, ok := squareAt(file+d.df, rank+d.dr); ok {
			p := board.Piece(from)
			if p.Type() == chess.Knight && p.Color() == by {
				return true
			}
		}
	}

	for _, d := range kingDeltas {
		if from, ok := squareAt(file+d.df, rank+d.dr); ok {
			p := board.Piece(from)
			if p.Type() == chess.King && p.Color() == by {
				return true
			}
		}
	}

	if slidingAttack(board, file, rank, by, rookDeltas[:], chess.Rook) {
		return true
	}
	return slidingAttack(board, file, rank, by, bishopDeltas[:], chess.Bishop)
}

// slidingAttack walks each ray until a blocker; a queen or the given
// slider type on the first occupied square attacks the origin.
func slidingAttack(board *chess.Board, file, rank int, by chess.Color, deltas []squareDelta, slider chess.PieceType) bool {
	for _, d := range deltas {
		f, r := file+d.df, rank+d.dr
		for {
			from, ok := squareAt(f, r)
			if !ok {
				break
			}
			p := board.Piece(from)
			if p != chess.NoPiece {
				if p.Color() == by && (p.Type() == slider || p.Type() == chess.Queen) {
					return true
				}
				break
			}
			f += d.df
			r += d.dr
		}
	}
	return false
}

func kingSquare(board *chess.Board, color chess.Color) chess.Square {
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p.Type() == chess.King && p.Color() == color {
			return sq
		}
	}
	return noSquare
}

// inCheck reports whether the side to move is in check.
func inCheck(pos *chess.Position) bool {
	board := pos.Board()
	ksq := kingSquare(board, pos.Turn())
	if ksq == noSquare {
		return false
	}
	return isAttacked(board, ksq, pos.Turn().Other())
}

// worstAttackedValue returns the highest piece value (excluding the king)
// among `color`'s pieces currently reachable by an opposing piece.
func worstAttackedValue(board *chess.Board, color chess.Color) int {
	worst := 0
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p == chess.NoPiece || p.Color() != color || p.Type() == chess.King {
			continue
		}
		value := pieceValue(p.Type())
		if value <= worst {
			continue
		}
		if isAttacked(board, sq, color.Other()) {
			worst = value
		}
	}
	return worst
}
