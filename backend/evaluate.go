package main

import "github.com/notnil/chess"

var centerSquares = [4]chess.Square{chess.D4, chess.E4, chess.D5, chess.E5}

// rimSquares are the knight graveyard: a3-a6 and h3-h6.
var rimSquares = map[chess.Square]bool{
	chess.A3: true, chess.A4: true, chess.A5: true, chess.A6: true,
	chess.H3: true, chess.H4: true, chess.H5: true, chess.H6: true,
}

// totalMaterial sums both sides' material excluding kings.
func totalMaterial(board *chess.Board) int {
	total := 0
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p == chess.NoPiece || p.Type() == chess.King {
			continue
		}
		total += pieceValue(p.Type())
	}
	return total
}

func materialFor(board *chess.Board, color chess.Color) int {
	total := 0
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p == chess.NoPiece || p.Color() != color || p.Type() == chess.King {
			continue
		}
		total += pieceValue(p.Type())
	}
	return total
}

func isEndgame(board *chess.Board, config Config) bool {
	return totalMaterial(board) < config.EndgameMaterialCp
}

func pieceCount(board *chess.Board) int {
	count := 0
	for sq := chess.A1; sq <= chess.H8; sq++ {
		if board.Piece(sq) != chess.NoPiece {
			count++
		}
	}
	return count
}

// Evaluate scores the position in centipawns from the mover's perspective.
// Pure and deterministic: evaluating a position and its color-flipped
// mirror yields negated scores.
func Evaluate(pos *chess.Position, config Config) int {
	board := pos.Board()
	endgame := isEndgame(board, config)
	material := totalMaterial(board)

	score := 0 // white's perspective until the final flip
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p == chess.NoPiece {
			continue
		}
		side := 1
		if p.Color() == chess.Black {
			side = -1
		}
		score += side * pieceValue(p.Type())
		score += side * pstValue(p.Type(), sq, p.Color(), endgame)

		if p.Type() == chess.Knight && rimSquares[sq] {
			score -= side * config.RimKnightPenalty
		}
	}

	for _, color := range [2]chess.Color{chess.White, chess.Black} {
		side := 1
		if color == chess.Black {
			side = -1
		}
		score += side * centerControl(board, color, config)
		score -= side * developmentPenalty(board, color, config)
		score += side * castlingBonus(board, color, endgame, config)
		if material > config.EndgameMaterialCp {
			score -= side * kingExposurePenalty(board, color, config)
			if !hasQueen(board, color) {
				score -= side * config.EarlyQueenTradePenalty
			}
		}
	}

	mover := 1
	if pos.Turn() == chess.Black {
		mover = -1
	}
	result := mover * score
	if inCheck(pos) {
		result -= config.EvalCheckPenalty
	}
	return result
}

func centerControl(board *chess.Board, color chess.Color, config Config) int {
	bonus := 0
	for _, sq := range centerSquares {
		p := board.Piece(sq)
		if p != chess.NoPiece && p.Color() == color {
			bonus += config.CenterControlBonus
		}
	}
	return bonus
}

// developmentPenalty charges for minor pieces still on their back rank.
func developmentPenalty(board *chess.Board, color chess.Color, config Config) int {
	backRank := 0
	if color == chess.Black {
		backRank = 7
	}
	penalty := 0
	for file := 0; file < 8; file++ {
		sq := chess.Square(backRank*8 + file)
		p := board.Piece(sq)
		if p.Color() != color {
			continue
		}
		if p.Type() == chess.Knight || p.Type() == chess.Bishop {
			penalty += config.DevelopmentPenalty
		}
	}
	return penalty
}

// castlingBonus rewards a king sitting on a castled file in the
// middlegame. Castling rights are not consulted; a king that walked to
// g1 scores the same as one that castled, which is what the safety
// heuristic cares about.
func castlingBonus(board *chess.Board, color chess.Color, endgame bool, config Config) int {
	if endgame {
		return 0
	}
	ksq := kingSquare(board, color)
	if ksq == noSquare {
		return 0
	}
	file := int(ksq) % 8
	rank := int(ksq) / 8
	homeRank := 0
	if color == chess.Black {
		homeRank = 7
	}
	if rank == homeRank && (file == 6 || file == 2) {
		return config.CastlingBonus
	}
	return 0
}

// kingExposurePenalty scales with how far the king has strayed and how
// open its surroundings are while material is still on the board.
func kingExposurePenalty(board *chess.Board, color chess.Color, config Config) int {
	ksq := kingSquare(board, color)
	if ksq == noSquare {
		return 0
	}
	file := int(ksq) % 8
	rank := int(ksq) / 8

	exposure := 0
	if color == chess.White {
		exposure += rank // ranks advanced past rank 1
	} else {
		exposure += 7 - rank
	}
	for _, d := range kingDeltas {
		adj, ok := squareAt(file+d.df, rank+d.dr)
		if !ok {
			continue
		}
		p := board.Piece(adj)
		if p == chess.NoPiece || p.Color() != color {
			exposure++
		}
	}
	return exposure * config.KingExposurePenalty
}

func hasQueen(board *chess.Board, color chess.Color) bool {
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := board.Piece(sq)
		if p.Type() == chess.Queen && p.Color() == color {
			return true
		}
	}
	return false
}
