package board

// BestMove returns the strongest cell for O via exhaustive minimax to
// terminal depth. Ties break toward the lowest cell index, so the choice is
// deterministic for a given position. Returns -1 when no cell is open.
func BestMove(board string) int {
	bestScore := -1 << 30
	bestMove := -1

	for _, cell := range EmptyCells(board) {
		next, err := ApplyMove(board, cell, SymbolO)
		if err != nil {
			continue
		}
		score := minimax(next, 0, false)
		if score > bestScore {
			bestScore = score
			bestMove = cell
		}
	}
	return bestMove
}

// minimax scores a position. O maximizes: an O win at depth d scores 10-d,
// an X win scores d-10, a draw 0. Depth adjustment prefers faster wins and
// slower losses.
func minimax(board string, depth int, maximizing bool) int {
	turn := SymbolX
	if maximizing {
		turn = SymbolO
	}
	st := GetState(board, turn)
	switch {
	case st.Winner == SymbolO:
		return 10 - depth
	case st.Winner == SymbolX:
		return depth - 10
	case st.IsDraw:
		return 0
	}

	if maximizing {
		best := -1 << 30
		for _, cell := range EmptyCells(board) {
			next, _ := ApplyMove(board, cell, SymbolO)
			if score := minimax(next, depth+1, false); score > best {
				best = score
			}
		}
		return best
	}

	best := 1 << 30
	for _, cell := range EmptyCells(board) {
		next, _ := ApplyMove(board, cell, SymbolX)
		if score := minimax(next, depth+1, true); score < best {
			best = score
		}
	}
	return best
}
