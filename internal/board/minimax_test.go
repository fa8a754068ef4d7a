package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestMoveTakesImmediateWin(t *testing.T) {
	// O completes the top row
	assert.Equal(t, 2, BestMove("OO_XX____"))
}

func TestBestMoveBlocksOpponentWin(t *testing.T) {
	// X threatens the top row at 2; O has no win of its own
	assert.Equal(t, 2, BestMove("XX___O___"))
}

func TestBestMovePrefersFasterWin(t *testing.T) {
	// O can win on both line 0-1-2 (at 2) and 0-3-6 (at 6); lowest index wins the tie
	best := BestMove("OO_OXX_X_")
	assert.Equal(t, 2, best)
}

func TestBestMoveOnFullBoard(t *testing.T) {
	assert.Equal(t, -1, BestMove("XOXXOOOXX"))
}

func TestBestMoveIsDeterministic(t *testing.T) {
	positions := []string{
		EmptyBoard,
		"X________",
		"X___O__X_",
		"XOX_O____",
	}
	for _, p := range positions {
		first := BestMove(p)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, BestMove(p), "position %q", p)
		}
	}
}

func TestBestMoveNeverLoses(t *testing.T) {
	// Play X randomly-but-deterministically (first empty cell) vs minimax O.
	// O must never end in a lost position.
	b := EmptyBoard
	turn := SymbolX
	for !GetState(b, turn).IsGameOver {
		var idx int
		if turn == SymbolX {
			cells := EmptyCells(b)
			require.NotEmpty(t, cells)
			idx = cells[0]
		} else {
			idx = BestMove(b)
			require.GreaterOrEqual(t, idx, 0)
		}
		var err error
		b, err = ApplyMove(b, idx, turn)
		require.NoError(t, err)
		turn = NextTurn(turn)
	}
	assert.False(t, IsWinning(b, SymbolX), "minimax O lost: %q", b)
}
