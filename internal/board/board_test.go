package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWinningAllTriples(t *testing.T) {
	triples := [][3]int{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
		{0, 4, 8}, {2, 4, 6},
	}

	for _, tr := range triples {
		cells := []byte(EmptyBoard)
		for _, i := range tr {
			cells[i] = 'X'
		}
		b := string(cells)
		assert.True(t, IsWinning(b, SymbolX), "triple %v should win for X", tr)
		assert.False(t, IsWinning(b, SymbolO), "triple %v should not win for O", tr)
	}
}

func TestIsWinningRejectsNonLines(t *testing.T) {
	// Three X's that do not form a line
	assert.False(t, IsWinning("XX__X____", SymbolX))
	assert.False(t, IsWinning(EmptyBoard, SymbolX))
	// Mixed line is not a win
	assert.False(t, IsWinning("XOX______", SymbolX))
}

func TestIsDraw(t *testing.T) {
	assert.True(t, IsDraw("XOXXOOOXX"))
	assert.False(t, IsDraw("XOXXOOOX_"), "board with open cell is not a draw")
	assert.False(t, IsDraw("XXXOO_O__"), "winning board is not a draw")
}

func TestApplyMoveDoesNotMutateInput(t *testing.T) {
	in := "X___O____"
	out, err := ApplyMove(in, 2, SymbolX)
	require.NoError(t, err)
	assert.Equal(t, "X___O____", in)
	assert.Equal(t, "X_X_O____", out)

	// Result differs only at the target index
	for i := 0; i < Size; i++ {
		if i == 2 {
			continue
		}
		assert.Equal(t, in[i], out[i], "cell %d changed", i)
	}
}

func TestApplyMoveErrors(t *testing.T) {
	_, err := ApplyMove(EmptyBoard, -1, SymbolX)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = ApplyMove(EmptyBoard, 9, SymbolX)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = ApplyMove("X________", 0, SymbolO)
	assert.ErrorIs(t, err, ErrCellOccupied)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		board    string
		index    int
		symbol   string
		expected string
		wantErr  error
	}{
		{"wrong turn", EmptyBoard, 0, SymbolO, SymbolX, ErrNotYourTurn},
		{"out of range low", EmptyBoard, -1, SymbolX, SymbolX, ErrInvalidPosition},
		{"out of range high", EmptyBoard, 9, SymbolX, SymbolX, ErrInvalidPosition},
		{"occupied", "X________", 0, SymbolO, SymbolO, ErrCellOccupied},
		{"game over", "XXX______", 5, SymbolO, SymbolO, ErrGameOver},
		{"legal", EmptyBoard, 4, SymbolX, SymbolX, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.board, tt.index, tt.symbol, tt.expected)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestGetStateReportsWinner(t *testing.T) {
	st := GetState("XXX______", SymbolO)
	assert.Equal(t, SymbolX, st.Winner)
	assert.True(t, st.IsGameOver)
	assert.False(t, st.IsDraw)

	st = GetState(EmptyBoard, SymbolX)
	assert.Empty(t, st.Winner)
	assert.False(t, st.IsGameOver)
}

func TestNextTurn(t *testing.T) {
	assert.Equal(t, SymbolO, NextTurn(SymbolX))
	assert.Equal(t, SymbolX, NextTurn(SymbolO))
}

func TestEmptyCells(t *testing.T) {
	assert.Equal(t, []int{1, 3, 5, 7}, EmptyCells("X_O_X_O_X"))
	assert.Nil(t, EmptyCells("XOXXOOOXX"))
	assert.Len(t, EmptyCells(EmptyBoard), 9)
}

func TestReplayReproducesBoard(t *testing.T) {
	// Alternate legal moves, then replay the log from empty
	moves := []struct {
		index  int
		symbol string
	}{
		{4, SymbolX}, {0, SymbolO}, {8, SymbolX}, {2, SymbolO}, {6, SymbolX},
	}

	b := EmptyBoard
	for _, m := range moves {
		var err error
		b, err = ApplyMove(b, m.index, m.symbol)
		require.NoError(t, err)
	}

	replayed := EmptyBoard
	for _, m := range moves {
		var err error
		replayed, err = ApplyMove(replayed, m.index, m.symbol)
		require.NoError(t, err)
	}
	assert.Equal(t, b, replayed)
}
