package board

import "errors"

// Symbols and the empty cell marker. A board is a 9-character string over
// {X, O, _}, indexed 0..8 row-major.
const (
	SymbolX   = "X"
	SymbolO   = "O"
	EmptyCell = '_'

	// EmptyBoard is the starting position.
	EmptyBoard = "_________"

	// Size is the number of cells.
	Size = 9
)

// Move validation errors
var (
	ErrNotYourTurn     = errors.New("not your turn")
	ErrInvalidPosition = errors.New("invalid position")
	ErrCellOccupied    = errors.New("cell already occupied")
	ErrGameOver        = errors.New("game is already over")
)

// winningTriples are the 8 canonical lines: 3 rows, 3 columns, 2 diagonals.
var winningTriples = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// IsWinning reports whether symbol occupies any winning triple.
func IsWinning(board, symbol string) bool {
	if len(board) != Size || len(symbol) != 1 {
		return false
	}
	s := symbol[0]
	for _, t := range winningTriples {
		if board[t[0]] == s && board[t[1]] == s && board[t[2]] == s {
			return true
		}
	}
	return false
}

// IsDraw reports whether the board is full with no winner.
func IsDraw(board string) bool {
	if len(board) != Size {
		return false
	}
	for i := 0; i < Size; i++ {
		if board[i] == EmptyCell {
			return false
		}
	}
	return !IsWinning(board, SymbolX) && !IsWinning(board, SymbolO)
}

// ApplyMove returns a new board with the symbol placed at index. The input
// board is never mutated.
func ApplyMove(board string, index int, symbol string) (string, error) {
	if index < 0 || index >= Size {
		return "", ErrInvalidPosition
	}
	if board[index] != EmptyCell {
		return "", ErrCellOccupied
	}
	cells := []byte(board)
	cells[index] = symbol[0]
	return string(cells), nil
}

// Validate performs the composite move check: turn order first, then bounds,
// then occupancy, then terminal state. Returns nil for a legal move.
func Validate(board string, index int, symbol, expectedTurn string) error {
	if symbol != expectedTurn {
		return ErrNotYourTurn
	}
	if index < 0 || index >= Size {
		return ErrInvalidPosition
	}
	if board[index] != EmptyCell {
		return ErrCellOccupied
	}
	if GetState(board, symbol).IsGameOver {
		return ErrGameOver
	}
	return nil
}

// NextTurn flips the turn symbol.
func NextTurn(turn string) string {
	if turn == SymbolX {
		return SymbolO
	}
	return SymbolX
}

// State is the derived view of a board position.
type State struct {
	Board      string `json:"board"`
	Turn       string `json:"turn"`
	Winner     string `json:"winner,omitempty"`
	IsDraw     bool   `json:"isDraw"`
	IsGameOver bool   `json:"isGameOver"`
}

// GetState evaluates winner, draw and terminal flags for a position.
func GetState(board, turn string) State {
	xWins := IsWinning(board, SymbolX)
	oWins := IsWinning(board, SymbolO)
	draw := IsDraw(board)

	st := State{
		Board:      board,
		Turn:       turn,
		IsDraw:     draw,
		IsGameOver: xWins || oWins || draw,
	}
	if xWins {
		st.Winner = SymbolX
	} else if oWins {
		st.Winner = SymbolO
	}
	return st
}

// EmptyCells returns the open cell indices in ascending order.
func EmptyCells(board string) []int {
	var cells []int
	for i := 0; i < len(board) && i < Size; i++ {
		if board[i] == EmptyCell {
			cells = append(cells, i)
		}
	}
	return cells
}
