package game

import "fmt"

// MoveSpace is the size of the dense action space: one slot per
// (from square, to square) pair.
const MoveSpace = BoardSize * BoardSize * BoardSize * BoardSize

// Move relocates the piece on (FromX, FromY) to (ToX, ToY). X is the row.
type Move struct {
	FromX uint8 `json:"from_x"`
	FromY uint8 `json:"from_y"`
	ToX   uint8 `json:"to_x"`
	ToY   uint8 `json:"to_y"`
}

func (m Move) Index() int {
	return ((int(m.FromX)*BoardSize+int(m.FromY))*BoardSize+int(m.ToX))*BoardSize + int(m.ToY)
}

func MoveFromIndex(index int) (Move, error) {
	if index < 0 || index >= MoveSpace {
		return Move{}, fmt.Errorf("move index %d out of range", index)
	}
	return Move{
		FromX: uint8(index / (BoardSize * BoardSize * BoardSize)),
		FromY: uint8(index / (BoardSize * BoardSize) % BoardSize),
		ToX:   uint8(index / BoardSize % BoardSize),
		ToY:   uint8(index % BoardSize),
	}, nil
}

// isTake reports whether the move jumps two squares.
func (m Move) isTake() bool {
	return abs(int(m.ToX)-int(m.FromX)) == 2
}

func (m Move) String() string {
	return fmt.Sprintf("(%d,%d)->(%d,%d)", m.FromX, m.FromY, m.ToX, m.ToY)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
