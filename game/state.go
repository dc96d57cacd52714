package game

import (
	"fmt"
	"strings"
)

type Piece struct {
	ID    uint8 `json:"id"`
	Color Color `json:"color"`
	King  bool  `json:"king"`
	X     uint8 `json:"x"`
	Y     uint8 `json:"y"`
}

// Turn tracks whose move it is. ChainPiece is -1 unless a piece is in the
// middle of a multi-take.
type Turn struct {
	Color      Color `json:"color"`
	Count      int   `json:"count"`
	ChainCount int   `json:"chain_count"`
	ChainPiece int   `json:"chain_piece"`
}

func (t *Turn) change() {
	t.Color = t.Color.Opponent()
	t.Count++
	t.ChainCount = 0
	t.ChainPiece = -1
}

// Position is an immutable snapshot of the board. Operations on Position
// always return a new copy.
type Position struct {
	Pieces []Piece `json:"pieces"`
	Turn   Turn    `json:"turn"`
}

// NewPosition returns the starting position: twelve white men on rows 0-2,
// twelve black men on rows 5-7, white to move.
func NewPosition() Position {
	pieces := make([]Piece, 0, 24)
	id := uint8(0)
	for _, rows := range []struct {
		color Color
		from  int
	}{{White, 0}, {Black, 5}} {
		for x := rows.from; x < rows.from+3; x++ {
			for y := 0; y < BoardSize; y += 2 {
				pieces = append(pieces, Piece{
					ID:    id,
					Color: rows.color,
					X:     uint8(x),
					Y:     uint8(y + x%2),
				})
				id++
			}
		}
	}
	return Position{
		Pieces: pieces,
		Turn:   Turn{Color: White, ChainPiece: -1},
	}
}

func (p Position) Clone() Position {
	pieces := make([]Piece, len(p.Pieces))
	copy(pieces, p.Pieces)
	return Position{Pieces: pieces, Turn: p.Turn}
}

func (p Position) Equal(other Position) bool {
	if p.Turn != other.Turn || len(p.Pieces) != len(other.Pieces) {
		return false
	}
	for i := range p.Pieces {
		if p.Pieces[i] != other.Pieces[i] {
			return false
		}
	}
	return true
}

// Player returns the side to move.
func (p Position) Player() Color {
	return p.Turn.Color
}

func (p Position) PieceAt(x, y uint8) (Piece, bool) {
	for _, piece := range p.Pieces {
		if piece.X == x && piece.Y == y {
			return piece, true
		}
	}
	return Piece{}, false
}

func (p Position) Count(color Color) int {
	n := 0
	for _, piece := range p.Pieces {
		if piece.Color == color {
			n++
		}
	}
	return n
}

// Termination resolves the position. The game is over once the move limit
// is exceeded or either side has no pieces left; the side with more pieces wins.
func (p Position) Termination() Termination {
	whites, blacks := p.Count(White), p.Count(Black)
	if p.Turn.Count <= MoveLimit && whites > 0 && blacks > 0 {
		return Termination{}
	}
	switch {
	case whites > blacks:
		return Termination{Done: true, Winner: White, Pieces: whites}
	case blacks > whites:
		return Termination{Done: true, Winner: Black, Pieces: blacks}
	default:
		return Termination{Done: true, Draw: true}
	}
}

func (p Position) String() string {
	var sb strings.Builder
	for x := BoardSize - 1; x >= 0; x-- {
		fmt.Fprintf(&sb, "%d ", x)
		for y := 0; y < BoardSize; y++ {
			piece, ok := p.PieceAt(uint8(x), uint8(y))
			switch {
			case !ok:
				sb.WriteByte('.')
			case piece.Color == White && piece.King:
				sb.WriteByte('W')
			case piece.Color == White:
				sb.WriteByte('w')
			case piece.King:
				sb.WriteByte('B')
			default:
				sb.WriteByte('b')
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  01234567 %s to move, turn %d", p.Turn.Color, p.Turn.Count)
	return sb.String()
}
