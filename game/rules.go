package game

import "fmt"

type moveType int

const (
	invalid moveType = iota
	regular
	take
)

// Candidate displacements in the order moves are generated: target row
// ascending, then target column ascending.
var displacements = [...][2]int{
	{-2, -2}, {-2, 2},
	{-1, -1}, {-1, 1},
	{1, -1}, {1, 1},
	{2, -2}, {2, 2},
}

// LegalMoves lists the moves available to the side to move. A piece in the
// middle of a chain may only keep taking. Terminated positions have no moves.
func (p Position) LegalMoves() []Move {
	if p.Termination().Done {
		return nil
	}

	var moves []Move
	for _, piece := range p.Pieces {
		if piece.Color != p.Turn.Color {
			continue
		}
		if p.Turn.ChainCount > 0 && int(piece.ID) != p.Turn.ChainPiece {
			continue
		}
		for _, d := range displacements {
			tx, ty := int(piece.X)+d[0], int(piece.Y)+d[1]
			kind := p.classify(piece, tx, ty)
			if kind == invalid || (p.Turn.ChainCount > 0 && kind != take) {
				continue
			}
			moves = append(moves, Move{FromX: piece.X, FromY: piece.Y, ToX: uint8(tx), ToY: uint8(ty)})
		}
	}
	return moves
}

func (p Position) IsLegal(move Move) bool {
	for _, m := range p.LegalMoves() {
		if m == move {
			return true
		}
	}
	return false
}

// Apply plays a legal move and returns the resulting position.
func (p Position) Apply(move Move) (Position, error) {
	if !p.IsLegal(move) {
		return Position{}, fmt.Errorf("%w: %s for %s", ErrIllegalMove, move, p.Turn.Color)
	}

	next := p.Clone()
	mover := -1
	for i, piece := range next.Pieces {
		if piece.X == move.FromX && piece.Y == move.FromY {
			mover = i
			break
		}
	}
	piece := &next.Pieces[mover]
	piece.X, piece.Y = move.ToX, move.ToY
	if (piece.Color == White && piece.X == BoardSize-1) || (piece.Color == Black && piece.X == 0) {
		piece.King = true
	}
	moved := *piece

	if !move.isTake() {
		next.Turn.change()
		return next, nil
	}

	midX, midY := (move.FromX+move.ToX)/2, (move.FromY+move.ToY)/2
	next.remove(midX, midY)

	if next.Turn.ChainCount < ChainLimit && next.canTake(moved) {
		next.Turn.ChainCount++
		next.Turn.ChainPiece = int(moved.ID)
	} else {
		next.Turn.change()
	}
	return next, nil
}

func (p *Position) remove(x, y uint8) {
	kept := p.Pieces[:0]
	for _, piece := range p.Pieces {
		if piece.X == x && piece.Y == y {
			continue
		}
		kept = append(kept, piece)
	}
	p.Pieces = kept
}

func (p Position) canTake(piece Piece) bool {
	for _, d := range displacements {
		if p.classify(piece, int(piece.X)+d[0], int(piece.Y)+d[1]) == take {
			return true
		}
	}
	return false
}

// classify checks a single diagonal step or jump for the given piece.
// Men only move forward: white towards higher rows, black towards lower.
func (p Position) classify(piece Piece, tx, ty int) moveType {
	if tx < 0 || tx >= BoardSize || ty < 0 || ty >= BoardSize {
		return invalid
	}
	dx, dy := tx-int(piece.X), ty-int(piece.Y)
	if abs(dx) != abs(dy) || dx == 0 || abs(dx) > 2 {
		return invalid
	}
	if !piece.King {
		if (piece.Color == White && dx < 0) || (piece.Color == Black && dx > 0) {
			return invalid
		}
	}
	if _, occupied := p.PieceAt(uint8(tx), uint8(ty)); occupied {
		return invalid
	}
	if abs(dx) == 1 {
		return regular
	}

	jumped, ok := p.PieceAt(uint8(int(piece.X)+dx/2), uint8(int(piece.Y)+dy/2))
	if !ok || jumped.Color == piece.Color {
		return invalid
	}
	return take
}
