package game

import "fmt"

// LocalEnv is an in-process gym-style environment. It is stateful and not
// safe for concurrent use.
type LocalEnv struct {
	initial Position
	current Position
}

func NewLocalEnv() *LocalEnv {
	initial := NewPosition()
	return &LocalEnv{initial: initial, current: initial.Clone()}
}

// Reset restores the given position, or the starting position when nil.
func (e *LocalEnv) Reset(position *Position) (Position, error) {
	if position != nil {
		e.current = position.Clone()
	} else {
		e.current = e.initial.Clone()
	}
	return e.current.Clone(), nil
}

// Step plays a move on the current position. The reward follows the
// black-positive convention and is non-zero only once the game is over.
func (e *LocalEnv) Step(move Move) (Position, float64, bool, error) {
	if e.current.Termination().Done {
		return Position{}, 0, true, ErrGameOver
	}
	next, err := e.current.Apply(move)
	if err != nil {
		return Position{}, 0, false, fmt.Errorf("step: %w", err)
	}
	e.current = next

	termination := next.Termination()
	return next.Clone(), termination.Reward(), termination.Done, nil
}

func (e *LocalEnv) LegalMoves(position Position) ([]Move, error) {
	return position.LegalMoves(), nil
}

func (e *LocalEnv) Current() Position {
	return e.current.Clone()
}
