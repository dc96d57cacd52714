package searcher

import (
	"errors"
	"math"

	"checkers/game"
)

// Hyperparameters for MCTS

const DefaultSimulations = 30
const DefaultRolloutDepth = 100

var DefaultExploration = math.Sqrt2

var (
	ErrIllegalMove             = errors.New("illegal move requested")
	ErrTerminalNode            = errors.New("node is terminal")
	ErrNoChildren              = errors.New("node has no children")
	ErrDegenerateProbabilities = errors.New("degenerate move probabilities")
	ErrUnknownNode             = errors.New("unknown node")
)

// Environment is the game the tree is searched over. Implementations are
// stateful: Step applies to the position set by the last Reset.
type Environment interface {
	// Reset restores position, or the starting position when nil.
	Reset(position *game.Position) (game.Position, error)
	// Step plays a move. reward follows the black-positive convention.
	Step(move game.Move) (next game.Position, reward float64, done bool, err error)
	LegalMoves(position game.Position) ([]game.Move, error)
}

// Prediction is an evaluator's view of a position. Priors are normalized
// over the legal moves and Value lies in [-1, 1] from the perspective of the
// side to move.
type Prediction struct {
	Priors map[game.Move]float64
	Value  float64
}

type Evaluator interface {
	Evaluate(position game.Position, legal []game.Move) (Prediction, error)
}
