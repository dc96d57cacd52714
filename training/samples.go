package training

import (
	"fmt"
	"math"

	"checkers/game"
	"checkers/searcher"
)

// Epsilon keeps the policy log term finite for zero probabilities.
const Epsilon = 1e-5

// Sample is one position of a self-play trajectory. Value is the outcome
// target from the perspective of the side to move. Move, when set, is the
// move played from Position and Weight its recorded prior.
type Sample struct {
	Position game.Position
	Legal    []game.Move
	Move     *game.Move
	Weight   float64
	Value    float64
}

// Trajectory is a finished self-play game, ordered from the terminal
// position back to the root.
type Trajectory struct {
	Samples   []Sample
	Score     float64 // +1 if the last mover won, -1 otherwise
	LastMover game.Color
	Outcome   float64 // Black-positive terminal reward
}

// Trainable is an evaluator that can be fit to trajectories.
type Trainable interface {
	searcher.Evaluator
	// TrainStep applies one optimizer step on the batch and returns the loss
	// before the step.
	TrainStep(batch []Sample) (float64, error)
}

// BuildSamples turns the path from a terminal node to the root into
// training samples.
func BuildSamples(tree *searcher.Tree, terminal searcher.NodeID) (Trajectory, error) {
	end := tree.Node(terminal)
	if end == nil {
		return Trajectory{}, fmt.Errorf("%w: %d", searcher.ErrUnknownNode, terminal)
	}

	lastMover := end.Mover()
	outcome := end.Outcome()
	score := -1.0
	if outcome != 0 && winner(outcome) == lastMover {
		score = 1
	}

	path := tree.PathToRoot(terminal)
	samples := make([]Sample, 0, len(path))
	var next *searcher.Node // Node one step closer to the terminal
	for _, id := range path {
		node := tree.Node(id)
		legal, err := tree.LegalMoves(id)
		if err != nil {
			return Trajectory{}, err
		}
		sample := Sample{
			Position: node.Position(),
			Legal:    legal,
			Value:    score,
		}
		if node.Position().Player() != lastMover {
			sample.Value = -score
		}
		if next != nil {
			move, _ := next.Move()
			sample.Move = &move
			sample.Weight = next.Prior()
		}
		samples = append(samples, sample)
		next = node
	}

	return Trajectory{
		Samples:   samples,
		Score:     score,
		LastMover: lastMover,
		Outcome:   outcome,
	}, nil
}

// JointLoss is the AlphaZero objective over a batch:
//
//	sum (v - z)^2 - sum w * log(p(move) + eps)
func JointLoss(evaluator searcher.Evaluator, batch []Sample) (float64, error) {
	loss := 0.0
	for i, sample := range batch {
		prediction, err := evaluator.Evaluate(sample.Position, sample.Legal)
		if err != nil {
			return 0, fmt.Errorf("evaluate sample %d: %w", i, err)
		}
		diff := prediction.Value - sample.Value
		loss += diff * diff
		if sample.Move != nil {
			loss -= sample.Weight * math.Log(prediction.Priors[*sample.Move]+Epsilon)
		}
	}
	return loss, nil
}

func winner(outcome float64) game.Color {
	if outcome > 0 {
		return game.Black
	}
	return game.White
}
