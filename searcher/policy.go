package searcher

import (
	"fmt"
	"math"

	"checkers/game"

	"golang.org/x/exp/rand"
)

type Kind int

const (
	Random Kind = iota // No search, uniform legal move
	Pure               // UCT with uniform rollouts
	Guided             // Evaluator-guided UCT and rollouts
)

func (k Kind) String() string {
	switch k {
	case Random:
		return "random"
	case Pure:
		return "pure"
	case Guided:
		return "guided"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "random":
		return Random, nil
	case "pure", "uct":
		return Pure, nil
	case "guided":
		return Guided, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}

// Strategy fills the policy slots of the search loop. Values are in the
// black-positive convention unless stated otherwise.
type Strategy interface {
	Kind() Kind
	// Score rates child for selection from the perspective of child's mover.
	Score(parent, child *Node, c float64) (float64, error)
	// Expand picks one of the unexplored moves and its prior.
	Expand(node *Node, unexplored []game.Move, rng *rand.Rand) (game.Move, float64, error)
	// Rollout picks a move during simulation and its probability.
	Rollout(node *Node, legal []game.Move, rng *rand.Rand) (game.Move, float64, error)
	// LeafValue estimates a non-terminal node where a rollout was cut short.
	LeafValue(node *Node) (float64, error)
}

func NewStrategy(kind Kind, evaluator Evaluator) (Strategy, error) {
	switch kind {
	case Random:
		return NewRandom(), nil
	case Pure:
		return NewPure(), nil
	case Guided:
		if evaluator == nil {
			return nil, fmt.Errorf("guided strategy requires an evaluator")
		}
		return NewGuided(evaluator), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %d", kind)
	}
}

type pure struct{}

func NewPure() Strategy { return pure{} }

func (pure) Kind() Kind { return Pure }

func (pure) Score(parent, child *Node, c float64) (float64, error) {
	return uct(float64(child.Wins()), child.visits, parent.visits, c), nil
}

func (pure) Expand(node *Node, unexplored []game.Move, rng *rand.Rand) (game.Move, float64, error) {
	return unexplored[rng.Intn(len(unexplored))], 1 / float64(len(unexplored)), nil
}

func (pure) Rollout(node *Node, legal []game.Move, rng *rand.Rand) (game.Move, float64, error) {
	return legal[rng.Intn(len(legal))], 1 / float64(len(legal)), nil
}

func (pure) LeafValue(node *Node) (float64, error) {
	return 0, nil
}

// random plays a uniform legal move without searching. Its slots fall back
// to the pure ones when the tree is searched anyway.
type random struct{ pure }

func NewRandom() Strategy { return random{} }

func (random) Kind() Kind { return Random }

type guided struct {
	evaluator Evaluator
}

func NewGuided(evaluator Evaluator) Strategy {
	return guided{evaluator: evaluator}
}

func (guided) Kind() Kind { return Guided }

// Score uses the evaluator's value of the child position, or the known
// outcome when the child is terminal.
func (g guided) Score(parent, child *Node, c float64) (float64, error) {
	var v float64
	if child.terminal {
		v = clamp(child.reward)
	} else {
		prediction, err := g.evaluator.Evaluate(child.position, child.legal)
		if err != nil {
			return 0, fmt.Errorf("evaluate child: %w", err)
		}
		v = prediction.Value
		if child.position.Player() != child.mover {
			v = -v
		}
	}
	return guidedUCT(v, child.prior, child.visits, parent.visits, c), nil
}

// Expand picks uniformly among the unexplored moves and records the
// evaluator's prior for the chosen one.
func (g guided) Expand(node *Node, unexplored []game.Move, rng *rand.Rand) (game.Move, float64, error) {
	prediction, err := g.evaluator.Evaluate(node.position, node.legal)
	if err != nil {
		return game.Move{}, 0, fmt.Errorf("evaluate expansion: %w", err)
	}
	move := unexplored[rng.Intn(len(unexplored))]
	return move, prediction.Priors[move], nil
}

func (g guided) Rollout(node *Node, legal []game.Move, rng *rand.Rand) (game.Move, float64, error) {
	prediction, err := g.evaluator.Evaluate(node.position, legal)
	if err != nil {
		return game.Move{}, 0, fmt.Errorf("evaluate rollout: %w", err)
	}

	total := 0.0
	for _, move := range legal {
		p := prediction.Priors[move]
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return game.Move{}, 0, fmt.Errorf("%w: prior %v for %s", ErrDegenerateProbabilities, p, move)
		}
		total += p
	}
	if total <= 0 {
		return game.Move{}, 0, fmt.Errorf("%w: priors sum to %v", ErrDegenerateProbabilities, total)
	}

	sampled := rng.Float64() * total
	cumulative := 0.0
	for _, move := range legal {
		p := prediction.Priors[move]
		cumulative += p
		if p > 0 && sampled < cumulative {
			return move, p / total, nil
		}
	}
	// Fallback in case of rounding errors
	for i := len(legal) - 1; i >= 0; i-- {
		if p := prediction.Priors[legal[i]]; p > 0 {
			return legal[i], p / total, nil
		}
	}
	return game.Move{}, 0, ErrDegenerateProbabilities
}

func (g guided) LeafValue(node *Node) (float64, error) {
	prediction, err := g.evaluator.Evaluate(node.position, node.legal)
	if err != nil {
		return 0, fmt.Errorf("evaluate leaf: %w", err)
	}
	return prediction.Value * node.position.Player().Sign(), nil
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
