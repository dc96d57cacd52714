package agent

import (
	"fmt"
	"math"

	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"golang.org/x/exp/rand"
)

type trainingAgent struct {
	treeAgent
	temperature float64
	rng         *rand.Rand
}

// NewTrainingAgent returns an agent for self-play: after each search it
// samples a move from the visit distribution sharpened by temperature.
func NewTrainingAgent(id int, tree *searcher.Tree, temperature float64, rng *rand.Rand) Agent {
	if temperature <= 0 {
		temperature = 1
	}
	if rng == nil {
		rng = tree.Rand()
	}
	return &trainingAgent{treeAgent: newTreeAgent(id, tree), temperature: temperature, rng: rng}
}

func (a *trainingAgent) FindMove(position game.Position, history []game.Move) (game.Move, metrics.SearchMetric, error) {
	decision, err := a.search(position, history)
	if err != nil {
		return game.Move{}, metrics.SearchMetric{}, err
	}

	searched := a.current
	move := sample(adjustTemperature(a.tree.Policy(searched), a.temperature), a.rng)
	child, ok := a.tree.Find(searched, []game.Move{move})
	if !ok {
		return game.Move{}, metrics.SearchMetric{}, fmt.Errorf("sampled move %s has no child", move)
	}
	a.current = child
	return move, decision.Metric, nil
}

func adjustTemperature(policy map[game.Move]float64, temperature float64) map[game.Move]float64 {
	exponent := 1.0 / temperature
	sum := 0.0
	adjusted := make(map[game.Move]float64, len(policy))
	for move, visit := range policy {
		prob := math.Pow(visit, exponent)
		sum += prob
		adjusted[move] = prob
	}
	if sum == 0 {
		return adjusted
	}
	for move := range adjusted {
		adjusted[move] /= sum
	}
	return adjusted
}

func sample(policy map[game.Move]float64, rng *rand.Rand) game.Move {
	sampled := rng.Float64()
	cumulative := 0.0
	var lastMove game.Move
	for _, move := range sortedMoves(policy) {
		lastMove = move
		cumulative += policy[move]
		if sampled < cumulative {
			return move
		}
	}
	return lastMove // Rounding
}
