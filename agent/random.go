package agent

import (
	"fmt"
	"time"

	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"golang.org/x/exp/rand"
)

type randomAgent struct {
	id  int
	rng *rand.Rand
}

// NewRandomAgent returns a baseline agent that plays uniformly random legal
// moves without searching.
func NewRandomAgent(id int, rng *rand.Rand) Agent {
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &randomAgent{id: id, rng: rng}
}

func (a *randomAgent) FindMove(position game.Position, _ []game.Move) (game.Move, metrics.SearchMetric, error) {
	legal := position.LegalMoves()
	if len(legal) == 0 {
		return game.Move{}, metrics.SearchMetric{}, fmt.Errorf("find move: %w", ErrNoMoves)
	}
	return legal[a.rng.Intn(len(legal))], metrics.SearchMetric{Strategy: searcher.Random.String()}, nil
}

func (a *randomAgent) Config() metrics.AgentConfig {
	return metrics.AgentConfig{ID: a.id, Strategy: searcher.Random.String()}
}
