package agent

import (
	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"
)

type searchAgent struct {
	treeAgent
}

// NewSearchAgent returns an agent that plays the most visited move of each
// search, reusing its tree between moves.
func NewSearchAgent(id int, tree *searcher.Tree) Agent {
	return &searchAgent{treeAgent: newTreeAgent(id, tree)}
}

func (a *searchAgent) FindMove(position game.Position, history []game.Move) (game.Move, metrics.SearchMetric, error) {
	decision, err := a.search(position, history)
	if err != nil {
		return game.Move{}, metrics.SearchMetric{}, err
	}
	a.current = decision.Child
	return decision.Move, decision.Metric, nil
}
