package agent

import (
	"errors"
	"fmt"

	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"golang.org/x/exp/slices"
)

var ErrNoMoves = errors.New("no legal moves")

type Agent interface {
	// FindMove returns a move for position and the metrics of the search
	// that chose it. history holds the moves played since the agent's last
	// own move, which is empty when it is still the one to move.
	FindMove(position game.Position, history []game.Move) (game.Move, metrics.SearchMetric, error)
	Config() metrics.AgentConfig
}

// treeAgent keeps a search tree across calls and follows the game through
// it, resetting only when the position cannot be reached.
type treeAgent struct {
	id      int
	tree    *searcher.Tree
	current searcher.NodeID
}

func newTreeAgent(id int, tree *searcher.Tree) treeAgent {
	return treeAgent{id: id, tree: tree, current: tree.Root()}
}

func (a *treeAgent) Config() metrics.AgentConfig {
	return metrics.AgentConfig{
		ID:           a.id,
		Strategy:     a.tree.Strategy().Kind().String(),
		Simulations:  a.tree.Simulations(),
		RolloutDepth: a.tree.RolloutDepth(),
		Exploration:  a.tree.Exploration(),
	}
}

// locate moves the agent to the node for position.
func (a *treeAgent) locate(position game.Position, history []game.Move) error {
	if id, ok := a.follow(history); ok && a.tree.Node(id).Position().Equal(position) {
		a.current = id
		return nil
	}
	if err := a.tree.Reset(&position); err != nil {
		return err
	}
	a.current = a.tree.Root()
	return nil
}

func (a *treeAgent) follow(history []game.Move) (searcher.NodeID, bool) {
	current := a.current
	for _, move := range history {
		if child, ok := a.tree.Find(current, []game.Move{move}); ok {
			current = child
			continue
		}
		legal, err := a.tree.LegalMoves(current)
		if err != nil || len(legal) == 0 {
			return 0, false
		}
		child, err := a.tree.Act(current, move, 1/float64(len(legal)))
		if err != nil {
			return 0, false
		}
		current = child
	}
	return current, true
}

func (a *treeAgent) search(position game.Position, history []game.Move) (searcher.Decision, error) {
	if err := a.locate(position, history); err != nil {
		return searcher.Decision{}, err
	}
	decision, ok, err := a.tree.PickMove(a.current)
	if err != nil {
		return searcher.Decision{}, err
	}
	if !ok {
		return searcher.Decision{}, fmt.Errorf("find move: %w", ErrNoMoves)
	}
	return decision, nil
}

// sortedMoves orders a policy's moves by index so iteration is reproducible.
func sortedMoves(policy map[game.Move]float64) []game.Move {
	moves := make([]game.Move, 0, len(policy))
	for move := range policy {
		moves = append(moves, move)
	}
	slices.SortFunc(moves, func(a, b game.Move) int { return a.Index() - b.Index() })
	return moves
}
