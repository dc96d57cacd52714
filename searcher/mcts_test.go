package searcher

import (
	"math"
	"testing"

	"checkers/game"
	"checkers/metrics"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

/*
Tests the sequential search loop on synthetic game graphs:
- selection: terminal node -> itself; fully expanded node -> best UCT child
- expansion: one new child per simulation until fully expanded
- rollout: terminal -> full playout; depth cap -> truncated with leaf value
- backup: every node on the path to root gets exactly one visit
*/

func TestPickMove(t *testing.T) {
	t.Run("converges to the winning move of a one-move game", func(t *testing.T) {
		tree := newTestTree(t, oneMoveGame(), NewPure(), WithSimulations(50))

		decision, ok, err := tree.PickMove(tree.Root())

		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, mv(0), decision.Move, "Should pick the move that wins for white")
		other, _ := tree.Find(tree.Root(), []game.Move{mv(1)})
		require.Greater(t, decision.Visits, tree.Node(other).Visits())
		require.Equal(t, 50, tree.Node(tree.Root()).Visits(), "Root should be visited once per simulation")
	})

	t.Run("guided search converges to the winning move", func(t *testing.T) {
		tree := newTestTree(t, oneMoveGame(), NewGuided(&mockEvaluator{value: 0.3}), WithSimulations(50))

		decision, ok, err := tree.PickMove(tree.Root())

		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, mv(0), decision.Move)
		other, _ := tree.Find(tree.Root(), []game.Move{mv(1)})
		require.Greater(t, decision.Visits, tree.Node(other).Visits())
	})

	t.Run("guided search backs up terminal rewards on the evaluator scale", func(t *testing.T) {
		env := oneMoveGame()
		env.rewards = map[int]float64{1: -5, 2: 5}
		tree := newTestTree(t, env, NewGuided(&mockEvaluator{}), WithSimulations(20))

		_, _, err := tree.PickMove(tree.Root())
		require.NoError(t, err)

		for id := 0; id < tree.Len(); id++ {
			require.LessOrEqual(t, math.Abs(tree.Node(NodeID(id)).MeanValue()), 1.0)
		}
	})

	t.Run("injected random source makes search reproducible", func(t *testing.T) {
		search := func() []int {
			tree := newTestTree(t, twoMoveGame(), NewPure(), WithSimulations(30), WithRand(rand.New(rand.NewSource(11))))
			_, _, err := tree.PickMove(tree.Root())
			require.NoError(t, err)
			visits := make([]int, tree.Len())
			for id := range visits {
				visits[id] = tree.Node(NodeID(id)).Visits()
			}
			return visits
		}

		require.Equal(t, search(), search())
	})

	t.Run("accounts for the opponent's best reply", func(t *testing.T) {
		tree := newTestTree(t, twoMoveGame(), NewPure(), WithSimulations(200))

		decision, ok, err := tree.PickMove(tree.Root())

		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, mv(0), decision.Move, "Should avoid the move that lets black win")
	})

	t.Run("empty action space yields no move and a terminal node", func(t *testing.T) {
		env := &mockEnv{edges: map[int][]edge{}, players: map[int]game.Color{}, rewards: map[int]float64{}}
		tree := newTestTree(t, env, NewPure())

		_, ok, err := tree.PickMove(tree.Root())

		require.NoError(t, err)
		require.False(t, ok, "Should not return a move")
		root := tree.Node(tree.Root())
		require.True(t, root.IsTerminal(), "Node should become terminal")
		require.Equal(t, 0.0, root.Reward(), "Root keeps a zero reward")
		require.Equal(t, 0, root.Visits())
	})

	t.Run("random strategy does not search", func(t *testing.T) {
		tree := newTestTree(t, oneMoveGame(), NewRandom())

		decision, ok, err := tree.PickMove(tree.Root())

		require.NoError(t, err)
		require.True(t, ok)
		require.Contains(t, []game.Move{mv(0), mv(1)}, decision.Move)
		require.Equal(t, 0.5, decision.Prior, "Prior should be uniform over legal moves")
		require.Equal(t, 0, tree.Node(tree.Root()).Visits(), "Should not run simulations")
	})

	t.Run("root is visited at least as often as any descendant", func(t *testing.T) {
		tree := newTestTree(t, twoMoveGame(), NewPure(), WithSimulations(40))

		_, _, err := tree.PickMove(tree.Root())
		require.NoError(t, err)

		rootVisits := tree.Node(tree.Root()).Visits()
		for id := 0; id < tree.Len(); id++ {
			require.LessOrEqual(t, tree.Node(NodeID(id)).Visits(), rootVisits)
		}
	})

	t.Run("environment failure aborts without touching statistics", func(t *testing.T) {
		env := oneMoveGame()
		env.failOn = map[game.Move]bool{mv(0): true, mv(1): true}
		tree := newTestTree(t, env, NewPure())

		_, _, err := tree.PickMove(tree.Root())

		require.Error(t, err)
		require.Equal(t, 0, tree.Node(tree.Root()).Visits())
	})

	t.Run("reports search metrics", func(t *testing.T) {
		collector := metrics.NewCollector()
		tree := newTestTree(t, oneMoveGame(), NewPure(), WithSimulations(10), WithMetrics(collector))

		decision, _, err := tree.PickMove(tree.Root())

		require.NoError(t, err)
		require.Equal(t, 10, decision.Metric.Completed)
		require.Equal(t, 10, decision.Metric.FullPlayouts, "Every rollout should reach a terminal node")
		require.Equal(t, "pure", decision.Metric.Strategy)
	})
}

func TestTraverse(t *testing.T) {
	t.Run("terminal node returns itself", func(t *testing.T) {
		tree := newTestTree(t, oneMoveGame(), NewPure())
		child, err := tree.Act(tree.Root(), mv(0), 1)
		require.NoError(t, err)
		nodes := tree.Len()

		got, err := tree.traverse(child)

		require.NoError(t, err)
		require.Equal(t, child, got)
		require.Equal(t, nodes, tree.Len(), "Should not expand a terminal node")
	})

	t.Run("expands one child per call until fully expanded", func(t *testing.T) {
		tree := newTestTree(t, oneMoveGame(), NewPure())
		root := tree.Root()

		first, err := tree.traverse(root)
		require.NoError(t, err)
		second, err := tree.traverse(root)
		require.NoError(t, err)

		require.NotEqual(t, first, second)
		require.Len(t, tree.Node(root).Children(), 2)
	})

	t.Run("descends through fully expanded nodes", func(t *testing.T) {
		tree := newTestTree(t, lineGame(4), NewPure())
		root := tree.Root()
		a, err := tree.Act(root, mv(0), 1)
		require.NoError(t, err)

		got, err := tree.traverse(root)

		require.NoError(t, err)
		parent, _ := tree.Node(got).Parent()
		require.Equal(t, a, parent, "Should expand below the only child")
	})
}

func TestRollout(t *testing.T) {
	t.Run("reaches a terminal node", func(t *testing.T) {
		tree := newTestTree(t, lineGame(5), NewPure())

		end, truncated, err := tree.rollout(tree.Root())

		require.NoError(t, err)
		require.False(t, truncated)
		require.True(t, tree.Node(end).IsTerminal())
		value, err := tree.value(end, truncated)
		require.NoError(t, err)
		require.Equal(t, 2.0, value, "Value should be the black-positive terminal reward")
	})

	t.Run("truncates at the depth cap", func(t *testing.T) {
		tree := newTestTree(t, lineGame(10), NewPure(), WithRolloutDepth(3))

		end, truncated, err := tree.rollout(tree.Root())

		require.NoError(t, err)
		require.True(t, truncated)
		require.Len(t, tree.PathToRoot(end), 4, "Should stop after three moves")
		value, err := tree.value(end, truncated)
		require.NoError(t, err)
		require.Equal(t, 0.0, value, "Pure leaf value should be zero")
	})

	t.Run("guided leaf value comes from the evaluator", func(t *testing.T) {
		evaluator := &mockEvaluator{value: 0.5}
		tree := newTestTree(t, lineGame(10), NewGuided(evaluator), WithRolloutDepth(1))

		end, truncated, err := tree.rollout(tree.Root())
		require.NoError(t, err)
		value, err := tree.value(end, truncated)

		require.NoError(t, err)
		require.True(t, truncated)
		require.Equal(t, game.Black, tree.Node(end).Position().Player())
		require.Equal(t, 0.5, value, "Value for black to move should stay positive")
	})

	t.Run("degenerate probabilities end the rollout", func(t *testing.T) {
		collector := metrics.NewCollector()
		collector.Start("guided", 1, 10)
		tree := newTestTree(t, lineGame(10), NewGuided(&mockEvaluator{zero: true}), WithMetrics(collector))

		end, truncated, err := tree.rollout(tree.Root())

		require.NoError(t, err)
		require.True(t, truncated, "Branch should be treated as exhausted")
		require.Equal(t, tree.Root(), end)
		require.Equal(t, 1, collector.Complete().DegeneratePlayouts)
	})
}

func TestBackpropagate(t *testing.T) {
	tree := newTestTree(t, twoMoveGame(), NewPure())
	root := tree.Root()
	a, _ := tree.Act(root, mv(0), 1)
	b, _ := tree.Act(root, mv(1), 1)
	c, _ := tree.Act(a, mv(2), 1)

	require.NoError(t, tree.backpropagate(c, -1))

	for _, id := range []NodeID{c, a, root} {
		require.Equal(t, 1, tree.Node(id).Visits(), "Path nodes should gain exactly one visit")
		require.Equal(t, 1, tree.Node(id).WinsWhite())
	}
	require.Equal(t, 0, tree.Node(b).Visits(), "Off-path nodes should not change")
}

func TestSimulate(t *testing.T) {
	t.Run("plays to the end of the game", func(t *testing.T) {
		tree := newTestTree(t, lineGame(6), NewPure(), WithSimulations(5))

		end, err := tree.Simulate(tree.Root())

		require.NoError(t, err)
		require.True(t, tree.Node(end).IsTerminal())
		require.Len(t, tree.PathToRoot(end), 7)
	})

	t.Run("reset discards the tree", func(t *testing.T) {
		tree := newTestTree(t, lineGame(3), NewPure(), WithSimulations(5))
		id := tree.ID()
		_, err := tree.Simulate(tree.Root())
		require.NoError(t, err)

		require.NoError(t, tree.Reset(nil))

		require.Equal(t, 1, tree.Len())
		require.Nil(t, tree.nodes[:cap(tree.nodes)][1], "Discarded nodes should not be retained")
		require.NotEqual(t, id, tree.ID())
	})
}

func TestPolicy(t *testing.T) {
	tree := newTestTree(t, oneMoveGame(), NewPure(), WithSimulations(20))
	_, _, err := tree.PickMove(tree.Root())
	require.NoError(t, err)

	policy := tree.Policy(tree.Root())

	require.Len(t, policy, 2)
	require.InDelta(t, 1.0, policy[mv(0)]+policy[mv(1)], 1e-9, "Visit shares should sum to one")
	require.Greater(t, policy[mv(0)], policy[mv(1)])
}
