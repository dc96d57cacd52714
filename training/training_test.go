package training

import (
	"context"
	"math"
	"testing"

	"checkers/game"
	"checkers/searcher"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// lineEnv plays a fixed line of moves. Turn.Count carries the state id.
type lineEnv struct {
	current game.Position
	players []game.Color
	reward  float64 // Black-positive reward of the last state
}

func mv(i int) game.Move { return game.Move{ToY: uint8(i)} }

func (e *lineEnv) position(id int) game.Position {
	return game.Position{Turn: game.Turn{Color: e.players[id], Count: id, ChainPiece: -1}}
}

func (e *lineEnv) Reset(position *game.Position) (game.Position, error) {
	if position != nil {
		e.current = *position
	} else {
		e.current = e.position(0)
	}
	return e.current, nil
}

func (e *lineEnv) Step(move game.Move) (game.Position, float64, bool, error) {
	next := e.current.Turn.Count + 1
	if move != mv(e.current.Turn.Count) || next >= len(e.players) {
		return game.Position{}, 0, false, game.ErrIllegalMove
	}
	e.current = e.position(next)
	if next == len(e.players)-1 {
		return e.current, e.reward, true, nil
	}
	return e.current, 0, false, nil
}

func (e *lineEnv) LegalMoves(position game.Position) ([]game.Move, error) {
	if position.Turn.Count >= len(e.players)-1 {
		return nil, nil
	}
	return []game.Move{mv(position.Turn.Count)}, nil
}

// stubEvaluator returns fixed predictions keyed by state id.
type stubEvaluator struct {
	values  map[int]float64
	priors  map[int]map[game.Move]float64
	batches [][]Sample
}

func (s *stubEvaluator) Evaluate(position game.Position, legal []game.Move) (searcher.Prediction, error) {
	return searcher.Prediction{
		Priors: s.priors[position.Turn.Count],
		Value:  s.values[position.Turn.Count],
	}, nil
}

func (s *stubEvaluator) TrainStep(batch []Sample) (float64, error) {
	s.batches = append(s.batches, batch)
	return JointLoss(s, batch)
}

type memorySink struct {
	games map[uuid.UUID]Trajectory
}

func (m *memorySink) Write(gameID uuid.UUID, trajectory Trajectory) error {
	m.games[gameID] = trajectory
	return nil
}

// threePositionGame builds root -> n1 -> n2 where black moves last and wins.
func threePositionGame(t *testing.T) (*searcher.Tree, searcher.NodeID) {
	t.Helper()
	env := &lineEnv{players: []game.Color{game.White, game.Black, game.White}, reward: 2}
	tree, err := searcher.NewTree(env, searcher.NewPure(), searcher.WithSeed(1))
	require.NoError(t, err)
	n1, err := tree.Act(tree.Root(), mv(0), 0.6)
	require.NoError(t, err)
	n2, err := tree.Act(n1, mv(1), 0.9)
	require.NoError(t, err)
	return tree, n2
}

func TestBuildSamples(t *testing.T) {
	t.Run("last mover wins", func(t *testing.T) {
		tree, terminal := threePositionGame(t)

		trajectory, err := BuildSamples(tree, terminal)

		require.NoError(t, err)
		require.Equal(t, 1.0, trajectory.Score, "Black moved last and won")
		require.Equal(t, game.Black, trajectory.LastMover)
		require.Equal(t, 2.0, trajectory.Outcome)
		require.Len(t, trajectory.Samples, 3)

		end, mid, root := trajectory.Samples[0], trajectory.Samples[1], trajectory.Samples[2]
		require.Nil(t, end.Move, "Terminal position has no move")
		require.Equal(t, -1.0, end.Value, "White to move lost")
		require.Equal(t, mv(1), *mid.Move)
		require.Equal(t, 0.9, mid.Weight)
		require.Equal(t, 1.0, mid.Value)
		require.Equal(t, mv(0), *root.Move)
		require.Equal(t, 0.6, root.Weight)
		require.Equal(t, -1.0, root.Value)
	})

	t.Run("draw scores as a loss for the last mover", func(t *testing.T) {
		env := &lineEnv{players: []game.Color{game.White, game.Black}, reward: 0}
		tree, err := searcher.NewTree(env, searcher.NewPure(), searcher.WithSeed(1))
		require.NoError(t, err)
		end, err := tree.Act(tree.Root(), mv(0), 1)
		require.NoError(t, err)

		trajectory, err := BuildSamples(tree, end)

		require.NoError(t, err)
		require.Equal(t, -1.0, trajectory.Score)
	})
}

func TestJointLoss(t *testing.T) {
	tree, terminal := threePositionGame(t)
	trajectory, err := BuildSamples(tree, terminal)
	require.NoError(t, err)
	evaluator := &stubEvaluator{
		values: map[int]float64{0: 0.2, 1: -0.4, 2: 0.1},
		priors: map[int]map[game.Move]float64{
			0: {mv(0): 0.7},
			1: {mv(1): 0.3},
		},
	}

	loss, err := JointLoss(evaluator, trajectory.Samples)

	require.NoError(t, err)
	valueTerm := math.Pow(0.1-(-1), 2) + math.Pow(-0.4-1, 2) + math.Pow(0.2-(-1), 2)
	policyTerm := 0.9*math.Log(0.3+1e-5) + 0.6*math.Log(0.7+1e-5)
	require.InDelta(t, valueTerm-policyTerm, loss, 1e-9, "Should match the hand-computed joint loss")
}

func TestTrainer(t *testing.T) {
	t.Run("trains on every self-play game", func(t *testing.T) {
		env := &lineEnv{players: []game.Color{game.White, game.Black, game.White, game.Black}, reward: -1}
		tree, err := searcher.NewTree(env, searcher.NewPure(), searcher.WithSeed(1), searcher.WithSimulations(3))
		require.NoError(t, err)
		model := &stubEvaluator{}
		sink := &memorySink{games: map[uuid.UUID]Trajectory{}}
		trainer := NewTrainer(tree, model, WithSink(sink))

		reports, err := trainer.Run(context.Background(), 2)

		require.NoError(t, err)
		require.Len(t, reports, 2)
		require.Len(t, model.batches, 2, "Should take one step per game")
		require.Len(t, sink.games, 2)
		require.Equal(t, 4, reports[0].Length)
		require.Equal(t, 2, reports[1].Iteration)
		require.Greater(t, tree.Len(), 1, "Tree should persist across games")
	})

	t.Run("optionally resets the tree", func(t *testing.T) {
		env := &lineEnv{players: []game.Color{game.White, game.Black}, reward: 1}
		tree, err := searcher.NewTree(env, searcher.NewPure(), searcher.WithSeed(1), searcher.WithSimulations(2))
		require.NoError(t, err)
		trainer := NewTrainer(tree, &stubEvaluator{}, WithResetTree(true))

		_, err = trainer.Iterate()

		require.NoError(t, err)
		require.Equal(t, 1, tree.Len())
	})

	t.Run("samples self-play moves with a temperature", func(t *testing.T) {
		env := &lineEnv{players: []game.Color{game.White, game.Black, game.White, game.Black}, reward: -1}
		tree, err := searcher.NewTree(env, searcher.NewPure(), searcher.WithSeed(1), searcher.WithSimulations(3))
		require.NoError(t, err)
		model := &stubEvaluator{}
		trainer := NewTrainer(tree, model, WithTemperature(0.5))

		report, err := trainer.Iterate()

		require.NoError(t, err)
		require.Equal(t, 4, report.Length, "Should play to the end of the game")
		require.Equal(t, -1.0, report.Outcome)
		require.Len(t, model.batches, 1)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		env := &lineEnv{players: []game.Color{game.White, game.Black}, reward: 1}
		tree, err := searcher.NewTree(env, searcher.NewPure(), searcher.WithSeed(1))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		reports, err := NewTrainer(tree, &stubEvaluator{}).Run(ctx, 3)

		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, reports)
	})
}
