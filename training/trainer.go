package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkers/agent"
	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sink receives finished trajectories, e.g. for offline storage.
type Sink interface {
	Write(gameID uuid.UUID, trajectory Trajectory) error
}

type Report struct {
	Iteration int
	GameID    uuid.UUID
	Length    int
	Score     float64
	Outcome   float64
	Loss      float64
	Duration  time.Duration
}

type TrainerOption func(t *Trainer)

// Trainer runs the self-play loop: play a game with the tree, build the
// trajectory, take one optimizer step.
type Trainer struct {
	tree      *searcher.Tree
	model     Trainable
	sink      Sink
	registry  *metrics.Registry
	resetTree bool
	// Zero plays the most visited move, otherwise moves are sampled
	temperature float64
	iteration   int
}

func WithSink(sink Sink) TrainerOption {
	return func(t *Trainer) {
		t.sink = sink
	}
}

// WithResetTree discards the search tree after every game. By default the
// tree and its statistics persist across games.
func WithResetTree(reset bool) TrainerOption {
	return func(t *Trainer) {
		t.resetTree = reset
	}
}

// WithTemperature samples self-play moves from the visit distribution
// sharpened by temperature instead of always playing the most visited move.
func WithTemperature(temperature float64) TrainerOption {
	return func(t *Trainer) {
		t.temperature = temperature
	}
}

func WithRegistry(registry *metrics.Registry) TrainerOption {
	return func(t *Trainer) {
		t.registry = registry
	}
}

func NewTrainer(tree *searcher.Tree, model Trainable, options ...TrainerOption) *Trainer {
	t := &Trainer{tree: tree, model: model}
	for _, option := range options {
		option(t)
	}
	return t
}

// Iterate plays one self-play game from the tree's root and trains on it.
func (t *Trainer) Iterate() (Report, error) {
	start := time.Now()
	gameID := uuid.New()

	terminal, err := t.selfPlay()
	if err != nil {
		return Report{}, fmt.Errorf("self-play: %w", err)
	}
	trajectory, err := BuildSamples(t.tree, terminal)
	if err != nil {
		return Report{}, fmt.Errorf("build samples: %w", err)
	}
	loss, err := t.model.TrainStep(trajectory.Samples)
	if err != nil {
		return Report{}, fmt.Errorf("train step: %w", err)
	}
	if t.sink != nil {
		if err := t.sink.Write(gameID, trajectory); err != nil {
			return Report{}, fmt.Errorf("write trajectory: %w", err)
		}
	}
	if t.resetTree {
		if err := t.tree.Reset(nil); err != nil {
			return Report{}, err
		}
	}
	if t.registry != nil {
		t.registry.ObserveTraining(loss)
	}

	t.iteration++
	report := Report{
		Iteration: t.iteration,
		GameID:    gameID,
		Length:    len(trajectory.Samples),
		Score:     trajectory.Score,
		Outcome:   trajectory.Outcome,
		Loss:      loss,
		Duration:  time.Since(start),
	}
	log.Info().Msgf("iteration %d: %d positions, score %+.0f, outcome %+.0f, loss %.4f (%s)",
		report.Iteration, report.Length, report.Score, report.Outcome, report.Loss, report.Duration.Round(time.Millisecond))
	return report, nil
}

// selfPlay plays a game from the root and returns the node where it ended.
func (t *Trainer) selfPlay() (searcher.NodeID, error) {
	if t.temperature <= 0 {
		return t.tree.Simulate(t.tree.Root())
	}

	player := agent.NewTrainingAgent(0, t.tree, t.temperature, nil)
	current := t.tree.Root()
	for !t.tree.Node(current).IsTerminal() {
		move, _, err := player.FindMove(t.tree.Node(current).Position(), nil)
		if errors.Is(err, agent.ErrNoMoves) {
			break
		}
		if err != nil {
			return 0, err
		}
		child, ok := t.tree.Find(current, []game.Move{move})
		if !ok {
			return 0, fmt.Errorf("played move %s is not in the tree", move)
		}
		current = child
	}
	return current, nil
}

// Run iterates until the count is reached or ctx is done.
func (t *Trainer) Run(ctx context.Context, iterations int) ([]Report, error) {
	reports := make([]Report, 0, iterations)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := t.Iterate()
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
