package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"

	"checkers/agent"
	"checkers/experiments"
	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

var (
	arenaBlack string
	arenaWhite string
	arenaGames int
	arenaModel string

	// Distinct seeds for the agents of every game
	arenaSeeds atomic.Uint64

	arenaCmd = &cobra.Command{
		Use:   "arena",
		Short: "Play two strategies against each other and record the games as CSV",
		RunE:  runArena,
	}
)

func init() {
	arenaCmd.Flags().StringVar(&arenaBlack, "black", "pure", "strategy of the black agent (random, pure, guided)")
	arenaCmd.Flags().StringVar(&arenaWhite, "white", "random", "strategy of the white agent (random, pure, guided)")
	arenaCmd.Flags().IntVar(&arenaGames, "games", 0, "games to play, overrides arena.games")
	arenaCmd.Flags().StringVar(&arenaModel, "model", "model.json", "model weights for guided agents")
}

func runArena(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	games := cfg.Arena.Games
	if arenaGames > 0 {
		games = arenaGames
	}

	configs := make([]metrics.AgentConfig, 0, 2)
	for i, strategy := range []string{arenaBlack, arenaWhite} {
		kind, err := searcher.ParseKind(strategy)
		if err != nil {
			return err
		}
		configs = append(configs, metrics.AgentConfig{
			ID:           i + 1,
			Strategy:     kind.String(),
			Simulations:  cfg.Search.Simulations,
			RolloutDepth: cfg.Search.RolloutDepth,
			Exploration:  cfg.Search.Exploration,
		})
	}

	experiment := experiments.Experiment{
		Name:     "arena",
		OutDir:   cfg.Arena.OutDir,
		Configs:  configs,
		MatchUps: []experiments.MatchUp{{Black: configs[0], White: configs[1]}},
		Games:    games,
		Workers:  cfg.Arena.Workers,
		NewAgent: newArenaAgent,
	}
	if cfg.Environment.Address != "" {
		// The environment server holds a single game
		if experiment.Workers > 1 {
			log.Warn().Msgf("playing one game at a time on the environment at %s", cfg.Environment.Address)
			experiment.Workers = 1
		}
		experiment.NewEnvironment = newEnvironment
	}
	result, err := experiment.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Warn().Msgf("interrupted after %d games; records in %s", result.Games, result.Dir)
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Msgf("black (%s) won %d, white (%s) won %d, %d draws of %d games; records in %s",
		configs[0].Strategy, result.Wins[configs[0].ID], configs[1].Strategy, result.Wins[configs[1].ID],
		result.Draws, result.Games, result.Dir)
	return nil
}

// newArenaAgent builds an agent with its own tree and environment.
func newArenaAgent(config metrics.AgentConfig) (agent.Agent, error) {
	var rng *rand.Rand
	if cfg.Search.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Search.Seed + arenaSeeds.Add(1)))
	}
	if config.Strategy == searcher.Random.String() {
		return agent.NewRandomAgent(config.ID, rng), nil
	}

	strategy, err := newStrategy(config.Strategy, arenaModel)
	if err != nil {
		return nil, err
	}
	options := append(treeOptions(metrics.NewCollector()),
		searcher.WithSimulations(config.Simulations),
		searcher.WithRolloutDepth(config.RolloutDepth),
		searcher.WithExploration(config.Exploration),
		searcher.WithRand(rng),
	)
	tree, err := searcher.NewTree(game.NewLocalEnv(), strategy, options...)
	if err != nil {
		return nil, err
	}
	return agent.NewSearchAgent(config.ID, tree), nil
}
