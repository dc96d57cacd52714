package cmd

import (
	"os"
	"os/signal"

	"checkers/searcher"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	playStrategy string
	playModel    string

	playCmd = &cobra.Command{
		Use:   "play",
		Short: "Play one self-play game and log every move",
		RunE:  runPlay,
	}
)

func init() {
	playCmd.Flags().StringVar(&playStrategy, "strategy", "", "search strategy (random, pure, guided), overrides search.strategy")
	playCmd.Flags().StringVar(&playModel, "model", "model.json", "model weights for the guided strategy")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	name := cfg.Search.Strategy
	if playStrategy != "" {
		name = playStrategy
	}
	strategy, err := newStrategy(name, playModel)
	if err != nil {
		return err
	}
	env, closeEnv, err := newEnvironment()
	if err != nil {
		return err
	}
	defer closeEnv()

	_, collector := startMetrics(ctx)
	tree, err := searcher.NewTree(env, strategy, treeOptions(collector)...)
	if err != nil {
		return err
	}

	current := tree.Root()
	for step := 1; ctx.Err() == nil; step++ {
		decision, ok, err := tree.PickMove(current)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		mover := tree.Node(decision.Child).Mover()
		log.Info().Msgf("move %d: %s plays %s (%d visits, %d full and %d truncated playouts)",
			step, mover, decision.Move, decision.Visits, decision.Metric.FullPlayouts, decision.Metric.TruncatedPlayouts)
		current = decision.Child
	}

	final := tree.Node(current)
	log.Info().Msgf("final position:\n%s", final.Position())
	termination := final.Position().Termination()
	switch {
	case !termination.Done:
		log.Info().Msg("game stopped without a result")
	case termination.Draw:
		log.Info().Msg("game drawn")
	default:
		log.Info().Msgf("%s wins with %d pieces, reward %+.0f", termination.Winner, termination.Pieces, final.Outcome())
	}
	return ctx.Err()
}
