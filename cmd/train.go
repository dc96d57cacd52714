package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"checkers/searcher"
	"checkers/store"
	"checkers/training"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	trainIterations int
	trainModel      string

	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "Train the linear evaluator by guided self-play",
		RunE:  runTrain,
	}
)

func init() {
	trainCmd.Flags().IntVar(&trainIterations, "iterations", 0, "self-play games to train on, overrides training.iterations")
	trainCmd.Flags().StringVar(&trainModel, "model", "model.json", "model weights, loaded when present and saved after training")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	iterations := cfg.Training.Iterations
	if trainIterations > 0 {
		iterations = trainIterations
	}

	env, closeEnv, err := newEnvironment()
	if err != nil {
		return err
	}
	defer closeEnv()

	model, err := loadModel(trainModel)
	if err != nil {
		return err
	}
	registry, collector := startMetrics(ctx)
	tree, err := searcher.NewTree(env, searcher.NewGuided(model), treeOptions(collector)...)
	if err != nil {
		return err
	}

	options := []training.TrainerOption{
		training.WithResetTree(cfg.Training.ResetTree),
		training.WithTemperature(cfg.Training.Temperature),
		training.WithRegistry(registry),
	}
	var sink *store.BatchWriter
	if cfg.Training.OutDir != "" {
		sink, err = store.NewBatchWriter(cfg.Training.OutDir, cfg.Training.FlushGames)
		if err != nil {
			return err
		}
		options = append(options, training.WithSink(sink))
	}

	log.Info().Msgf("training for %d iterations with %d simulations per move", iterations, cfg.Search.Simulations)
	reports, runErr := training.NewTrainer(tree, model, options...).Run(ctx, iterations)
	if errors.Is(runErr, context.Canceled) {
		log.Warn().Msgf("interrupted after %d iterations", len(reports))
		runErr = nil
	}

	if sink != nil {
		if err := sink.Close(); err != nil {
			return err
		}
		log.Info().Msgf("wrote %d trajectory files to %s", len(sink.Files()), cfg.Training.OutDir)
	}
	if err := model.Save(trainModel); err != nil {
		return err
	}
	log.Info().Msgf("saved model to %s", trainModel)
	return runErr
}
