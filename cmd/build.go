package cmd

import (
	"context"
	"errors"
	"os"

	"checkers/envrpc"
	"checkers/evaluator"
	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// newEnvironment connects to the configured environment server, or returns
// an in-process environment when no address is set.
func newEnvironment() (searcher.Environment, func() error, error) {
	if cfg.Environment.Address == "" {
		return game.NewLocalEnv(), func() error { return nil }, nil
	}
	client, err := envrpc.Dial(cfg.Environment.Address, cfg.Environment.Timeout)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msgf("using environment at %s", cfg.Environment.Address)
	return client, client.Close, nil
}

// loadModel loads weights from path when it exists, otherwise starts from a
// fresh model.
func loadModel(path string) (*evaluator.Linear, error) {
	options := []evaluator.Option{evaluator.WithLearningRate(cfg.Training.LearningRate)}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			log.Info().Msgf("loading model from %s", path)
			return evaluator.Load(path, options...)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if cfg.Search.Seed != 0 {
		options = append(options, evaluator.WithInit(cfg.Search.Seed, 0.01))
	}
	return evaluator.NewLinear(options...), nil
}

func newStrategy(name, modelPath string) (searcher.Strategy, error) {
	kind, err := searcher.ParseKind(name)
	if err != nil {
		return nil, err
	}
	if kind != searcher.Guided {
		return searcher.NewStrategy(kind, nil)
	}
	model, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	return searcher.NewStrategy(kind, model)
}

func treeOptions(collector metrics.Collector) []searcher.Option {
	options := []searcher.Option{
		searcher.WithSimulations(cfg.Search.Simulations),
		searcher.WithRolloutDepth(cfg.Search.RolloutDepth),
		searcher.WithExploration(cfg.Search.Exploration),
		searcher.WithMetrics(collector),
	}
	if cfg.Search.Seed != 0 {
		options = append(options, searcher.WithSeed(cfg.Search.Seed))
	}
	return options
}

// startMetrics serves prometheus metrics when enabled. The returned registry
// is nil otherwise, and the collector falls back to an in-memory one.
func startMetrics(ctx context.Context) (*metrics.Registry, metrics.Collector) {
	if !cfg.Metrics.Enabled {
		return nil, metrics.NewCollector()
	}
	reg := prometheus.NewRegistry()
	registry := metrics.NewRegistry(reg)
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Address, reg); err != nil {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return registry, metrics.NewPrometheusCollector(registry)
}
