package cmd

import (
	"fmt"
	"os"
	"time"

	"checkers/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "checkers",
		Short: "Monte Carlo Tree Search agents for checkers",
		Long: `checkers plays, trains and evaluates MCTS agents for checkers:
UCT with random rollouts, evaluator-guided UCT and self-play training.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			cfg = loaded
			return setupLogging(cfg.Log)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the config")

	rootCmd.AddCommand(trainCmd, arenaCmd, serveEnvCmd, playCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(c config.LogConfig) error {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	return nil
}
