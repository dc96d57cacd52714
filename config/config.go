// Package config loads the checkers configuration from defaults, an
// optional YAML file and CHECKERS_* environment variables, in increasing
// priority.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Search      SearchConfig      `yaml:"search"`
	Training    TrainingConfig    `yaml:"training"`
	Environment EnvironmentConfig `yaml:"environment"`
	Arena       ArenaConfig       `yaml:"arena"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

type SearchConfig struct {
	Strategy     string  `yaml:"strategy" validate:"oneof=random pure uct guided"`
	Simulations  int     `yaml:"simulations" validate:"gt=0"`
	RolloutDepth int     `yaml:"rollout_depth" validate:"gt=0"`
	Exploration  float64 `yaml:"exploration" validate:"gte=0"`
	Seed         uint64  `yaml:"seed"` // 0 seeds from the clock
}

type TrainingConfig struct {
	Iterations   int     `yaml:"iterations" validate:"gte=0"`
	LearningRate float64 `yaml:"learning_rate" validate:"gt=0"`
	ResetTree    bool    `yaml:"reset_tree"`
	// Self-play move sampling, 0 plays the most visited move
	Temperature float64 `yaml:"temperature" validate:"gte=0"`
	OutDir     string `yaml:"out_dir"` // Trajectory parquet files, disabled when empty
	FlushGames int    `yaml:"flush_games" validate:"gt=0"`
}

type EnvironmentConfig struct {
	Address string        `yaml:"address"` // In-process when empty
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type ArenaConfig struct {
	Games   int    `yaml:"games" validate:"gt=0"`
	Workers int    `yaml:"workers" validate:"gt=0"` // Games played concurrently
	OutDir  string `yaml:"out_dir"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

func Default() Config {
	return Config{
		Search: SearchConfig{
			Strategy:     "pure",
			Simulations:  30,
			RolloutDepth: 100,
			Exploration:  math.Sqrt2,
		},
		Training: TrainingConfig{
			Iterations:   100,
			LearningRate: 3e-4,
			FlushGames:   10,
		},
		Environment: EnvironmentConfig{
			Timeout: 5 * time.Second,
		},
		Arena: ArenaConfig{
			Games:   30,
			Workers: 1,
			OutDir:  "arena",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load merges defaults, the file at path (skipped when empty or missing)
// and the environment, then validates the result.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		if err := loadFile(path, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&config); err != nil {
		return config, fmt.Errorf("load config env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, config)
}

func loadEnv(config *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = i
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("CHECKERS_SEARCH_STRATEGY", &config.Search.Strategy)
	integer("CHECKERS_SEARCH_SIMULATIONS", &config.Search.Simulations)
	integer("CHECKERS_SEARCH_ROLLOUT_DEPTH", &config.Search.RolloutDepth)
	float("CHECKERS_SEARCH_EXPLORATION", &config.Search.Exploration)
	if v := os.Getenv("CHECKERS_SEARCH_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHECKERS_SEARCH_SEED: %w", err))
		} else {
			config.Search.Seed = seed
		}
	}

	integer("CHECKERS_TRAINING_ITERATIONS", &config.Training.Iterations)
	float("CHECKERS_TRAINING_LEARNING_RATE", &config.Training.LearningRate)
	boolean("CHECKERS_TRAINING_RESET_TREE", &config.Training.ResetTree)
	float("CHECKERS_TRAINING_TEMPERATURE", &config.Training.Temperature)
	str("CHECKERS_TRAINING_OUT_DIR", &config.Training.OutDir)
	integer("CHECKERS_TRAINING_FLUSH_GAMES", &config.Training.FlushGames)

	str("CHECKERS_ENVIRONMENT_ADDRESS", &config.Environment.Address)
	if v := os.Getenv("CHECKERS_ENVIRONMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHECKERS_ENVIRONMENT_TIMEOUT: %w", err))
		} else {
			config.Environment.Timeout = d
		}
	}

	integer("CHECKERS_ARENA_GAMES", &config.Arena.Games)
	integer("CHECKERS_ARENA_WORKERS", &config.Arena.Workers)
	str("CHECKERS_ARENA_OUT_DIR", &config.Arena.OutDir)

	boolean("CHECKERS_METRICS_ENABLED", &config.Metrics.Enabled)
	str("CHECKERS_METRICS_ADDRESS", &config.Metrics.Address)

	str("CHECKERS_LOG_LEVEL", &config.Log.Level)
	boolean("CHECKERS_LOG_PRETTY", &config.Log.Pretty)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	return validate.Struct(c)
}
