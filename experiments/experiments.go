package experiments

import (
	"context"
	"errors"
	"fmt"

	"checkers/agent"
	"checkers/engine"
	"checkers/metrics"
	"checkers/searcher"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const NumGames = 30 // Per match up

// MatchUp pits two agent configs against each other with fixed colors.
type MatchUp struct {
	Black metrics.AgentConfig
	White metrics.AgentConfig
}

// AgentFactory builds a fresh agent for a config. Each game gets new agents
// so no search tree carries over between games. It may be called from
// several goroutines at once.
type AgentFactory func(config metrics.AgentConfig) (agent.Agent, error)

// EnvironmentFactory builds the environment a game is refereed on, with a
// function releasing it once the game is over.
type EnvironmentFactory func() (searcher.Environment, func() error, error)

type Experiment struct {
	Name     string
	OutDir   string // Records go to a timestamped directory below
	Configs  []metrics.AgentConfig
	MatchUps []MatchUp
	Games    int // Per match up
	Workers  int // Games played concurrently
	NewAgent AgentFactory
	// In-process environment when nil
	NewEnvironment EnvironmentFactory
}

// Result tallies the games of an experiment by agent ID.
type Result struct {
	Games int
	Wins  map[int]int
	Draws int
	Dir   string
}

type playedGame struct {
	done        bool
	winner      string
	gameMetric  metrics.GameMetric
	moveMetrics []metrics.MoveMetric
}

// Run plays every match up, then writes agent configs, game records and
// move records as CSV.
func (e Experiment) Run(ctx context.Context) (Result, error) {
	if e.NewAgent == nil {
		return Result{}, errors.New("experiment requires an agent factory")
	}
	games := e.Games
	if games <= 0 {
		games = NumGames
	}
	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}

	result := Result{Wins: map[int]int{}}
	gameRecords := []metrics.GameRecord{}
	moveRecords := []metrics.MoveRecord{}

	log.Info().Msgf("starting %s experiment...", e.Name)

	var runErr error
	for mi, matchUp := range e.MatchUps {
		log.Info().Msgf("starting matchup %d of %d between black=%+v and white=%+v...", mi+1, len(e.MatchUps), matchUp.Black, matchUp.White)

		played := make([]playedGame, games)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := 0; i < games; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				winner, gameMetric, moveMetrics, err := e.runGame(gctx, matchUp)
				if err != nil {
					return fmt.Errorf("matchup %d game %d: %w", mi+1, i+1, err)
				}
				played[i] = playedGame{done: true, winner: winner, gameMetric: gameMetric, moveMetrics: moveMetrics}
				log.Info().Msgf("completed matchup %d of %d game %d with winner: %q", mi+1, len(e.MatchUps), i+1, winner)
				return nil
			})
		}
		runErr = g.Wait()
		if runErr != nil && !stopped(runErr) {
			return Result{}, runErr
		}

		for _, p := range played {
			if !p.done {
				continue
			}
			result.Games++
			switch p.winner {
			case "black":
				result.Wins[matchUp.Black.ID]++
			case "white":
				result.Wins[matchUp.White.ID]++
			default:
				result.Draws++
			}
			gameRecords = append(gameRecords, metrics.GameRecord{
				ID:         result.Games,
				Black:      matchUp.Black.ID,
				White:      matchUp.White.ID,
				GameMetric: p.gameMetric,
			})
			for _, mm := range p.moveMetrics {
				moveRecords = append(moveRecords, metrics.MoveRecord{
					Game:       result.Games,
					MoveMetric: mm,
				})
			}
		}
		if runErr != nil {
			log.Warn().Err(runErr).Msgf("stopped %s experiment, keeping %d finished games", e.Name, result.Games)
			break
		}
		log.Info().Msgf("completed matchup %d of %d", mi+1, len(e.MatchUps))
	}

	if runErr == nil {
		log.Info().Msgf("completed %s experiment", e.Name)
	}

	writer, err := metrics.NewWriter(e.OutDir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create experiment writer: %w", err)
	}
	result.Dir = writer.Dir()

	if err := writer.WriteAgentConfigs(e.Configs); err != nil {
		return Result{}, fmt.Errorf("failed to store agent configs: %w", err)
	}
	if err := writer.WriteGameRecords(gameRecords); err != nil {
		return Result{}, fmt.Errorf("failed to write game records: %w", err)
	}
	if err := writer.WriteMoveRecords(moveRecords); err != nil {
		return Result{}, fmt.Errorf("failed to write move records: %w", err)
	}
	log.Info().Msgf("stored %d games in %s", len(gameRecords), writer.Dir())

	return result, runErr
}

// stopped reports whether err comes from the experiment's context rather
// than a failed game.
func stopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e Experiment) runGame(ctx context.Context, matchUp MatchUp) (string, metrics.GameMetric, []metrics.MoveMetric, error) {
	black, err := e.NewAgent(matchUp.Black)
	if err != nil {
		return "", metrics.GameMetric{}, nil, err
	}
	white, err := e.NewAgent(matchUp.White)
	if err != nil {
		return "", metrics.GameMetric{}, nil, err
	}

	var options []engine.Option
	if e.NewEnvironment != nil {
		env, release, err := e.NewEnvironment()
		if err != nil {
			return "", metrics.GameMetric{}, nil, fmt.Errorf("environment: %w", err)
		}
		defer func() {
			if err := release(); err != nil {
				log.Warn().Err(err).Msg("failed to release environment")
			}
		}()
		options = append(options, engine.WithEnvironment(env))
	}

	local, err := engine.NewLocal(black, white, options...)
	if err != nil {
		return "", metrics.GameMetric{}, nil, err
	}
	return local.Run(ctx)
}
