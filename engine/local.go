package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkers/agent"
	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"github.com/rs/zerolog/log"
)

// Local referees a game between two in-process agents. The environment is
// in-process unless WithEnvironment is given.
type Local struct {
	env      searcher.Environment
	agents   map[game.Color]agent.Agent
	start    *game.Position
	maxMoves int
}

type Option func(e *Local)

// WithStart plays from position instead of the starting position.
func WithStart(position game.Position) Option {
	return func(e *Local) {
		e.start = &position
	}
}

// WithEnvironment referees on env, such as a remote environment client.
func WithEnvironment(env searcher.Environment) Option {
	return func(e *Local) {
		if env != nil {
			e.env = env
		}
	}
}

func WithMaxMoves(maxMoves int) Option {
	return func(e *Local) {
		if maxMoves > 0 {
			e.maxMoves = maxMoves
		}
	}
}

func NewLocal(black, white agent.Agent, options ...Option) (*Local, error) {
	if black == nil || white == nil {
		return nil, errors.New("engine requires two agents")
	}
	e := &Local{
		env:      game.NewLocalEnv(),
		agents:   map[game.Color]agent.Agent{game.Black: black, game.White: white},
		maxMoves: MaxMoves,
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

func (e *Local) Run(ctx context.Context) (string, metrics.GameMetric, []metrics.MoveMetric, error) {
	position, err := e.env.Reset(e.start)
	if err != nil {
		return "", metrics.GameMetric{}, nil, err
	}

	gameMetric := metrics.GameMetric{
		StartingPlayer: position.Player().String(),
		StartTime:      time.Now(),
	}
	log.Info().Msgf("%s is starting", position.Player())

	// Moves each agent has not seen yet
	history := map[game.Color][]game.Move{}
	var moveMetrics []metrics.MoveMetric
	done := position.Termination().Done
	moves := 0
	for !done && moves < e.maxMoves {
		if err := ctx.Err(); err != nil {
			return "", metrics.GameMetric{}, nil, fmt.Errorf("stopped at move %d: %w", moves+1, err)
		}
		player := position.Player()
		move, searchMetric, err := e.agents[player].FindMove(position, history[player])
		if errors.Is(err, agent.ErrNoMoves) {
			log.Info().Msgf("%s has no legal moves", player)
			break
		}
		if err != nil {
			return "", metrics.GameMetric{}, nil, fmt.Errorf("%s at move %d: %w", player, moves+1, err)
		}
		history[player] = nil

		position, _, done, err = e.env.Step(move)
		if err != nil {
			return "", metrics.GameMetric{}, nil, fmt.Errorf("%s played %s: %w", player, move, err)
		}
		history[player.Opponent()] = append(history[player.Opponent()], move)

		moves++
		moveMetrics = append(moveMetrics, metrics.MoveMetric{
			Step:         moves,
			Player:       player.String(),
			SearchMetric: searchMetric,
		})
		log.Debug().Msgf("move %d: %s played %s", moves, player, move)
	}

	termination := position.Termination()
	winner := ""
	if termination.Done && !termination.Draw {
		winner = termination.Winner.String()
	}
	gameMetric.Winner = winner
	gameMetric.Reward = termination.Reward()
	gameMetric.EndTime = time.Now()
	gameMetric.Duration = gameMetric.EndTime.Sub(gameMetric.StartTime)
	gameMetric.TotalMoves = moves

	if termination.Done {
		log.Info().Msgf("game over after %d moves, winner: %q", moves, winner)
	} else {
		log.Info().Msgf("stopped after %d moves without a result", moves)
	}
	return winner, gameMetric, moveMetrics, nil
}
