package engine

import (
	"context"

	"checkers/metrics"
)

// MaxMoves bounds a game in plies, including chained takes.
const MaxMoves = 1000

type Engine interface {
	// Run plays a game till it is over, MaxMoves is reached or ctx is done.
	// The winner is empty for a draw or an unfinished game.
	Run(ctx context.Context) (winner string, gameMetric metrics.GameMetric, moveMetrics []metrics.MoveMetric, err error)
}
