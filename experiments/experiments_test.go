package experiments

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"checkers/agent"
	"checkers/envrpc"
	"checkers/game"
	"checkers/metrics"
	"checkers/searcher"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func randomExperiment(t *testing.T, workers int) Experiment {
	t.Helper()
	configs := []metrics.AgentConfig{
		{ID: 1, Strategy: "random"},
		{ID: 2, Strategy: "random"},
	}
	var seed atomic.Uint64
	return Experiment{
		Name:     "random",
		OutDir:   t.TempDir(),
		Configs:  configs,
		MatchUps: []MatchUp{{Black: configs[0], White: configs[1]}},
		Games:    4,
		Workers:  workers,
		NewAgent: func(config metrics.AgentConfig) (agent.Agent, error) {
			return agent.NewRandomAgent(config.ID, rand.New(rand.NewSource(seed.Add(1)))), nil
		},
	}
}

func TestRun(t *testing.T) {
	for _, workers := range []int{1, 3} {
		result, err := randomExperiment(t, workers).Run(context.Background())

		require.NoError(t, err)
		require.Equal(t, 4, result.Games)
		require.Equal(t, 4, result.Wins[1]+result.Wins[2]+result.Draws, "Every game should be tallied once")
		for _, name := range []string{"agent_configs.csv", "game_records.csv", "move_records.csv"} {
			_, err := os.Stat(filepath.Join(result.Dir, name))
			require.NoError(t, err, "Should write %s", name)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := randomExperiment(t, 2).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, result.Games)
	_, err = os.Stat(filepath.Join(result.Dir, "game_records.csv"))
	require.NoError(t, err, "Should still write the records")
}

func TestRunOnRemoteEnvironment(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	remote := game.NewLocalEnv()
	done := make(chan error, 1)
	go func() { done <- envrpc.Serve(ctx, lis, envrpc.NewServer(remote)) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	dialed := 0
	experiment := randomExperiment(t, 1)
	experiment.Games = 2
	experiment.NewEnvironment = func() (searcher.Environment, func() error, error) {
		dialed++
		client, err := envrpc.Dial("passthrough:///bufnet", time.Second,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	result, err := experiment.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, result.Games)
	require.Equal(t, 2, dialed, "Every game should get its own environment")
	require.False(t, remote.Current().Equal(game.NewPosition()), "Games should be played on the remote environment")
}

func TestRunRequiresFactory(t *testing.T) {
	_, err := Experiment{Name: "none", OutDir: t.TempDir()}.Run(context.Background())
	require.Error(t, err)
}
