package cmd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"checkers/envrpc"
	"checkers/evaluator"
	"checkers/game"
	"checkers/store"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("CHECKERS_SEARCH_SEED", "3")
	t.Setenv("CHECKERS_SEARCH_SIMULATIONS", "2")
	t.Setenv("CHECKERS_SEARCH_ROLLOUT_DEPTH", "5")
	rootCmd.SetArgs(append(args, "--log-level", "warn"))
	return rootCmd.Execute()
}

func TestArenaCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHECKERS_ARENA_OUT_DIR", dir)

	require.NoError(t, execute(t, "arena", "--black", "pure", "--white", "random", "--games", "2"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "Should write one timestamped record directory")
	_, err = os.Stat(filepath.Join(dir, entries[0].Name(), "game_records.csv"))
	require.NoError(t, err)
}

func TestArenaOnEnvironmentServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	remote := game.NewLocalEnv()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- envrpc.Serve(ctx, lis, envrpc.NewServer(remote)) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	dir := t.TempDir()
	t.Setenv("CHECKERS_ARENA_OUT_DIR", dir)
	t.Setenv("CHECKERS_ARENA_WORKERS", "2")
	t.Setenv("CHECKERS_ENVIRONMENT_ADDRESS", lis.Addr().String())

	require.NoError(t, execute(t, "arena", "--black", "random", "--white", "random", "--games", "2"))

	require.False(t, remote.Current().Equal(game.NewPosition()), "Games should be refereed by the server")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPlayCommand(t *testing.T) {
	require.NoError(t, execute(t, "play", "--strategy", "pure"))
}

func TestTrainCommand(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.json")
	out := filepath.Join(dir, "trajectories")
	t.Setenv("CHECKERS_TRAINING_OUT_DIR", out)
	t.Setenv("CHECKERS_TRAINING_FLUSH_GAMES", "1")
	t.Setenv("CHECKERS_TRAINING_TEMPERATURE", "1")

	require.NoError(t, execute(t, "train", "--iterations", "1", "--model", model))

	_, err := evaluator.Load(model)
	require.NoError(t, err, "Should save loadable weights")

	files, err := filepath.Glob(filepath.Join(out, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	rows, err := store.ReadParquet(files[0])
	require.NoError(t, err)
	require.NotEmpty(t, rows)
}

func TestUnknownStrategy(t *testing.T) {
	require.Error(t, execute(t, "play", "--strategy", "minimax"))
}
