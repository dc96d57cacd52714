package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("counts events of the current search", func(t *testing.T) {
		c := NewCollector()
		c.Start("pure", 30, 100)
		c.AddSimulation()
		c.AddSimulation()
		c.AddFullPlayout()
		c.AddTruncatedPlayout()
		c.SetTreeReset(true)

		metric := c.Complete()

		require.Equal(t, "pure", metric.Strategy)
		require.Equal(t, 30, metric.Simulations)
		require.Equal(t, 2, metric.Completed)
		require.Equal(t, 1, metric.FullPlayouts)
		require.Equal(t, 1, metric.TruncatedPlayouts)
		require.True(t, metric.IsTreeReset)
	})

	t.Run("start clears counters", func(t *testing.T) {
		c := NewCollector()
		c.Start("pure", 30, 100)
		c.AddSimulation()
		c.Start("pure", 30, 100)

		require.Equal(t, 0, c.Complete().Completed, "Should only count the latest search")
	})
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	registry := NewRegistry(reg)
	c := NewPrometheusCollector(registry)

	c.Start("guided", 10, 5)
	c.AddSimulation()
	c.AddDegeneratePlayout()
	metric := c.Complete()
	registry.ObserveTraining(1.5)

	require.Equal(t, 1, metric.Completed, "Should still report to the wrapped collector")
	require.Equal(t, 1.0, testutil.ToFloat64(registry.simulations.WithLabelValues("guided")))
	require.Equal(t, 1.0, testutil.ToFloat64(registry.playouts.WithLabelValues("guided", "degenerate")))
	require.Equal(t, 1.5, testutil.ToFloat64(registry.loss))
}

func TestWriter(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	err = w.WriteGameRecords([]GameRecord{{
		ID:    1,
		Black: 0,
		White: 1,
		GameMetric: GameMetric{
			StartingPlayer: "white",
			Winner:         "black",
			Reward:         3,
			TotalMoves:     40,
			StartTime:      time.Unix(0, 0),
			EndTime:        time.Unix(60, 0),
			Duration:       time.Minute,
		},
	}})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(w.Dir(), "game_records.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2, "Should write a header and one record")
	require.Equal(t, "id", rows[0][0])
	require.Equal(t, []string{"1", "0", "1", "white", "black", "3", "40"}, rows[1][:7])
}
