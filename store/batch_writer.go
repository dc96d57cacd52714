package store

import (
	"fmt"
	"sync"

	"checkers/training"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BatchWriter buffers trajectories and writes one parquet file per
// flushGames games. It implements training.Sink.
type BatchWriter struct {
	mu         sync.Mutex
	outDir     string
	flushGames int

	rows  []TrajectoryRow
	games int
	files []string
}

func NewBatchWriter(outDir string, flushGames int) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	if flushGames <= 0 {
		flushGames = 1
	}
	return &BatchWriter{outDir: outDir, flushGames: flushGames}, nil
}

func (b *BatchWriter) Write(gameID uuid.UUID, trajectory training.Trajectory) error {
	rows, err := Rows(gameID, trajectory)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, rows...)
	b.games++
	if b.games >= b.flushGames {
		return b.flush()
	}
	return nil
}

// Flush writes any buffered games.
func (b *BatchWriter) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush()
}

func (b *BatchWriter) flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	path, err := WriteBatchParquetAtomic(b.outDir, b.rows)
	if err != nil {
		return err
	}
	log.Debug().Msgf("wrote %d rows of %d games to %s", len(b.rows), b.games, path)
	b.files = append(b.files, path)
	b.rows = nil
	b.games = 0
	return nil
}

// Files lists the parquet files written so far.
func (b *BatchWriter) Files() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.files...)
}

func (b *BatchWriter) Close() error {
	return b.Flush()
}
