package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"checkers/game"
	"checkers/training"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const schemaVersion = "trajectory_row_v1"

// TrajectoryRow is one position of a self-play game.
//
// Position is the JSON encoding of game.Position. Move is the dense move
// index played from the position, or -1 at the end of the game. Value is the
// outcome target from the side to move.
type TrajectoryRow struct {
	GameID   string  `parquet:"game_id,dict"`
	Ply      int32   `parquet:"ply"`
	Player   string  `parquet:"player,dict"`
	Position []byte  `parquet:"position"`
	Legal    []int32 `parquet:"legal,list"`
	Move     int32   `parquet:"move"`
	Weight   float32 `parquet:"weight"`
	Value    float32 `parquet:"value"`
	Score    float32 `parquet:"score"`
	Outcome  float32 `parquet:"outcome"`
}

// Rows flattens a trajectory in play order, root first.
func Rows(gameID uuid.UUID, trajectory training.Trajectory) ([]TrajectoryRow, error) {
	n := len(trajectory.Samples)
	rows := make([]TrajectoryRow, 0, n)
	for i := n - 1; i >= 0; i-- {
		sample := trajectory.Samples[i]
		position, err := json.Marshal(sample.Position)
		if err != nil {
			return nil, fmt.Errorf("encode position: %w", err)
		}
		legal := make([]int32, len(sample.Legal))
		for j, move := range sample.Legal {
			legal[j] = int32(move.Index())
		}
		move := int32(-1)
		if sample.Move != nil {
			move = int32(sample.Move.Index())
		}
		rows = append(rows, TrajectoryRow{
			GameID:   gameID.String(),
			Ply:      int32(n - 1 - i),
			Player:   sample.Position.Player().String(),
			Position: position,
			Legal:    legal,
			Move:     move,
			Weight:   float32(sample.Weight),
			Value:    float32(sample.Value),
			Score:    float32(trajectory.Score),
			Outcome:  float32(trajectory.Outcome),
		})
	}
	return rows, nil
}

// Sample decodes a row back into a training sample.
func (r TrajectoryRow) Sample() (training.Sample, error) {
	var position game.Position
	if err := json.Unmarshal(r.Position, &position); err != nil {
		return training.Sample{}, fmt.Errorf("decode position: %w", err)
	}
	legal := make([]game.Move, len(r.Legal))
	for i, index := range r.Legal {
		move, err := game.MoveFromIndex(int(index))
		if err != nil {
			return training.Sample{}, err
		}
		legal[i] = move
	}
	sample := training.Sample{
		Position: position,
		Legal:    legal,
		Weight:   float64(r.Weight),
		Value:    float64(r.Value),
	}
	if r.Move >= 0 {
		move, err := game.MoveFromIndex(int(r.Move))
		if err != nil {
			return training.Sample{}, err
		}
		sample.Move = &move
	}
	return sample, nil
}

// WriteBatchParquetAtomic writes rows to a new file in outDir via a
// temporary file and rename, so readers never see a partial file.
func WriteBatchParquetAtomic(outDir string, rows []TrajectoryRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("trajectories_%d.parquet", time.Now().UnixNano())
	tmpPath := filepath.Join(tmpDir, name)
	outPath := filepath.Join(outDir, name)

	if err := writeParquet(tmpPath, rows); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return outPath, nil
}

func writeParquet(path string, rows []TrajectoryRow) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[TrajectoryRow](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", schemaVersion)

	if _, err := w.Write(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Sync()
}

// ReadParquet loads every row of a trajectory file.
func ReadParquet(path string) ([]TrajectoryRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, err
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != schemaVersion {
		return nil, fmt.Errorf("unsupported schema %q", schema)
	}

	reader := parquet.NewGenericReader[TrajectoryRow](pf)
	defer reader.Close()

	rows := make([]TrajectoryRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return rows[:n], nil
}
