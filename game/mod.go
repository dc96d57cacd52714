package game

import (
	"errors"
	"fmt"
)

const (
	BoardSize  = 8
	MoveLimit  = 33 // Game ends once the turn count exceeds this
	ChainLimit = 5  // Max consecutive takes by one piece within a turn
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game is over")
)

type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Sign maps the color onto the black-positive reward convention.
func (c Color) Sign() float64 {
	if c == Black {
		return 1
	}
	return -1
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "white", "White":
		*c = White
	case "black", "Black":
		*c = Black
	default:
		return fmt.Errorf("unknown color %q", text)
	}
	return nil
}

// Termination is the resolved outcome of a position.
type Termination struct {
	Done   bool
	Draw   bool
	Winner Color
	Pieces int // Pieces left to the winner
}

// Reward follows the black-positive convention: a black win with n pieces
// left is +n, a white win is -n, anything else is 0.
func (t Termination) Reward() float64 {
	if !t.Done || t.Draw {
		return 0
	}
	return t.Winner.Sign() * float64(t.Pieces)
}
