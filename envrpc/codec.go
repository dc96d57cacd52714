// Package envrpc serves a checkers environment over gRPC and provides a
// client that satisfies searcher.Environment.
package envrpc

import (
	"encoding/json"

	"checkers/game"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype the service is spoken in.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type ResetRequest struct {
	Position *game.Position `json:"position,omitempty"`
}

type ResetResponse struct {
	Position game.Position `json:"position"`
}

type StepRequest struct {
	Move game.Move `json:"move"`
}

type StepResponse struct {
	Position game.Position `json:"position"`
	Reward   float64       `json:"reward"`
	Done     bool          `json:"done"`
}

type LegalMovesRequest struct {
	Position game.Position `json:"position"`
}

type LegalMovesResponse struct {
	Moves []game.Move `json:"moves"`
}

type CurrentRequest struct{}

type CurrentResponse struct {
	Position game.Position `json:"position"`
}
