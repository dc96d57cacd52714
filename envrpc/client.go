package envrpc

import (
	"context"
	"fmt"
	"time"

	"checkers/game"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const DefaultTimeout = 5 * time.Second

// Client is a remote environment. Each call is bounded by the client
// timeout. It satisfies searcher.Environment.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func Dial(target string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial environment %s: %w", target, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return fromStatus(c.conn.Invoke(ctx, fullMethod(method), req, resp))
}

func (c *Client) Reset(position *game.Position) (game.Position, error) {
	var resp ResetResponse
	if err := c.invoke("Reset", &ResetRequest{Position: position}, &resp); err != nil {
		return game.Position{}, err
	}
	return resp.Position, nil
}

func (c *Client) Step(move game.Move) (game.Position, float64, bool, error) {
	var resp StepResponse
	if err := c.invoke("Step", &StepRequest{Move: move}, &resp); err != nil {
		return game.Position{}, 0, false, err
	}
	return resp.Position, resp.Reward, resp.Done, nil
}

func (c *Client) LegalMoves(position game.Position) ([]game.Move, error) {
	var resp LegalMovesResponse
	if err := c.invoke("LegalMoves", &LegalMovesRequest{Position: position}, &resp); err != nil {
		return nil, err
	}
	return resp.Moves, nil
}

// Current returns the position the remote environment is in.
func (c *Client) Current() (game.Position, error) {
	var resp CurrentResponse
	if err := c.invoke("Current", &CurrentRequest{}, &resp); err != nil {
		return game.Position{}, err
	}
	return resp.Position, nil
}

// fromStatus maps service errors back onto the game sentinels.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", game.ErrIllegalMove, st.Message())
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", game.ErrGameOver, st.Message())
	default:
		return fmt.Errorf("environment: %w", err)
	}
}
