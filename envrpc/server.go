package envrpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"checkers/game"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server exposes a single game.LocalEnv. Calls are serialized since the
// environment is stateful.
type Server struct {
	mu  sync.Mutex
	env *game.LocalEnv
}

func NewServer(env *game.LocalEnv) *Server {
	if env == nil {
		env = game.NewLocalEnv()
	}
	return &Server{env: env}
}

func (s *Server) Reset(_ context.Context, req *ResetRequest) (*ResetResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position, err := s.env.Reset(req.Position)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ResetResponse{Position: position}, nil
}

func (s *Server) Step(_ context.Context, req *StepRequest) (*StepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position, reward, done, err := s.env.Step(req.Move)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StepResponse{Position: position, Reward: reward, Done: done}, nil
}

func (s *Server) LegalMoves(_ context.Context, req *LegalMovesRequest) (*LegalMovesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moves, err := s.env.LegalMoves(req.Position)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LegalMovesResponse{Moves: moves}, nil
}

// Current returns the position the environment is in.
func (s *Server) Current(context.Context, *CurrentRequest) (*CurrentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &CurrentResponse{Position: s.env.Current()}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, game.ErrIllegalMove):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, game.ErrGameOver):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func logRequests(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.Str("method", info.FullMethod).Dur("took", time.Since(start)).Msg("env request")
	return resp, err
}

// NewGRPCServer builds a grpc.Server with the environment service registered.
func NewGRPCServer(srv EnvironmentServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(logRequests)}, opts...)
	s := grpc.NewServer(opts...)
	RegisterEnvironmentServer(s, srv)
	return s
}

// Serve runs the environment service on lis until ctx is cancelled.
func Serve(ctx context.Context, lis net.Listener, srv EnvironmentServer) error {
	s := NewGRPCServer(srv)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.Info().Str("address", lis.Addr().String()).Msg("environment server listening")
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
