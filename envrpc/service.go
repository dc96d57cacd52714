package envrpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "checkers.Environment"

// EnvironmentServer is the server API of the environment service.
type EnvironmentServer interface {
	Reset(context.Context, *ResetRequest) (*ResetResponse, error)
	Step(context.Context, *StepRequest) (*StepResponse, error)
	LegalMoves(context.Context, *LegalMovesRequest) (*LegalMovesResponse, error)
	Current(context.Context, *CurrentRequest) (*CurrentResponse, error)
}

func RegisterEnvironmentServer(s grpc.ServiceRegistrar, srv EnvironmentServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reset", Handler: unaryHandler("Reset", EnvironmentServer.Reset)},
		{MethodName: "Step", Handler: unaryHandler("Step", EnvironmentServer.Step)},
		{MethodName: "LegalMoves", Handler: unaryHandler("LegalMoves", EnvironmentServer.LegalMoves)},
		{MethodName: "Current", Handler: unaryHandler("Current", EnvironmentServer.Current)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checkers/environment",
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unaryHandler[Req, Resp any](method string, call func(EnvironmentServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EnvironmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EnvironmentServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
