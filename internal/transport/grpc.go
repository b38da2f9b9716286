package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// gRPC service identity.
const (
	ServiceName    = "toolhost.v1.ToolHost"
	FullMethodCall = "/" + ServiceName + "/Call"

	// CodecName is the content-subtype Frames travel under. It must not
	// collide with a generic name such as "json".
	CodecName = "toolhost-jsonrpc"
)

// Frame is one raw JSON-RPC message carried as a gRPC message.
type Frame struct {
	Data []byte
}

// frameCodec passes Frames through untouched; the payload is already JSON.
type frameCodec struct{}

func (frameCodec) Name() string { return CodecName }

func (frameCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("transport: cannot marshal %T", v)
	}
	return f.Data, nil
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("transport: cannot unmarshal into %T", v)
	}
	f.Data = append([]byte(nil), data...)
	return nil
}

func init() {
	encoding.RegisterCodec(frameCodec{})
}

type callServer interface {
	Call(ctx context.Context, in *Frame) (*Frame, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*callServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Frame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(callServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodCall}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(callServer).Call(ctx, req.(*Frame))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcService struct {
	host Dispatcher
}

// Call never fails at the gRPC level: protocol errors travel inside the
// JSON-RPC response.
func (s *grpcService) Call(ctx context.Context, in *Frame) (*Frame, error) {
	return &Frame{Data: s.host.HandleRaw(ctx, in.Data)}, nil
}

// GRPCServer bundles the gRPC server with its health service.
type GRPCServer struct {
	*grpc.Server
	health *health.Server
}

// NewGRPCServer creates a gRPC server exposing the host and the standard
// health service.
func NewGRPCServer(host Dispatcher, logger *zap.Logger) *GRPCServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(4*MaxMessageSize),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	)
	srv.RegisterService(&serviceDesc, &grpcService{host: host})

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Enable reflection for debugging with grpcurl
	reflection.Register(srv)

	return &GRPCServer{Server: srv, health: healthServer}
}

// GracefulStop marks the service NOT_SERVING and drains in-flight calls.
func (s *GRPCServer) GracefulStop() {
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	s.Server.GracefulStop()
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return resp, err
	}
}

// GRPCClient sends raw JSON-RPC messages to a toolhost gRPC endpoint.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// NewGRPCClient wraps an established connection.
func NewGRPCClient(conn *grpc.ClientConn) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// Call sends one message and returns the encoded response.
func (c *GRPCClient) Call(ctx context.Context, msg []byte) ([]byte, error) {
	out := new(Frame)
	if err := c.conn.Invoke(ctx, FullMethodCall, &Frame{Data: msg}, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out.Data, nil
}
