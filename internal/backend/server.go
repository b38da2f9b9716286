// Package backend serves one tool namespace: initialize, listTools and
// callTool dispatched to the handlers of a registry.
package backend

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// Backend handles every request routed to one namespace.
type Backend interface {
	// Namespace returns the tool name prefix the backend owns.
	Namespace() string

	// Tools returns the backend's tool descriptors in declaration order.
	Tools() []registry.Descriptor

	// Handle processes one request and always returns exactly one response.
	Handle(ctx context.Context, req *rpc.Request) *rpc.Response
}

// Server is the registry-backed Backend implementation.
type Server struct {
	info     rpc.ServerInfo
	registry *registry.Registry
	logger   *zap.Logger
}

// NewServer creates a Server exposing the tools of reg.
func NewServer(info rpc.ServerInfo, reg *registry.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		info:     info,
		registry: reg,
		logger:   logger.With(zap.String("backend", reg.Namespace())),
	}
}

func (s *Server) Namespace() string { return s.registry.Namespace() }

func (s *Server) Tools() []registry.Descriptor { return s.registry.Descriptors() }

// Handle accepts both the bare method names and their namespace-qualified
// forms, e.g. "listTools" and "catalog.listTools".
func (s *Server) Handle(ctx context.Context, req *rpc.Request) (resp *rpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", zap.String("method", req.Method), zap.Any("panic", r))
			resp = rpc.Failure(req.ID, rpc.NewError(rpc.CodeInternalError, "internal error"))
		}
	}()

	switch strings.TrimPrefix(req.Method, s.Namespace()+".") {
	case rpc.MethodInitialize:
		return rpc.Success(req.ID, rpc.InitializeResult{
			Capabilities: rpc.Capabilities{Tools: true},
			ServerInfo:   s.info,
		})
	case rpc.MethodListTools:
		return rpc.Success(req.ID, map[string]any{"tools": s.Tools()})
	case rpc.MethodCallTool:
		return s.callTool(ctx, req)
	default:
		return rpc.Failure(req.ID, rpc.ErrUnknownMethod())
	}
}

func (s *Server) callTool(ctx context.Context, req *rpc.Request) *rpc.Response {
	var params rpc.CallToolParams
	if rpcErr := rpc.DecodeParams(req.Params, &params); rpcErr != nil {
		return rpc.Failure(req.ID, rpcErr)
	}
	if params.Name == "" {
		return rpc.Failure(req.ID, rpc.ErrInvalidParams("missing tool name"))
	}

	tool, ok := s.registry.Lookup(params.Name)
	if !ok {
		s.logger.Debug("unknown tool", zap.String("tool", params.Name))
		return rpc.Failure(req.ID, rpc.ErrUnknownTool())
	}
	if err := s.registry.Validate(params.Name, params.Arguments); err != nil {
		return rpc.Failure(req.ID, rpc.ErrInvalidParams(err.Error()))
	}

	result, err := tool.Handler(ctx, params.Arguments)
	if err != nil {
		rpcErr := toRPCError(err)
		s.logger.Warn("tool call failed",
			zap.String("tool", params.Name),
			zap.Int("code", rpcErr.Code),
			zap.Error(err),
		)
		return rpc.Failure(req.ID, rpcErr)
	}
	return rpc.Success(req.ID, result)
}

// toRPCError passes protocol errors through and reports anything else as a
// backend failure carrying the cause.
func toRPCError(err error) *rpc.Error {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return rpc.ErrBackend(err)
}
