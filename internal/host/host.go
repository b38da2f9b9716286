// Package host is the orchestrator entry point: it parses each incoming
// message, routes it by namespace to exactly one backend and returns that
// backend's response with the request id echoed.
package host

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
	"github.com/triage-ai/toolhost/internal/telemetry"
)

// Config configures a Host.
type Config struct {
	Router  *Router
	Tracer  trace.Tracer       // optional
	Metrics *telemetry.Metrics // optional
	Logger  *zap.Logger
}

// Host dispatches requests to backends. It keeps no per-request state and is
// safe for concurrent use.
type Host struct {
	router  *Router
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// New creates a Host.
func New(cfg Config) *Host {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		router:  cfg.Router,
		tracer:  tracer,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// HandleRaw processes one encoded message and returns one encoded response.
func (h *Host) HandleRaw(ctx context.Context, data []byte) []byte {
	req, rpcErr := rpc.ParseRequest(data)
	if rpcErr != nil {
		var id []byte
		if req != nil {
			id = req.ID
		}
		h.logger.Debug("rejected message", zap.Int("code", rpcErr.Code), zap.String("reason", rpcErr.Message))
		h.metrics.ObserveRequest("", "", "rejected", 0)
		return rpc.Marshal(rpc.Failure(id, rpcErr))
	}
	return rpc.Marshal(h.Handle(ctx, req))
}

// Handle routes a parsed request. The response always carries the request's id.
func (h *Host) Handle(ctx context.Context, req *rpc.Request) *rpc.Response {
	be := h.router.Resolve(req)
	exchangeID := uuid.NewString()

	ctx, span := h.tracer.Start(ctx, "toolhost.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("toolhost.exchange_id", exchangeID),
			attribute.String("toolhost.backend", be.Namespace()),
			attribute.String("rpc.method", req.Method),
		),
	)
	defer span.End()

	start := time.Now()
	resp := be.Handle(ctx, req)
	elapsed := time.Since(start)

	if resp == nil {
		resp = rpc.Failure(nil, rpc.NewError(rpc.CodeInternalError, "backend returned no response"))
	}
	resp.JSONRPC = rpc.Version
	resp.ID = req.ID

	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
		span.SetStatus(codes.Error, resp.Error.Message)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", resp.Error.Code))
	}
	h.metrics.ObserveRequest(be.Namespace(), req.Method, outcome, elapsed)

	h.logger.Info("request handled",
		zap.String("exchange_id", exchangeID),
		zap.String("backend", be.Namespace()),
		zap.String("method", req.Method),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
	)
	return resp
}

// Tools returns the tool descriptors of every backend.
func (h *Host) Tools() []registry.Descriptor {
	var out []registry.Descriptor
	for _, b := range h.router.Backends() {
		out = append(out, b.Tools()...)
	}
	return out
}
