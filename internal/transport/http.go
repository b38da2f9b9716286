package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/events"
	"github.com/triage-ai/toolhost/internal/registry"
	"github.com/triage-ai/toolhost/internal/rpc"
)

// EventHistory reads archived broadcast messages.
type EventHistory interface {
	ListRecords(ctx context.Context, q events.HistoryQuery) (*events.HistoryPage, error)
}

// HTTPDependencies holds shared state injected into all HTTP handlers.
type HTTPDependencies struct {
	Host    Dispatcher
	Metrics http.Handler // nil disables /metrics
	History EventHistory // nil answers /events with 503
	Logger  *zap.Logger
}

// NewHTTPHandler builds the HTTP mux with all routes wired up.
func NewHTTPHandler(deps *HTTPDependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	// JSON-RPC entry point
	mux.HandleFunc("POST /rpc", deps.handleRPC)

	// Tool listing and direct invocation
	mux.HandleFunc("GET /tools", deps.handleListTools)
	mux.HandleFunc("POST /tools/{name}", deps.handleCallTool)

	mux.HandleFunc("GET /events", deps.handleListEvents)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

func (d *HTTPDependencies) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeRaw(w, status, rpc.Marshal(rpc.Failure(nil, rpc.ErrInvalidRequest(err.Error()))))
		return
	}
	writeRaw(w, http.StatusOK, d.Host.HandleRaw(r.Context(), body))
}

func (d *HTTPDependencies) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := d.Host.Tools()
	if tools == nil {
		tools = []registry.Descriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// handleCallTool wraps the request body as the arguments of a callTool
// request for the named tool.
func (d *HTTPDependencies) handleCallTool(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rpc.Failure(nil, rpc.ErrInvalidRequest(err.Error())))
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, rpc.Failure(nil, rpc.ErrParse(errors.New("body is not valid JSON"))))
		return
	}

	params, err := json.Marshal(rpc.CallToolParams{Name: r.PathValue("name"), Arguments: body})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rpc.Failure(nil, rpc.ErrInvalidParams(err.Error())))
		return
	}
	id, _ := json.Marshal(uuid.NewString())

	resp := d.Host.Handle(r.Context(), &rpc.Request{
		JSONRPC: rpc.Version,
		ID:      id,
		Method:  rpc.MethodCallTool,
		Params:  params,
	})
	writeRaw(w, http.StatusOK, rpc.Marshal(resp))
}

func (d *HTTPDependencies) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if d.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event archive not configured"})
		return
	}

	q := r.URL.Query()
	query := events.HistoryQuery{
		Page:     queryInt(q.Get("page"), 1),
		PageSize: queryInt(q.Get("page_size"), events.DefaultPageSize),
	}
	if v := q.Get("topic"); v != "" {
		query.Topic = &v
	}
	for key, dst := range map[string]**time.Time{"since": &query.Since, "until": &query.Until} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": key + " must be RFC3339"})
			return
		}
		*dst = &t
	}
	query.Normalize()

	page, err := d.History.ListRecords(r.Context(), query)
	if err != nil {
		d.Logger.Error("failed to list events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func queryInt(v string, defaultVal int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultVal
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer func() { _ = r.Body.Close() }()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMessageSize))
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
