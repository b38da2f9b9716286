package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("catalog", "callTool", "ok", 20*time.Millisecond)
	m.RecordDecision("discount", "none")
	m.RecordPublishFailure("events")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`toolhost_requests_total{backend="catalog",method="callTool",outcome="ok"} 1`,
		`toolhost_pricing_decisions_total{action="none",rule="discount"} 1`,
		`toolhost_publish_failures_total{topic="events"} 1`,
		`toolhost_dispatch_duration_seconds_count{backend="catalog"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("catalog", "callTool", "ok", time.Millisecond)
	m.RecordDecision("reset", "reset")
	m.RecordPublishFailure("events")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics, got %d", rec.Code)
	}
}

func TestSetupTracing_Disabled(t *testing.T) {
	tp, shutdown, err := SetupTracing(context.Background(), "", "toolhost")
	if err != nil {
		t.Fatal(err)
	}
	_, span := tp.Tracer(TracerName).Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatal("expected a non-recording span when tracing is disabled")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
