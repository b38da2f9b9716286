package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/events"
)

type stubHistory struct {
	got  events.HistoryQuery
	page *events.HistoryPage
	err  error
}

func (s *stubHistory) ListRecords(_ context.Context, q events.HistoryQuery) (*events.HistoryPage, error) {
	s.got = q
	return s.page, s.err
}

func getEvents(t *testing.T, history EventHistory, query string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHTTPHandler(&HTTPDependencies{Host: &echoDispatcher{}, History: history, Logger: zap.NewNop()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events"+query, nil))
	return rec
}

func TestHTTP_ListEvents(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{page: &events.HistoryPage{
		Records:  []events.Record{{ID: "e1", Timestamp: ts, Topic: events.TopicLowStock, Payload: "9"}},
		Total:    1,
		Page:     2,
		PageSize: 10,
	}}

	rec := getEvents(t, history, "?topic=product-lowstock&page=2&page_size=10&since=2026-03-01T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if history.got.Topic == nil || *history.got.Topic != events.TopicLowStock {
		t.Fatalf("topic filter not passed: %+v", history.got)
	}
	if history.got.Since == nil || history.got.Until != nil {
		t.Fatalf("unexpected time filters: %+v", history.got)
	}
	if history.got.Page != 2 || history.got.PageSize != 10 {
		t.Fatalf("unexpected pagination: %+v", history.got)
	}

	var page events.HistoryPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Records) != 1 || page.Records[0].Payload != "9" {
		t.Fatalf("unexpected page %s", rec.Body)
	}
}

func TestHTTP_ListEventsClampsPageSize(t *testing.T) {
	history := &stubHistory{page: &events.HistoryPage{}}
	getEvents(t, history, "?page_size=100000&page=0")
	if history.got.PageSize != events.MaxPageSize || history.got.Page != 1 {
		t.Fatalf("expected clamped query, got %+v", history.got)
	}
}

func TestHTTP_ListEventsErrors(t *testing.T) {
	if rec := getEvents(t, nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without archive, got %d", rec.Code)
	}
	if rec := getEvents(t, &stubHistory{}, "?until=yesterday"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time, got %d", rec.Code)
	}
	if rec := getEvents(t, &stubHistory{err: errors.New("clickhouse down")}, ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on query failure, got %d", rec.Code)
	}
}
