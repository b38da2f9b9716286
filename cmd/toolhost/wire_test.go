package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/config"
)

func TestBuild_StaticPrices(t *testing.T) {
	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 9, "name": "Monitor", "price": 799.0, "stock": 8, "category": "displays"},
			{"id": 2, "name": "Mouse", "price": 29.0, "stock": 200, "category": "accessories"},
		})
	}))
	defer catalogSrv.Close()

	cfg := config.Default()
	cfg.CatalogURL = catalogSrv.URL

	a, err := build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())

	if got := len(a.host.Tools()); got != 6 {
		t.Fatalf("expected 6 tools, got %d", got)
	}

	out := a.host.HandleRaw(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":"s1","method":"callTool","params":{"name":"catalog.searchLowStock","arguments":{"threshold":25}}}`))
	var resp struct {
		ID     string `json:"id"`
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "s1" || resp.Result.Count != 1 {
		t.Fatalf("unexpected response %s", out)
	}
}

func TestBuild_SQLitePrices(t *testing.T) {
	cfg := config.Default()
	cfg.BasePrices.Driver = config.SourceSQLite
	cfg.BasePrices.DSN = ":memory:"

	a, err := build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	a.Close(context.Background())
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backends = append(cfg.Backends, config.Backend{Name: "billing", Prefix: "billing"})

	_, err := build(context.Background(), cfg, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}
