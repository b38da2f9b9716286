package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/rpc"
)

func newTestHTTP(t *testing.T) (*httptest.Server, *echoDispatcher) {
	t.Helper()
	d := &echoDispatcher{}
	srv := httptest.NewServer(NewHTTPHandler(&HTTPDependencies{
		Host:    d,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		Logger:  zap.NewNop(),
	}))
	t.Cleanup(srv.Close)
	return srv, d
}

func post(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestHTTP_RPC(t *testing.T) {
	srv, d := newTestHTTP(t)

	status, body := post(t, srv.URL+"/rpc", `{"jsonrpc":"2.0","id":"x1","method":"listTools"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp rpc.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if string(resp.ID) != `"x1"` || resp.Error != nil {
		t.Fatalf("unexpected response %s", body)
	}
	if d.count() != 1 {
		t.Fatalf("expected 1 dispatched request, got %d", d.count())
	}
}

func TestHTTP_RPCParseError(t *testing.T) {
	srv, d := newTestHTTP(t)

	status, body := post(t, srv.URL+"/rpc", `{"id":1,`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp rpc.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != rpc.CodeParseError || string(resp.ID) != "null" {
		t.Fatalf("expected parse error with null id, got %s", body)
	}
	if d.count() != 0 {
		t.Fatal("nothing should be dispatched")
	}
}

func TestHTTP_RPCTooLarge(t *testing.T) {
	h := NewHTTPHandler(&HTTPDependencies{Host: &echoDispatcher{}})

	big := `{"id":1,"method":"listTools","params":{"pad":"` + strings.Repeat("x", MaxMessageSize) + `"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(big)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":-32600`) {
		t.Fatalf("expected invalid request error, got %s", rec.Body.String())
	}
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestHTTP(t)

	resp, err := http.Get(srv.URL + "/rpc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHTTP_ListTools(t *testing.T) {
	srv, _ := newTestHTTP(t)

	resp, err := http.Get(srv.URL + "/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Tools) != 1 || out.Tools[0].Name != "catalog.searchLowStock" {
		t.Fatalf("unexpected tools %+v", out)
	}
}

func TestHTTP_CallTool(t *testing.T) {
	srv, d := newTestHTTP(t)

	status, body := post(t, srv.URL+"/tools/catalog.applyDiscount", `{"product_id":9,"percent":20}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if d.count() != 1 {
		t.Fatal("expected one dispatched request")
	}
	req := d.requests[0]
	if req.Method != rpc.MethodCallTool || len(req.ID) == 0 {
		t.Fatalf("unexpected request %+v", req)
	}
	var params rpc.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatal(err)
	}
	if params.Name != "catalog.applyDiscount" || string(params.Arguments) != `{"product_id":9,"percent":20}` {
		t.Fatalf("unexpected params %s", req.Params)
	}

	status, _ = post(t, srv.URL+"/tools/catalog.applyDiscount", `{oops`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", status)
	}
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	srv, _ := newTestHTTP(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "metrics" {
		t.Fatalf("unexpected metrics body %s", body)
	}
}

func TestHTTP_CORSPreflight(t *testing.T) {
	srv, _ := newTestHTTP(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/rpc", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d", resp.StatusCode)
	}
}
