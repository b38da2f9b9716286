package orderssvc

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/rpc"
)

type stubNotifier struct {
	ids []int
	err error
}

func (n *stubNotifier) NotifyPending(_ context.Context, productID int) error {
	if n.err != nil {
		return n.err
	}
	n.ids = append(n.ids, productID)
	return nil
}

func handle(t *testing.T, n PendingNotifier, raw string) *rpc.Response {
	t.Helper()
	srv, err := New(Config{Notifier: n, Logger: zap.NewNop()})
	if err != nil {
		t.Fatal(err)
	}
	req, rpcErr := rpc.ParseRequest([]byte(raw))
	if rpcErr != nil {
		t.Fatal(rpcErr)
	}
	return srv.Handle(context.Background(), req)
}

func TestNotifyPending(t *testing.T) {
	n := &stubNotifier{}
	resp := handle(t, n, `{"id":3,"method":"callTool","params":{"name":"orders.notifyPending","arguments":{"product_id":4}}}`)

	if resp.Error != nil {
		t.Fatalf("unexpected error %v", resp.Error)
	}
	if string(resp.Result) != `{"status":"notified","product_id":4}` {
		t.Fatalf("unexpected result %s", resp.Result)
	}
	if len(n.ids) != 1 || n.ids[0] != 4 {
		t.Fatalf("expected one notification for product 4, got %v", n.ids)
	}
}

func TestNotifyPending_PublishFailure(t *testing.T) {
	n := &stubNotifier{err: errors.New("events: publish events: dial tcp: connection refused")}
	resp := handle(t, n, `{"id":3,"method":"callTool","params":{"name":"orders.notifyPending","arguments":{"product_id":4}}}`)

	if resp.Error == nil || resp.Error.Code != rpc.CodeBackendError {
		t.Fatalf("expected backend error, got %+v", resp)
	}
	if resp.Error.Message != n.err.Error() {
		t.Fatalf("expected cause message, got %q", resp.Error.Message)
	}
}

func TestNotifyPending_MissingProductID(t *testing.T) {
	n := &stubNotifier{}
	resp := handle(t, n, `{"id":3,"method":"callTool","params":{"name":"orders.notifyPending","arguments":{}}}`)

	if resp.Error == nil || resp.Error.Code != rpc.CodeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp)
	}
	if len(n.ids) != 0 {
		t.Fatal("no notification expected")
	}
}

func TestListTools_Qualified(t *testing.T) {
	resp := handle(t, &stubNotifier{}, `{"id":1,"method":"orders.listTools"}`)
	if resp.Error != nil {
		t.Fatal(resp.Error)
	}
}
