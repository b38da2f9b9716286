package pricing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/triage-ai/toolhost/internal/catalog"
	"github.com/triage-ai/toolhost/internal/catalog/catalogtest"
	"github.com/triage-ai/toolhost/internal/pricebook"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changed []catalog.Product
}

func (n *recordingNotifier) PriceChanged(_ context.Context, p catalog.Product) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, p)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changed)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordDecision(rule, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[rule+"/"+action]++
}

type failingBook struct{ err error }

func (b failingBook) BasePrice(context.Context, int) (float64, bool, error) {
	return 0, false, b.err
}

func demoStore() *catalogtest.Store {
	return catalogtest.New(
		catalog.Product{ID: 9, Name: "GPU External", Price: 799.0, Stock: 8},
		catalog.Product{ID: 2, Name: "Mouse", Price: 29.0, Stock: 200},
		catalog.Product{ID: 13, Name: "USB Hub", Price: 59.0, Stock: 3},
		catalog.Product{ID: 5, Name: "Keyboard", Price: 95.2, Stock: 40},
	)
}

func newTestEngine(store catalog.Store) (*Engine, *recordingNotifier) {
	n := &recordingNotifier{}
	return New(Config{
		Store:    store,
		Book:     pricebook.Defaults(),
		Notifier: n,
		Logger:   zap.NewNop(),
	}), n
}

func TestApplyDiscount_Product9Scenario(t *testing.T) {
	store := demoStore()
	engine, notifier := newTestEngine(store)
	ctx := context.Background()

	out, err := engine.ApplyDiscount(ctx, 9, 20, 25)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionDiscount {
		t.Fatalf("expected discount, got %s (%s)", out.Action, out.Message)
	}
	if out.OldPrice != 799.0 || out.NewPrice != 639.20 {
		t.Fatalf("expected 799.00 -> 639.20, got %v -> %v", out.OldPrice, out.NewPrice)
	}
	if out.DiscountPercent == nil || *out.DiscountPercent != 20 {
		t.Fatalf("expected discount_percent 20, got %v", out.DiscountPercent)
	}
	p, _ := store.Product(9)
	if p.Price != 639.20 || p.Stock != 8 {
		t.Fatalf("unexpected catalog state %+v", p)
	}

	again, err := engine.ApplyDiscount(ctx, 9, 20, 25)
	if err != nil {
		t.Fatal(err)
	}
	if again.Action != ActionNone {
		t.Fatalf("second call must be a no-op, got %s", again.Action)
	}
	if !strings.Contains(again.Message, "already discounted") {
		t.Fatalf("unexpected message %q", again.Message)
	}
	if len(store.Writes()) != 1 {
		t.Fatalf("expected exactly 1 write, got %d", len(store.Writes()))
	}
	if notifier.count() != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", notifier.count())
	}
}

func TestApplyDiscount_HighStockNeverMutates(t *testing.T) {
	store := demoStore()
	engine, notifier := newTestEngine(store)

	for _, threshold := range []int{0, 1, 100, 200} {
		out, err := engine.ApplyDiscount(context.Background(), 2, 50, threshold)
		if err != nil {
			t.Fatal(err)
		}
		if out.Action != ActionNone {
			t.Fatalf("threshold %d: expected no-op, got %s", threshold, out.Action)
		}
	}
	if len(store.Writes()) != 0 || notifier.count() != 0 {
		t.Fatal("high stock product must not be written or notified")
	}
}

func TestResetPrice_Product2Scenario(t *testing.T) {
	store := demoStore()
	engine, notifier := newTestEngine(store)

	out, err := engine.ResetPrice(context.Background(), 2, 25)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNone || out.Message != "already at base price" {
		t.Fatalf("expected no-op 'already at base price', got %s %q", out.Action, out.Message)
	}
	if len(store.Writes()) != 0 || notifier.count() != 0 {
		t.Fatal("no write or event expected")
	}
}

func TestResetDiscountReset_ReturnsToBase(t *testing.T) {
	store := demoStore()
	engine, _ := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.ResetPrice(ctx, 9, 5); err != nil {
		t.Fatal(err)
	}
	if out, err := engine.ApplyDiscount(ctx, 9, 20, 25); err != nil || out.Action != ActionDiscount {
		t.Fatalf("expected discount, got %+v err=%v", out, err)
	}

	// restock, then reset
	p, _ := store.Product(9)
	p.Stock = 80
	store.Put(p)

	out, err := engine.ResetPrice(ctx, 9, 25)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionReset || out.OldPrice != 639.20 || out.NewPrice != 799.0 {
		t.Fatalf("unexpected reset outcome %+v", out)
	}
	p, _ = store.Product(9)
	if p.Price != 799.0 {
		t.Fatalf("expected base price after reset, got %v", p.Price)
	}
}

func TestApplyDiscount_Errors(t *testing.T) {
	store := demoStore()
	engine, _ := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.ApplyDiscount(ctx, 404, 20, 25); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	store.Put(catalog.Product{ID: 77, Name: "Prototype", Price: 10, Stock: 1})
	if _, err := engine.ApplyDiscount(ctx, 77, 20, 25); !errors.Is(err, ErrNoBasePrice) {
		t.Fatalf("expected ErrNoBasePrice, got %v", err)
	}

	for _, percent := range []float64{-1, 100.5} {
		if _, err := engine.ApplyDiscount(ctx, 9, percent, 25); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("percent %v: expected ErrInvalidArgument, got %v", percent, err)
		}
	}
	if _, err := engine.ApplyDiscount(ctx, 9, 20, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(store.Writes()) != 0 {
		t.Fatal("failed calls must not write")
	}
}

func TestApplyDiscount_BackendFailure(t *testing.T) {
	cause := errors.New("catalog: get product 9: request failed: connection refused")
	store := demoStore()
	store.Err = cause
	engine, notifier := newTestEngine(store)

	_, err := engine.ApplyDiscount(context.Background(), 9, 20, 25)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to propagate, got %v", err)
	}
	if notifier.count() != 0 {
		t.Fatal("no notification on failure")
	}
}

func TestApplyDiscount_WriteFailure(t *testing.T) {
	store := demoStore()
	store.UpdateErr = errors.New("status 500: boom")
	engine, notifier := newTestEngine(store)

	if _, err := engine.ApplyDiscount(context.Background(), 9, 20, 25); err == nil {
		t.Fatal("expected write failure to surface")
	}
	if notifier.count() != 0 {
		t.Fatal("no notification when the write fails")
	}
}

func TestApplyDiscount_BookFailure(t *testing.T) {
	cause := errors.New("pricebook down")
	engine := New(Config{Store: demoStore(), Book: failingBook{err: cause}})

	if _, err := engine.ApplyDiscount(context.Background(), 9, 20, 25); !errors.Is(err, cause) {
		t.Fatalf("expected book error, got %v", err)
	}
}

func TestApplyDiscountAll_MutatesEligibleSubset(t *testing.T) {
	store := demoStore()
	store.Put(catalog.Product{ID: 77, Name: "Prototype", Price: 10, Stock: 1})
	engine, notifier := newTestEngine(store)

	batch, err := engine.ApplyDiscountAll(context.Background(), 10, 25)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Action != ActionDiscount {
		t.Fatalf("expected discount, got %s", batch.Action)
	}

	// eligible: 9 (stock 8) and 13 (stock 3); 2 and 5 well stocked; 77 has no base price
	if len(batch.Updated) != 2 || batch.Updated[0].ProductID != 9 || batch.Updated[1].ProductID != 13 {
		t.Fatalf("unexpected updated set %+v", batch.Updated)
	}
	if batch.Updated[0].NewPrice != 719.10 || batch.Updated[1].NewPrice != 53.10 {
		t.Fatalf("unexpected prices %+v", batch.Updated)
	}
	if len(batch.Compliant) != 2 || batch.Compliant[0].ProductID != 2 || batch.Compliant[1].ProductID != 5 {
		t.Fatalf("unexpected compliant set %+v", batch.Compliant)
	}
	if len(batch.Skipped) != 1 || batch.Skipped[0] != 77 {
		t.Fatalf("unexpected skipped %v", batch.Skipped)
	}
	if len(store.Writes()) != 2 || notifier.count() != 2 {
		t.Fatalf("expected 2 writes and 2 notifications, got %d/%d", len(store.Writes()), notifier.count())
	}

	again, err := engine.ApplyDiscountAll(context.Background(), 10, 25)
	if err != nil {
		t.Fatal(err)
	}
	if again.Action != ActionNone || len(again.Updated) != 0 {
		t.Fatalf("second batch must be a no-op, got %+v", again)
	}
	if !strings.Contains(again.Message, "first compliant: product 2") {
		t.Fatalf("expected summary citing product 2, got %q", again.Message)
	}
	if len(store.Writes()) != 2 {
		t.Fatal("second batch must not write")
	}
}

func TestApplyDiscountAll_DivergedPriceIsNotCompliant(t *testing.T) {
	store := catalogtest.New(
		catalog.Product{ID: 13, Name: "USB Hub", Price: 50.0, Stock: 3},
		catalog.Product{ID: 2, Name: "Mouse", Price: 29.0, Stock: 200},
	)
	engine, _ := newTestEngine(store)

	batch, err := engine.ApplyDiscountAll(context.Background(), 10, 25)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Action != ActionNone || len(batch.Updated) != 0 {
		t.Fatalf("expected no-op, got %+v", batch)
	}
	if len(batch.Diverged) != 1 || batch.Diverged[0].ProductID != 13 {
		t.Fatalf("expected product 13 diverged, got %+v", batch.Diverged)
	}
	if len(batch.Compliant) != 1 || batch.Compliant[0].ProductID != 2 {
		t.Fatalf("unexpected compliant set %+v", batch.Compliant)
	}
	if !strings.Contains(batch.Message, "first compliant: product 2") {
		t.Fatalf("expected summary citing product 2, got %q", batch.Message)
	}
	if len(store.Writes()) != 0 {
		t.Fatal("diverged product must not be written")
	}
}

func TestApplyDiscountAll_OnlyDiverged(t *testing.T) {
	store := catalogtest.New(catalog.Product{ID: 13, Name: "USB Hub", Price: 50.0, Stock: 3})
	engine, _ := newTestEngine(store)

	batch, err := engine.ApplyDiscountAll(context.Background(), 10, 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Compliant) != 0 {
		t.Fatalf("diverged product listed as compliant: %+v", batch.Compliant)
	}
	if strings.Contains(batch.Message, "compliant") || !strings.Contains(batch.Message, "diverges from base price for product(s): 13") {
		t.Fatalf("unexpected summary %q", batch.Message)
	}
}

func TestResetPriceAll(t *testing.T) {
	store := demoStore()
	engine, _ := newTestEngine(store)
	ctx := context.Background()

	batch, err := engine.ResetPriceAll(ctx, 25)
	if err != nil {
		t.Fatal(err)
	}
	// only 5 (95.2 vs base 119, stock 40) is eligible
	if batch.Action != ActionReset || len(batch.Updated) != 1 || batch.Updated[0].ProductID != 5 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if batch.Updated[0].OldPrice != 95.2 || batch.Updated[0].NewPrice != 119.0 {
		t.Fatalf("unexpected reset prices %+v", batch.Updated[0])
	}
	if batch.Updated[0].DiscountPercent != nil {
		t.Fatal("reset outcomes carry no discount percent")
	}
}

func TestResetPriceAll_EmptyCatalog(t *testing.T) {
	engine, _ := newTestEngine(catalogtest.New())

	batch, err := engine.ResetPriceAll(context.Background(), 25)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Action != ActionNone || batch.Updated == nil || batch.Compliant == nil {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestSearchLowStock(t *testing.T) {
	engine, _ := newTestEngine(demoStore())

	low, err := engine.SearchLowStock(context.Background(), 8)
	if err != nil {
		t.Fatal(err)
	}
	// stock 8 is not below 8
	if len(low) != 1 || low[0].ID != 13 {
		t.Fatalf("unexpected low stock set %+v", low)
	}

	low, err = engine.SearchLowStock(context.Background(), 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(low) != 2 || low[0].ID != 9 || low[1].ID != 13 {
		t.Fatalf("expected ascending [9 13], got %+v", low)
	}

	low, err = engine.SearchLowStock(context.Background(), 0)
	if err != nil || len(low) != 0 || low == nil {
		t.Fatalf("expected empty non-nil list, got %v err=%v", low, err)
	}
}

func TestEngine_RecordsDecisions(t *testing.T) {
	rec := &countingRecorder{}
	engine := New(Config{Store: demoStore(), Book: pricebook.Defaults(), Recorder: rec})
	ctx := context.Background()

	_, _ = engine.ApplyDiscount(ctx, 9, 20, 25)
	_, _ = engine.ApplyDiscount(ctx, 9, 20, 25)
	_, _ = engine.ResetPrice(ctx, 2, 25)

	if rec.counts["discount/discount"] != 1 || rec.counts["discount/none"] != 1 || rec.counts["reset/none"] != 1 {
		t.Fatalf("unexpected decision counts %v", rec.counts)
	}
}
