package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type reconcileStoreStub struct {
	open      []domain.PerformanceRecord
	completed map[int64]domain.Outcome
	returns   map[int64]float64
	holding   map[int64]int
	lostRace  map[int64]bool
}

func newReconcileStore(open ...domain.PerformanceRecord) *reconcileStoreStub {
	return &reconcileStoreStub{
		open:      open,
		completed: make(map[int64]domain.Outcome),
		returns:   make(map[int64]float64),
		holding:   make(map[int64]int),
		lostRace:  make(map[int64]bool),
	}
}

func (s *reconcileStoreStub) ListOpen(_ context.Context, _ int) ([]domain.PerformanceRecord, error) {
	return s.open, nil
}

func (s *reconcileStoreStub) Complete(_ context.Context, id int64, outcome domain.Outcome, actualReturn float64, holdingDays int, _ time.Time) (bool, error) {
	if s.lostRace[id] {
		return false, nil
	}
	s.completed[id] = outcome
	s.returns[id] = actualReturn
	s.holding[id] = holdingDays
	return true, nil
}

func (s *reconcileStoreStub) List(_ context.Context, _ domain.PerformanceFilter) ([]domain.PerformanceRecord, error) {
	return s.open, nil
}

func (s *reconcileStoreStub) StrategyStats(_ context.Context) ([]domain.StrategyStats, error) {
	return nil, nil
}

type priceSourceStub struct {
	prices map[string]float64
	errs   map[string]error
}

func (p *priceSourceStub) FetchLatestPrice(_ context.Context, symbol string) (float64, error) {
	if err := p.errs[symbol]; err != nil {
		return 0, err
	}
	return p.prices[symbol], nil
}

func openRecord(id int64, symbol string, entry, stop, tp float64, age time.Duration) domain.PerformanceRecord {
	return domain.PerformanceRecord{
		ID:              id,
		SignalID:        id,
		Symbol:          symbol,
		Strategy:        string(domain.SignalStrongBuy),
		EntryPrice:      entry,
		StopLoss:        stop,
		TakeProfitPrice: tp,
		CreatedAt:       testNow().Add(-age),
	}
}

func newOutcomeFixture(store *reconcileStoreStub, prices *priceSourceStub) *OutcomeService {
	return NewOutcomeService(
		trace.NewNoopTracerProvider().Tracer("outcome-service-test"),
		store,
		prices,
		10,
		testNow,
	)
}

func TestReconcileHitAtBoundary(t *testing.T) {
	store := newReconcileStore(openRecord(1, "AAPL", 100, 95, 110, 48*time.Hour))
	prices := &priceSourceStub{prices: map[string]float64{"AAPL": 110}}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved record, got %d", resolved)
	}
	if store.completed[1] != domain.OutcomeHit {
		t.Fatalf("expected hit, got %s", store.completed[1])
	}
	// Return settles at the take-profit boundary, not the live price.
	if math.Abs(store.returns[1]-10) > 1e-9 {
		t.Fatalf("expected +10%% return, got %.4f", store.returns[1])
	}
	if store.holding[1] != 2 {
		t.Fatalf("expected 2 holding days, got %d", store.holding[1])
	}
}

func TestReconcileStoppedOutUsesStopBoundary(t *testing.T) {
	store := newReconcileStore(openRecord(1, "MSFT", 200, 190, 220, 24*time.Hour))
	prices := &priceSourceStub{prices: map[string]float64{"MSFT": 185}}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved record, got %d", resolved)
	}
	if store.completed[1] != domain.OutcomeStoppedOut {
		t.Fatalf("expected stopped_out, got %s", store.completed[1])
	}
	// Even though the live price overshot to 185, the recorded loss is
	// the stop distance.
	if math.Abs(store.returns[1]-(-5)) > 1e-9 {
		t.Fatalf("expected -5%% return, got %.4f", store.returns[1])
	}
}

func TestReconcileExpiresAtLivePrice(t *testing.T) {
	store := newReconcileStore(openRecord(1, "NVDA", 100, 90, 120, 11*24*time.Hour))
	prices := &priceSourceStub{prices: map[string]float64{"NVDA": 103}}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved record, got %d", resolved)
	}
	if store.completed[1] != domain.OutcomeExpired {
		t.Fatalf("expected expired, got %s", store.completed[1])
	}
	if math.Abs(store.returns[1]-3) > 1e-9 {
		t.Fatalf("expected +3%% return at the live price, got %.4f", store.returns[1])
	}
}

func TestReconcileLeavesYoungRecordsOpen(t *testing.T) {
	store := newReconcileStore(openRecord(1, "AMZN", 100, 90, 120, 24*time.Hour))
	prices := &priceSourceStub{prices: map[string]float64{"AMZN": 105}}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 0 {
		t.Fatalf("expected the record to stay open, resolved %d", resolved)
	}
	if len(store.completed) != 0 {
		t.Fatal("no completion should have been written")
	}
}

func TestReconcileSkipsLostRace(t *testing.T) {
	store := newReconcileStore(openRecord(1, "AAPL", 100, 95, 110, 48*time.Hour))
	store.lostRace[1] = true
	prices := &priceSourceStub{prices: map[string]float64{"AAPL": 112}}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 0 {
		t.Fatalf("a lost outcome race must not count as resolved, got %d", resolved)
	}
}

func TestReconcileIsolatesPriceFailures(t *testing.T) {
	store := newReconcileStore(
		openRecord(1, "AAPL", 100, 95, 110, 48*time.Hour),
		openRecord(2, "MSFT", 200, 190, 220, 48*time.Hour),
	)
	prices := &priceSourceStub{
		prices: map[string]float64{"MSFT": 225},
		errs:   map[string]error{"AAPL": errors.New("quota exceeded")},
	}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("one symbol's failure must not fail the batch: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected the healthy record to resolve, got %d", resolved)
	}
	if store.completed[2] != domain.OutcomeHit {
		t.Fatalf("expected record 2 hit, got %s", store.completed[2])
	}
	if _, done := store.completed[1]; done {
		t.Fatal("the failed-fetch record must stay open")
	}
}

func TestReconcileTakeProfitBeatsExpiry(t *testing.T) {
	// Old record whose live price is past the target: the hit outcome
	// wins over forced expiry.
	store := newReconcileStore(openRecord(1, "META", 100, 90, 120, 12*24*time.Hour))
	prices := &priceSourceStub{prices: map[string]float64{"META": 125}}

	resolved, err := newOutcomeFixture(store, prices).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved record, got %d", resolved)
	}
	if store.completed[1] != domain.OutcomeHit {
		t.Fatalf("expected hit to take precedence over expiry, got %s", store.completed[1])
	}
}
