package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type PerformanceReconcileStore interface {
	ListOpen(ctx context.Context, limit int) ([]domain.PerformanceRecord, error)
	Complete(ctx context.Context, id int64, outcome domain.Outcome, actualReturn float64, holdingDays int, completedAt time.Time) (bool, error)
	List(ctx context.Context, filter domain.PerformanceFilter) ([]domain.PerformanceRecord, error)
	StrategyStats(ctx context.Context) ([]domain.StrategyStats, error)
}

type PriceSource interface {
	FetchLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// OutcomeService reconciles open performance records against live
// prices. Reconciliation, not simulation: each record resolves at most
// once, and returns for hit/stop come from the boundary price the level
// defined, not from wherever the live price happens to be.
type OutcomeService struct {
	tracer             trace.Tracer
	store              PerformanceReconcileStore
	prices             PriceSource
	trackingWindowDays int
	now                func() time.Time
}

func NewOutcomeService(
	tracer trace.Tracer,
	store PerformanceReconcileStore,
	prices PriceSource,
	trackingWindowDays int,
	now func() time.Time,
) *OutcomeService {
	if now == nil {
		now = time.Now
	}
	if trackingWindowDays <= 0 {
		trackingWindowDays = 10
	}
	return &OutcomeService{
		tracer:             tracer,
		store:              store,
		prices:             prices,
		trackingWindowDays: trackingWindowDays,
		now:                now,
	}
}

// Reconcile classifies every open record and returns how many resolved.
// A failed price fetch skips that record and the batch continues.
func (s *OutcomeService) Reconcile(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "outcome-service.reconcile")
	defer span.End()

	if s.store == nil || s.prices == nil {
		return 0, fmt.Errorf("outcome service is not fully initialized")
	}

	records, err := s.store.ListOpen(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list open records: %w", err)
	}

	resolved := 0
	for _, rec := range records {
		price, err := s.prices.FetchLatestPrice(ctx, rec.Symbol)
		if err != nil {
			log.Printf("price fetch failed for %s during reconciliation: %v", rec.Symbol, err)
			continue
		}

		outcome, actualReturn, ok := s.classify(rec, price)
		if !ok {
			continue
		}

		now := s.now().UTC()
		holdingDays := int(now.Sub(rec.CreatedAt).Hours() / 24)
		completed, err := s.store.Complete(ctx, rec.ID, outcome, actualReturn, holdingDays, now)
		if err != nil {
			log.Printf("complete failed for record %d: %v", rec.ID, err)
			continue
		}
		if !completed {
			// Another reconciler won the outcome IS NULL race.
			continue
		}
		resolved++
	}
	return resolved, nil
}

// classify applies the outcome rules in priority order. Returns false
// while the record should stay open.
func (s *OutcomeService) classify(rec domain.PerformanceRecord, price float64) (domain.Outcome, float64, bool) {
	entry := rec.EntryPrice
	if entry <= 0 {
		return "", 0, false
	}

	switch {
	case price >= rec.TakeProfitPrice && rec.TakeProfitPrice > 0:
		return domain.OutcomeHit, (rec.TakeProfitPrice - entry) / entry * 100, true
	case price <= rec.StopLoss && rec.StopLoss > 0:
		return domain.OutcomeStoppedOut, (rec.StopLoss - entry) / entry * 100, true
	case s.now().UTC().Sub(rec.CreatedAt) > time.Duration(s.trackingWindowDays)*24*time.Hour:
		// Forced expiry settles at the live price.
		return domain.OutcomeExpired, (price - entry) / entry * 100, true
	default:
		return "", 0, false
	}
}

func (s *OutcomeService) ListRecords(ctx context.Context, filter domain.PerformanceFilter) ([]domain.PerformanceRecord, error) {
	_, span := s.tracer.Start(ctx, "outcome-service.list-records")
	defer span.End()

	if s.store == nil {
		return nil, fmt.Errorf("outcome service is not fully initialized")
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.store.List(ctx, filter)
}

func (s *OutcomeService) Stats(ctx context.Context) ([]domain.StrategyStats, error) {
	_, span := s.tracer.Start(ctx, "outcome-service.stats")
	defer span.End()

	if s.store == nil {
		return nil, fmt.Errorf("outcome service is not fully initialized")
	}
	return s.store.StrategyStats(ctx)
}
