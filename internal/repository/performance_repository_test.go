package repository

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type performancePoolStub struct {
	nextID    int64
	completed map[int64]bool
	queryRows [][]any

	lastSQL  string
	lastArgs []any
}

func newPerformancePool() *performancePoolStub {
	return &performancePoolStub{nextID: 1, completed: make(map[int64]bool)}
}

func (s *performancePoolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.lastSQL = sql
	s.lastArgs = args

	id := args[0].(int64)
	if s.completed[id] {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	s.completed[id] = true
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *performancePoolStub) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults {
	return nil
}

func (s *performancePoolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.lastSQL = sql
	s.lastArgs = args
	return &rowsStub{rows: s.queryRows}, nil
}

func (s *performancePoolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.lastSQL = sql
	s.lastArgs = args
	id := s.nextID
	s.nextID++
	return rowStub{values: []any{id}}
}

func TestPerformanceInsert(t *testing.T) {
	pool := newPerformancePool()
	repo := NewPerformanceRepository(pool, trace.NewNoopTracerProvider().Tracer("performance-test"))

	rec, err := repo.Insert(context.Background(), domain.PerformanceRecord{
		SignalID:             9,
		Symbol:               "aapl",
		Strategy:             "strong_buy",
		PredictedProbability: 0.88,
		EntryPrice:           100,
		StopLoss:             95,
		TakeProfitPrice:      110,
		CreatedAt:            time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != 1 {
		t.Fatalf("expected assigned id 1, got %d", rec.ID)
	}
	if pool.lastArgs[1].(string) != "AAPL" {
		t.Fatalf("expected uppercased symbol, got %v", pool.lastArgs[1])
	}
}

func TestCompleteWritesOnce(t *testing.T) {
	pool := newPerformancePool()
	repo := NewPerformanceRepository(pool, trace.NewNoopTracerProvider().Tracer("performance-test"))
	ctx := context.Background()
	at := time.Date(2026, 3, 19, 14, 0, 0, 0, time.UTC)

	done, err := repo.Complete(ctx, 4, domain.OutcomeHit, 10, 2, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected the first completion to win")
	}
	if !strings.Contains(pool.lastSQL, "outcome IS NULL") {
		t.Fatalf("completion must carry the one-writer guard: %s", pool.lastSQL)
	}

	done, err = repo.Complete(ctx, 4, domain.OutcomeExpired, 0, 5, at)
	if err != nil {
		t.Fatalf("a lost race is not an error: %v", err)
	}
	if done {
		t.Fatal("expected the second completion to lose the race")
	}
}

func TestListOpenQueryShape(t *testing.T) {
	pool := newPerformancePool()
	pool.queryRows = [][]any{{
		int64(1), int64(9), "AAPL", "strong_buy", 0.88,
		100.0, 95.0, 110.0, time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC),
	}}
	repo := NewPerformanceRepository(pool, trace.NewNoopTracerProvider().Tracer("performance-test"))

	records, err := repo.ListOpen(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.lastSQL, "WHERE outcome IS NULL") {
		t.Fatalf("open records filter missing: %s", pool.lastSQL)
	}
	if !strings.Contains(pool.lastSQL, "ORDER BY created_at ASC") {
		t.Fatalf("oldest-first ordering missing: %s", pool.lastSQL)
	}
	if len(records) != 1 || !records[0].Open() {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestListScansOutcome(t *testing.T) {
	outcome := "hit"
	completedAt := time.Date(2026, 3, 19, 14, 0, 0, 0, time.UTC)
	pool := newPerformancePool()
	pool.queryRows = [][]any{{
		int64(1), int64(9), "AAPL", "strong_buy", 0.88,
		100.0, 95.0, 110.0, &outcome, 10.0, 2,
		time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC), &completedAt,
	}}
	repo := NewPerformanceRepository(pool, trace.NewNoopTracerProvider().Tracer("performance-test"))

	records, err := repo.List(context.Background(), domain.PerformanceFilter{Symbol: "aapl", OpenOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.lastSQL, "symbol = $1") || !strings.Contains(pool.lastSQL, "AND outcome IS NULL") {
		t.Fatalf("unexpected query shape: %s", pool.lastSQL)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Outcome == nil || *rec.Outcome != domain.OutcomeHit {
		t.Fatalf("unexpected outcome: %+v", rec.Outcome)
	}
	if rec.CompletedAt == nil || !rec.CompletedAt.Equal(completedAt) {
		t.Fatalf("unexpected completion time: %+v", rec.CompletedAt)
	}
}

func TestStrategyStatsComputesSuccessRate(t *testing.T) {
	pool := newPerformancePool()
	pool.queryRows = [][]any{
		{"strong_buy", "high", 4, 3, 1, 0, 5.5, 3.0},
		{"medium_buy", "low", 2, 0, 1, 1, -2.0, 6.5},
	}
	repo := NewPerformanceRepository(pool, trace.NewNoopTracerProvider().Tracer("performance-test"))

	stats, err := repo.StrategyStats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(stats))
	}
	if math.Abs(stats[0].SuccessRate-0.75) > 1e-9 {
		t.Fatalf("expected success rate 0.75, got %.4f", stats[0].SuccessRate)
	}
	if stats[1].SuccessRate != 0 {
		t.Fatalf("expected zero success rate with no hits, got %.4f", stats[1].SuccessRate)
	}
}
