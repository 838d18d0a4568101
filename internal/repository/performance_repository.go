package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type PerformanceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPerformanceRepository(pool PgxPool, tracer trace.Tracer) *PerformanceRepository {
	return &PerformanceRepository{pool: pool, tracer: tracer}
}

func (r *PerformanceRepository) Insert(ctx context.Context, rec domain.PerformanceRecord) (domain.PerformanceRecord, error) {
	_, span := r.tracer.Start(ctx, "performance-repo.insert")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO performance_records (
			signal_id, symbol, strategy, predicted_probability,
			entry_price, stop_loss, take_profit_price, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		rec.SignalID,
		strings.ToUpper(rec.Symbol),
		rec.Strategy,
		rec.PredictedProbability,
		rec.EntryPrice,
		rec.StopLoss,
		rec.TakeProfitPrice,
		rec.CreatedAt.UTC(),
	).Scan(&rec.ID)
	if err != nil {
		return domain.PerformanceRecord{}, err
	}
	return rec, nil
}

// ListOpen returns records the outcome tracker still has to resolve.
func (r *PerformanceRepository) ListOpen(ctx context.Context, limit int) ([]domain.PerformanceRecord, error) {
	_, span := r.tracer.Start(ctx, "performance-repo.list-open")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, signal_id, symbol, strategy, predicted_probability,
			entry_price, stop_loss, take_profit_price, created_at
		 FROM performance_records
		 WHERE outcome IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.PerformanceRecord, 0, limit)
	for rows.Next() {
		var rec domain.PerformanceRecord
		var createdAt time.Time
		if err := rows.Scan(
			&rec.ID,
			&rec.SignalID,
			&rec.Symbol,
			&rec.Strategy,
			&rec.PredictedProbability,
			&rec.EntryPrice,
			&rec.StopLoss,
			&rec.TakeProfitPrice,
			&createdAt,
		); err != nil {
			return nil, err
		}
		rec.CreatedAt = createdAt.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Complete writes the outcome exactly once. The outcome IS NULL guard
// makes concurrent reconcilers race-safe: only one writer wins, the rest
// see completed=false.
func (r *PerformanceRepository) Complete(
	ctx context.Context,
	id int64,
	outcome domain.Outcome,
	actualReturn float64,
	holdingDays int,
	completedAt time.Time,
) (bool, error) {
	_, span := r.tracer.Start(ctx, "performance-repo.complete")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE performance_records
		 SET outcome = $2, actual_return = $3, holding_period_days = $4, completed_at = $5
		 WHERE id = $1 AND outcome IS NULL`,
		id, string(outcome), actualReturn, holdingDays, completedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PerformanceRepository) List(ctx context.Context, filter domain.PerformanceFilter) ([]domain.PerformanceRecord, error) {
	_, span := r.tracer.Start(ctx, "performance-repo.list")
	defer span.End()

	args := make([]any, 0, 3)
	var sb strings.Builder
	sb.WriteString(`SELECT id, signal_id, symbol, strategy, predicted_probability,
		entry_price, stop_loss, take_profit_price, outcome, actual_return,
		holding_period_days, created_at, completed_at
		FROM performance_records WHERE 1=1`)

	if filter.Symbol != "" {
		args = append(args, strings.ToUpper(filter.Symbol))
		sb.WriteString(fmt.Sprintf(" AND symbol = $%d", len(args)))
	}
	if filter.Strategy != "" {
		args = append(args, filter.Strategy)
		sb.WriteString(fmt.Sprintf(" AND strategy = $%d", len(args)))
	}
	if filter.OpenOnly {
		sb.WriteString(" AND outcome IS NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.PerformanceRecord, 0, limit)
	for rows.Next() {
		var rec domain.PerformanceRecord
		var outcome *string
		var createdAt time.Time
		var completedAt *time.Time
		if err := rows.Scan(
			&rec.ID,
			&rec.SignalID,
			&rec.Symbol,
			&rec.Strategy,
			&rec.PredictedProbability,
			&rec.EntryPrice,
			&rec.StopLoss,
			&rec.TakeProfitPrice,
			&outcome,
			&rec.ActualReturn,
			&rec.HoldingPeriodDays,
			&createdAt,
			&completedAt,
		); err != nil {
			return nil, err
		}
		if outcome != nil {
			o := domain.Outcome(*outcome)
			rec.Outcome = &o
		}
		rec.CreatedAt = createdAt.UTC()
		if completedAt != nil {
			utc := completedAt.UTC()
			rec.CompletedAt = &utc
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StrategyStats aggregates completed records by strategy and confidence
// bucket. Pure read side; nothing in the decision loop depends on it.
func (r *PerformanceRepository) StrategyStats(ctx context.Context) ([]domain.StrategyStats, error) {
	_, span := r.tracer.Start(ctx, "performance-repo.strategy-stats")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT strategy,
			CASE
				WHEN predicted_probability >= 0.8 THEN 'high'
				WHEN predicted_probability >= 0.6 THEN 'medium'
				ELSE 'low'
			END AS confidence_bucket,
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'hit'),
			COUNT(*) FILTER (WHERE outcome = 'stopped_out'),
			COUNT(*) FILTER (WHERE outcome = 'expired'),
			AVG(actual_return),
			AVG(holding_period_days)
		 FROM performance_records
		 WHERE outcome IS NOT NULL
		 GROUP BY strategy, confidence_bucket
		 ORDER BY strategy, confidence_bucket`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.StrategyStats
	for rows.Next() {
		var s domain.StrategyStats
		if err := rows.Scan(
			&s.Strategy,
			&s.ConfidenceBucket,
			&s.Total,
			&s.Hits,
			&s.StoppedOut,
			&s.Expired,
			&s.AvgReturn,
			&s.AvgHoldingDays,
		); err != nil {
			return nil, err
		}
		if s.Total > 0 {
			s.SuccessRate = float64(s.Hits) / float64(s.Total)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
