package repository

import (
	"context"
	"strings"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// BarRepository caches daily bars so re-evaluations and outcome
// reconciliation do not refetch full windows from the provider.
type BarRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBarRepository(pool PgxPool, tracer trace.Tracer) *BarRepository {
	return &BarRepository{pool: pool, tracer: tracer}
}

func (r *BarRepository) UpsertBars(ctx context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "bar-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO bars (symbol, ts, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (symbol, ts) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			strings.ToUpper(b.Symbol), b.Timestamp.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetBars returns the most recent bars for a symbol, newest first.
func (r *BarRepository) GetBars(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.get-bars")
	defer span.End()

	if limit <= 0 {
		limit = 120
	}

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, ts, open, high, low, close, volume
		 FROM bars
		 WHERE symbol = $1
		 ORDER BY ts DESC
		 LIMIT $2`,
		strings.ToUpper(symbol), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp = b.Timestamp.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
