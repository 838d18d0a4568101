package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

// InsertIfAbsent persists a signal unless its idempotency hash already
// exists. The second return reports whether this call inserted the row.
func (r *SignalRepository) InsertIfAbsent(ctx context.Context, s domain.Signal) (domain.Signal, bool, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.insert-if-absent")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO signals (
			symbol, type, confidence, reason, entry_price, stop_loss, take_profit,
			stop_loss_pct, take_profit_pct, risk_reward_ratio, suggested_shares,
			position_value, actionable, signal_hash, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (signal_hash) DO NOTHING
		 RETURNING id`,
		s.Symbol,
		string(s.Type),
		int16(s.Confidence),
		s.Reason,
		s.EntryPrice,
		s.StopLoss,
		s.TakeProfit,
		s.StopLossPct,
		s.TakeProfitPct,
		s.RiskRewardRatio,
		s.SuggestedShares,
		s.PositionValue,
		s.Actionable,
		s.SignalHash,
		s.CreatedAt.UTC(),
	).Scan(&s.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, false, nil
		}
		return domain.Signal{}, false, err
	}
	return s, true, nil
}

func (r *SignalRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, span := r.tracer.Start(ctx, "signal-repo.mark-sent")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE signals SET sent = TRUE, sent_at = $2 WHERE id = $1`,
		id, at.UTC(),
	)
	return err
}

// HasRecentSent answers the cooldown gate: is there a delivered signal
// for this symbol newer than the cutoff.
func (r *SignalRepository) HasRecentSent(ctx context.Context, symbol string, since time.Time) (bool, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.has-recent-sent")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM signals
			WHERE symbol = $1 AND sent = TRUE AND created_at >= $2
		 )`,
		strings.ToUpper(symbol), since.UTC(),
	).Scan(&exists)
	return exists, err
}

// CountSentSince backs the daily anti-spam cap.
func (r *SignalRepository) CountSentSince(ctx context.Context, symbol string, since time.Time) (int, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.count-sent-since")
	defer span.End()

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signals
		 WHERE symbol = $1 AND sent = TRUE AND created_at >= $2`,
		strings.ToUpper(symbol), since.UTC(),
	).Scan(&count)
	return count, err
}

func (r *SignalRepository) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.list-signals")
	defer span.End()

	args := make([]any, 0, 4)
	var sb strings.Builder
	sb.WriteString(`SELECT id, symbol, type, confidence, reason, entry_price, stop_loss,
		take_profit, stop_loss_pct, take_profit_pct, risk_reward_ratio,
		suggested_shares, position_value, actionable, signal_hash, created_at, sent, sent_at
		FROM signals WHERE 1=1`)

	if filter.Symbol != "" {
		args = append(args, strings.ToUpper(filter.Symbol))
		sb.WriteString(fmt.Sprintf(" AND symbol = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		sb.WriteString(fmt.Sprintf(" AND type = $%d", len(args)))
	}
	if filter.MinConf > 0 {
		args = append(args, int16(filter.MinConf))
		sb.WriteString(fmt.Sprintf(" AND confidence >= $%d", len(args)))
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

	signals := make([]domain.Signal, 0, limit)
	for rows.Next() {
		var s domain.Signal
		var sigType string
		var confidence int16
		var createdAt time.Time
		var sentAt *time.Time

		if err := rows.Scan(
			&s.ID,
			&s.Symbol,
			&sigType,
			&confidence,
			&s.Reason,
			&s.EntryPrice,
			&s.StopLoss,
			&s.TakeProfit,
			&s.StopLossPct,
			&s.TakeProfitPct,
			&s.RiskRewardRatio,
			&s.SuggestedShares,
			&s.PositionValue,
			&s.Actionable,
			&s.SignalHash,
			&createdAt,
			&s.Sent,
			&sentAt,
		); err != nil {
			return nil, err
		}
		s.Type = domain.SignalType(sigType)
		s.Confidence = int(confidence)
		s.CreatedAt = createdAt.UTC()
		if sentAt != nil {
			utc := sentAt.UTC()
			s.SentAt = &utc
		}
		signals = append(signals, s)
	}

	return signals, rows.Err()
}
