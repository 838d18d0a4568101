package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/config"
	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
	"github.com/federico-84/trading-signal-worker-sub000/internal/indicator"
	"github.com/federico-84/trading-signal-worker-sub000/internal/risk"
	signalengine "github.com/federico-84/trading-signal-worker-sub000/internal/signal"

	"go.opentelemetry.io/otel/trace"
)

const hashReservationTTL = time.Hour

type BarProvider interface {
	FetchHistory(ctx context.Context, symbol string, days int) ([]domain.PriceBar, error)
	FetchLatestPrice(ctx context.Context, symbol string) (float64, error)
}

type BarStore interface {
	UpsertBars(ctx context.Context, bars []domain.PriceBar) error
	GetBars(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error)
}

type SignalStore interface {
	InsertIfAbsent(ctx context.Context, s domain.Signal) (domain.Signal, bool, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	HasRecentSent(ctx context.Context, symbol string, since time.Time) (bool, error)
	CountSentSince(ctx context.Context, symbol string, since time.Time) (int, error)
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error)
}

type PerformanceStore interface {
	Insert(ctx context.Context, rec domain.PerformanceRecord) (domain.PerformanceRecord, error)
}

type HashGate interface {
	Reserve(ctx context.Context, hash string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, hash string) error
}

type AlertNotifier interface {
	NotifySignal(ctx context.Context, s domain.Signal) error
}

// SignalService runs one symbol through the full decision pipeline:
// fetch window, enrich, score, classify under the anti-spam gates,
// attach risk levels and sizing, persist, hand off for delivery.
type SignalService struct {
	tracer      trace.Tracer
	cfg         config.Strategy
	provider    BarProvider
	bars        BarStore
	signals     SignalStore
	performance PerformanceStore
	enricher    *indicator.Enricher
	classifier  *signalengine.Classifier
	riskCalc    *risk.Calculator
	gate        HashGate
	notifier    AlertNotifier
	historyDays int
	now         func() time.Time
}

func NewSignalService(
	tracer trace.Tracer,
	cfg config.Strategy,
	provider BarProvider,
	bars BarStore,
	signals SignalStore,
	performance PerformanceStore,
	gate HashGate,
	notifier AlertNotifier,
	historyDays int,
	now func() time.Time,
) *SignalService {
	if now == nil {
		now = time.Now
	}
	if historyDays <= 0 {
		historyDays = 120
	}
	return &SignalService{
		tracer:      tracer,
		cfg:         cfg,
		provider:    provider,
		bars:        bars,
		signals:     signals,
		performance: performance,
		enricher:    indicator.NewEnricher(cfg.MinBars),
		classifier:  signalengine.NewClassifier(cfg, now),
		riskCalc:    risk.NewCalculator(cfg.Risk),
		gate:        gate,
		notifier:    notifier,
		historyDays: historyDays,
		now:         now,
	}
}

// SetNotifier attaches the delivery collaborator after construction,
// breaking the bot <-> service construction cycle in main.
func (s *SignalService) SetNotifier(n AlertNotifier) { s.notifier = n }

// EvaluateSymbol runs the pipeline for one symbol. A nil signal with nil
// error means no signal fired (or the gates suppressed one).
func (s *SignalService) EvaluateSymbol(ctx context.Context, symbol string) (*domain.Signal, error) {
	ctx, span := s.tracer.Start(ctx, "signal-service.evaluate-symbol")
	defer span.End()

	if s.provider == nil || s.signals == nil {
		return nil, fmt.Errorf("signal service is not fully initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	bars, err := s.loadWindow(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap, err := s.enricher.Enrich(symbol, bars)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientHistory) {
			return s.evaluateDegraded(ctx, symbol, bars)
		}
		return nil, fmt.Errorf("enrich %s: %w", symbol, err)
	}

	snap.ConfluenceScore = signalengine.Score(snap, s.cfg)
	decision := s.classifier.Classify(snap)
	if decision.Type == domain.SignalNone {
		return nil, nil
	}

	return s.finalize(ctx, snap, decision)
}

// loadWindow prefers a fresh provider fetch and falls back to the bar
// cache when the provider is unavailable.
func (s *SignalService) loadWindow(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	bars, err := s.provider.FetchHistory(ctx, symbol, s.historyDays)
	if err != nil {
		if s.bars == nil {
			return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
		}
		cached, cacheErr := s.bars.GetBars(ctx, symbol, s.historyDays)
		if cacheErr != nil || len(cached) == 0 {
			return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
		}
		log.Printf("provider fetch failed for %s, using %d cached bars: %v", symbol, len(cached), err)
		return cached, nil
	}

	if s.bars != nil {
		if err := s.bars.UpsertBars(ctx, bars); err != nil {
			log.Printf("bar cache upsert failed for %s: %v", symbol, err)
		}
	}
	return bars, nil
}

// evaluateDegraded is the short-window fallback. It never produces a buy
// and its confidence is capped well below the full pipeline's.
func (s *SignalService) evaluateDegraded(ctx context.Context, symbol string, bars []domain.PriceBar) (*domain.Signal, error) {
	decision := s.classifier.BasicEvaluate(symbol, bars)
	if decision.Type == domain.SignalNone {
		return nil, nil
	}

	price := 0.0
	latest := time.Time{}
	for _, b := range bars {
		if b.Timestamp.After(latest) {
			latest = b.Timestamp
			price = b.Close
		}
	}

	snap := domain.IndicatorSnapshot{Symbol: symbol, Price: price, Degraded: true}
	return s.finalize(ctx, snap, decision)
}

func (s *SignalService) finalize(ctx context.Context, snap domain.IndicatorSnapshot, decision signalengine.Decision) (*domain.Signal, error) {
	symbol := snap.Symbol
	now := s.now().UTC()

	suppress, err := s.cooldownActive(ctx, symbol, now)
	if err != nil {
		return nil, err
	}
	if suppress {
		return nil, nil
	}

	reserved, err := s.gate.Reserve(ctx, decision.Hash, hashReservationTTL)
	if err != nil {
		return nil, fmt.Errorf("reserve hash for %s: %w", symbol, err)
	}
	if !reserved {
		return nil, nil
	}

	sig := domain.Signal{
		Symbol:     symbol,
		Type:       decision.Type,
		Confidence: decision.Confidence,
		Reason:     decision.Reason,
		EntryPrice: snap.Price,
		SignalHash: decision.Hash,
		CreatedAt:  now,
	}

	if decision.Type.IsBuy() {
		levels, err := s.riskCalc.Levels(snap, decision.Confidence)
		if err != nil {
			s.releaseHash(ctx, decision.Hash)
			if errors.Is(err, risk.ErrInvalidLevels) {
				log.Printf("rejecting %s signal for %s: %v", decision.Type, symbol, err)
				return nil, nil
			}
			return nil, fmt.Errorf("risk levels for %s: %w", symbol, err)
		}

		sizing := s.riskCalc.Size(snap.Price, levels.StopLoss)

		sig.StopLoss = levels.StopLoss
		sig.TakeProfit = levels.TakeProfit
		sig.StopLossPct = levels.StopLossPct
		sig.TakeProfitPct = levels.TakeProfitPct
		sig.RiskRewardRatio = levels.RiskRewardRatio
		sig.SuggestedShares = sizing.Shares
		sig.PositionValue = sizing.PositionValue
		sig.Actionable = sizing.Actionable
		sig.Reason = sig.Reason + "; " + levels.Reasoning
		if !sizing.Actionable {
			log.Printf("%s signal for %s sized to zero shares, flagged non-actionable", decision.Type, symbol)
		}
	}

	persisted, inserted, err := s.signals.InsertIfAbsent(ctx, sig)
	if err != nil {
		s.releaseHash(ctx, decision.Hash)
		return nil, fmt.Errorf("persist signal for %s: %w", symbol, err)
	}
	if !inserted {
		// The hash already reached storage from another evaluation;
		// keep the reservation so the hour bucket stays quiet.
		return nil, nil
	}

	if persisted.Type.IsBuy() && s.performance != nil {
		rec := domain.PerformanceRecord{
			SignalID:             persisted.ID,
			Symbol:               symbol,
			Strategy:             string(persisted.Type),
			PredictedProbability: float64(persisted.Confidence) / 100,
			EntryPrice:           persisted.EntryPrice,
			StopLoss:             persisted.StopLoss,
			TakeProfitPrice:      persisted.TakeProfit,
			CreatedAt:            now,
		}
		if _, err := s.performance.Insert(ctx, rec); err != nil {
			log.Printf("performance record insert failed for %s: %v", symbol, err)
		}
	}

	s.deliver(ctx, &persisted)
	return &persisted, nil
}

func (s *SignalService) cooldownActive(ctx context.Context, symbol string, now time.Time) (bool, error) {
	recent, err := s.signals.HasRecentSent(ctx, symbol, now.Add(-s.cfg.CooldownWindow))
	if err != nil {
		return false, fmt.Errorf("cooldown check for %s: %w", symbol, err)
	}
	if recent {
		log.Printf("cooldown active for %s, suppressing signal", symbol)
		return true, nil
	}

	count, err := s.signals.CountSentSince(ctx, symbol, now.Add(-24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("daily cap check for %s: %w", symbol, err)
	}
	if count >= s.cfg.MaxSignalsPerDay {
		log.Printf("daily signal cap reached for %s (%d), suppressing", symbol, count)
		return true, nil
	}
	return false, nil
}

func (s *SignalService) deliver(ctx context.Context, sig *domain.Signal) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySignal(ctx, *sig); err != nil {
		log.Printf("alert delivery failed for %s: %v", sig.Symbol, err)
		return
	}

	sentAt := s.now().UTC()
	if err := s.signals.MarkSent(ctx, sig.ID, sentAt); err != nil {
		log.Printf("mark sent failed for signal %d: %v", sig.ID, err)
		return
	}
	sig.Sent = true
	sig.SentAt = &sentAt
}

func (s *SignalService) releaseHash(ctx context.Context, hash string) {
	if err := s.gate.Release(ctx, hash); err != nil {
		log.Printf("hash release failed: %v", err)
	}
}

func (s *SignalService) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	_, span := s.tracer.Start(ctx, "signal-service.list-signals")
	defer span.End()

	if s.signals == nil {
		return nil, fmt.Errorf("signal service is not fully initialized")
	}

	filter.Symbol = strings.ToUpper(strings.TrimSpace(filter.Symbol))
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, fmt.Errorf("invalid signal type: %s", filter.Type)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	return s.signals.ListSignals(ctx, filter)
}
