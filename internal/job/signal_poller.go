package job

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type SymbolEvaluator interface {
	EvaluateSymbol(ctx context.Context, symbol string) (*domain.Signal, error)
}

// SignalPoller periodically evaluates the watchlist. Evaluations run
// with bounded parallelism; fetches are additionally spaced out so the
// provider's rate limit holds even at full concurrency.
type SignalPoller struct {
	tracer     trace.Tracer
	evaluator  SymbolEvaluator
	watchlist  []string
	interval   time.Duration
	maxWorkers int
	fetchDelay time.Duration
}

func NewSignalPoller(
	tracer trace.Tracer,
	evaluator SymbolEvaluator,
	watchlist []string,
	interval time.Duration,
	maxWorkers int,
	fetchDelay time.Duration,
) *SignalPoller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &SignalPoller{
		tracer:     tracer,
		evaluator:  evaluator,
		watchlist:  watchlist,
		interval:   interval,
		maxWorkers: maxWorkers,
		fetchDelay: fetchDelay,
	}
}

// Start blocks until ctx is cancelled.
func (p *SignalPoller) Start(ctx context.Context) {
	if p.evaluator == nil || len(p.watchlist) == 0 {
		log.Println("Signal poller disabled: no evaluator or empty watchlist")
		<-ctx.Done()
		return
	}

	log.Printf("Signal poller starting for %d symbols...", len(p.watchlist))
	p.runBatch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Signal poller stopped")
			return
		case <-ticker.C:
			p.runBatch(ctx)
		}
	}
}

func (p *SignalPoller) runBatch(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "signal-poller.run-batch")
	defer span.End()

	batchID := uuid.NewString()
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	for _, symbol := range p.watchlist {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			sig, err := p.evaluator.EvaluateSymbol(ctx, symbol)
			if err != nil {
				// One symbol's failure never kills the batch.
				log.Printf("batch %s: evaluation error for %s: %v", batchID, symbol, err)
				return
			}
			if sig != nil {
				log.Printf("batch %s: %s signal for %s (confidence %d)", batchID, sig.Type, symbol, sig.Confidence)
			}
		}(symbol)

		if p.fetchDelay > 0 {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case <-time.After(p.fetchDelay):
			}
		}
	}
	wg.Wait()
}
