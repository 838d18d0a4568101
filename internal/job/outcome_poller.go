package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type OutcomeReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// OutcomePoller periodically resolves open performance records. It runs
// independently of signal evaluation; the repository's one-writer guard
// keeps the two from racing on a record.
type OutcomePoller struct {
	tracer     trace.Tracer
	reconciler OutcomeReconciler
	interval   time.Duration
}

func NewOutcomePoller(tracer trace.Tracer, reconciler OutcomeReconciler, interval time.Duration) *OutcomePoller {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &OutcomePoller{
		tracer:     tracer,
		reconciler: reconciler,
		interval:   interval,
	}
}

// Start blocks until ctx is cancelled.
func (p *OutcomePoller) Start(ctx context.Context) {
	if p.reconciler == nil {
		log.Println("Outcome poller disabled: no reconciler")
		<-ctx.Done()
		return
	}

	log.Println("Outcome poller starting...")
	p.runOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Outcome poller stopped")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *OutcomePoller) runOnce(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "outcome-poller.run-once")
	defer span.End()

	resolved, err := p.reconciler.Reconcile(ctx)
	if err != nil {
		log.Printf("outcome reconciliation error: %v", err)
		return
	}
	if resolved > 0 {
		log.Printf("outcome reconciliation resolved %d records", resolved)
	}
}
