package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type evaluatorStub struct {
	mu      sync.Mutex
	symbols []string
	errFor  map[string]error
}

func (e *evaluatorStub) EvaluateSymbol(_ context.Context, symbol string) (*domain.Signal, error) {
	e.mu.Lock()
	e.symbols = append(e.symbols, symbol)
	e.mu.Unlock()
	if err := e.errFor[symbol]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *evaluatorStub) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.symbols...)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestSignalPollerEvaluatesWatchlist(t *testing.T) {
	t.Parallel()

	stub := &evaluatorStub{}
	poller := NewSignalPoller(
		trace.NewNoopTracerProvider().Tracer("test"),
		stub,
		[]string{"AAPL", "MSFT", "NVDA"},
		time.Hour,
		2,
		0,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool { return len(stub.seen()) == 3 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signal poller did not stop")
	}
}

func TestSignalPollerSurvivesSymbolFailure(t *testing.T) {
	t.Parallel()

	stub := &evaluatorStub{errFor: map[string]error{"MSFT": errors.New("provider down")}}
	poller := NewSignalPoller(
		trace.NewNoopTracerProvider().Tracer("test"),
		stub,
		[]string{"AAPL", "MSFT", "NVDA"},
		time.Hour,
		1,
		0,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go poller.Start(ctx)

	// The failing symbol must not stop the rest of the batch.
	eventually(t, func() bool { return len(stub.seen()) == 3 })
	cancel()
}

func TestSignalPollerDisabledWithoutWatchlist(t *testing.T) {
	t.Parallel()

	poller := NewSignalPoller(
		trace.NewNoopTracerProvider().Tracer("test"),
		&evaluatorStub{},
		nil,
		time.Hour,
		1,
		0,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disabled poller did not stop on cancel")
	}
}
