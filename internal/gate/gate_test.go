package gate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testGate(t *testing.T) (*DuplicateGate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestReserveOnceWins(t *testing.T) {
	g, _ := testGate(t)
	ctx := context.Background()

	ok, err := g.Reserve(ctx, "abc123", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("first reservation must succeed")
	}

	ok, err = g.Reserve(ctx, "abc123", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("second reservation of the same hash must lose")
	}

	ok, err = g.Reserve(ctx, "def456", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("a distinct hash must reserve independently")
	}
}

func TestReleaseFreesHash(t *testing.T) {
	g, _ := testGate(t)
	ctx := context.Background()

	if ok, _ := g.Reserve(ctx, "abc123", time.Hour); !ok {
		t.Fatal("first reservation must succeed")
	}
	if err := g.Release(ctx, "abc123"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if ok, _ := g.Reserve(ctx, "abc123", time.Hour); !ok {
		t.Fatal("released hash must be reservable again")
	}
}

func TestReservationExpires(t *testing.T) {
	g, mr := testGate(t)
	ctx := context.Background()

	if ok, _ := g.Reserve(ctx, "abc123", time.Minute); !ok {
		t.Fatal("first reservation must succeed")
	}

	mr.FastForward(2 * time.Minute)

	if ok, _ := g.Reserve(ctx, "abc123", time.Minute); !ok {
		t.Fatal("expired reservation must be reservable again")
	}
}

func TestNilClientIsOpen(t *testing.T) {
	g := New(nil)
	ctx := context.Background()

	ok, err := g.Reserve(ctx, "abc123", time.Hour)
	if err != nil || !ok {
		t.Fatalf("nil-client gate must stay open: ok=%v err=%v", ok, err)
	}
	if err := g.Release(ctx, "abc123"); err != nil {
		t.Fatalf("nil-client release must be a no-op: %v", err)
	}
}
