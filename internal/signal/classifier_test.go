package signal

import (
	"testing"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/config"
	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
}

func TestClassifyStrongBuy(t *testing.T) {
	cfg := config.DefaultStrategy()
	c := NewClassifier(cfg, fixedNow)

	snap := strongSnapshot()
	snap.ConfluenceScore = Score(snap, cfg)

	d := c.Classify(snap)
	if d.Type != domain.SignalStrongBuy {
		t.Fatalf("expected strong_buy, got %s (score %d)", d.Type, snap.ConfluenceScore)
	}
	if d.Confidence != cfg.Confidence.StrongCap {
		t.Fatalf("expected confidence capped at %d, got %d", cfg.Confidence.StrongCap, d.Confidence)
	}
	if d.Hash == "" {
		t.Fatal("expected a signal hash")
	}
	if d.Reason == "" {
		t.Fatal("expected a reason string")
	}
}

func TestClassifyStrongBuyVetoes(t *testing.T) {
	cfg := config.DefaultStrategy()
	c := NewClassifier(cfg, fixedNow)

	mutations := map[string]func(*domain.IndicatorSnapshot){
		"bearish divergence": func(s *domain.IndicatorSnapshot) { s.BearishDivergence = true },
		"no bull trend":      func(s *domain.IndicatorSnapshot) { s.Trend = domain.TrendSideways },
		"rsi too high":       func(s *domain.IndicatorSnapshot) { s.RSI = 55 },
		"negative macd":      func(s *domain.IndicatorSnapshot) { s.MACDHistogram = -0.02 },
		"thin volume":        func(s *domain.IndicatorSnapshot) { s.VolumeRatio = 1.1 },
		"far from support":   func(s *domain.IndicatorSnapshot) { s.DistanceFromSupport = 9 },
		"under resistance":   func(s *domain.IndicatorSnapshot) { s.DistanceFromResistance = 3 },
	}

	for name, mutate := range mutations {
		snap := strongSnapshot()
		mutate(&snap)
		snap.ConfluenceScore = Score(snap, cfg)
		// Keep the score above the tier floor so only the vetoed
		// predicate can demote the signal.
		if snap.ConfluenceScore < cfg.StrongBuy.MinScore {
			snap.ConfluenceScore = cfg.StrongBuy.MinScore
		}

		if d := c.Classify(snap); d.Type == domain.SignalStrongBuy {
			t.Fatalf("%s: expected demotion below strong_buy", name)
		}
	}
}

func TestClassifyMediumBuyAcceptsMACDCross(t *testing.T) {
	cfg := config.DefaultStrategy()
	c := NewClassifier(cfg, fixedNow)

	snap := domain.IndicatorSnapshot{
		Symbol:          "MSFT",
		Price:           200,
		RSI:             35,
		MACDHistogram:   -0.01,
		MACDCrossUp:     true,
		Trend:           domain.TrendSideways,
		VolumeRatio:     1.4,
		ConfluenceScore: 62,
	}

	d := c.Classify(snap)
	if d.Type != domain.SignalMediumBuy {
		t.Fatalf("expected medium_buy on a fresh MACD cross, got %s", d.Type)
	}
	want := snap.ConfluenceScore + cfg.Confidence.MediumBonus
	if d.Confidence != want {
		t.Fatalf("expected confidence %d, got %d", want, d.Confidence)
	}
}

func TestClassifyWarningOversold(t *testing.T) {
	c := NewClassifier(config.DefaultStrategy(), fixedNow)

	snap := domain.IndicatorSnapshot{
		Symbol:              "NVDA",
		Price:               90,
		RSI:                 22,
		Trend:               domain.TrendSideways,
		VolumeRatio:         1.0,
		DistanceFromSupport: 2,
		ConfluenceScore:     55,
	}

	d := c.Classify(snap)
	if d.Type != domain.SignalWarning {
		t.Fatalf("expected warning for oversold near support, got %s", d.Type)
	}
}

func TestClassifyNone(t *testing.T) {
	c := NewClassifier(config.DefaultStrategy(), fixedNow)

	snap := domain.IndicatorSnapshot{
		Symbol:          "META",
		Price:           300,
		RSI:             52,
		Trend:           domain.TrendSideways,
		VolumeRatio:     1.0,
		ConfluenceScore: 30,
	}

	if d := c.Classify(snap); d.Type != domain.SignalNone {
		t.Fatalf("expected none, got %s", d.Type)
	}
}

func TestHashHourBucket(t *testing.T) {
	at := time.Date(2026, 3, 9, 14, 5, 0, 0, time.UTC)
	sameHour := at.Add(40 * time.Minute)
	nextHour := at.Add(time.Hour)

	a := Hash("aapl", domain.SignalStrongBuy, 28.2, at)
	b := Hash("AAPL", domain.SignalStrongBuy, 27.8, sameHour)
	if a != b {
		t.Fatal("same symbol, tier, rounded RSI and hour bucket must collide")
	}

	if a == Hash("AAPL", domain.SignalStrongBuy, 28, nextHour) {
		t.Fatal("hour rollover must produce a fresh hash")
	}
	if a == Hash("AAPL", domain.SignalMediumBuy, 28, at) {
		t.Fatal("tier must be part of the hash")
	}
	if a == Hash("MSFT", domain.SignalStrongBuy, 28, at) {
		t.Fatal("symbol must be part of the hash")
	}
	if a == Hash("AAPL", domain.SignalStrongBuy, 31, at) {
		t.Fatal("a materially different RSI must produce a fresh hash")
	}
}

func TestBasicEvaluateFlagsSharpDrop(t *testing.T) {
	cfg := config.DefaultStrategy()
	c := NewClassifier(cfg, fixedNow)

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := []domain.PriceBar{
		{Symbol: "TSLA", Timestamp: base, Close: 100},
		{Symbol: "TSLA", Timestamp: base.Add(24 * time.Hour), Close: 101},
		{Symbol: "TSLA", Timestamp: base.Add(48 * time.Hour), Close: 99},
		{Symbol: "TSLA", Timestamp: base.Add(72 * time.Hour), Close: 95},
		{Symbol: "TSLA", Timestamp: base.Add(96 * time.Hour), Close: 85},
	}

	d := c.BasicEvaluate("tsla", bars)
	if d.Type != domain.SignalWarning {
		t.Fatalf("expected degraded warning on a sharp drop, got %s", d.Type)
	}
	if d.Confidence > cfg.DegradedConfidenceCap {
		t.Fatalf("degraded confidence %d exceeds cap %d", d.Confidence, cfg.DegradedConfidenceCap)
	}
	if d.Type.IsBuy() {
		t.Fatal("degraded evaluation must never produce a buy")
	}
}

func TestBasicEvaluateNewestFirstWindow(t *testing.T) {
	cfg := config.DefaultStrategy()
	c := NewClassifier(cfg, fixedNow)

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	closes := []float64{85, 100, 100, 99, 101, 100}
	bars := make([]domain.PriceBar, 0, len(closes))
	for i, cl := range closes {
		bars = append(bars, domain.PriceBar{
			Symbol:    "NVDA",
			Timestamp: base.Add(time.Duration(len(closes)-1-i) * 24 * time.Hour),
			Close:     cl,
		})
	}

	d := c.BasicEvaluate("NVDA", bars)
	if d.Type != domain.SignalWarning {
		t.Fatalf("expected warning for a 15%% drop in a newest-first window, got %s", d.Type)
	}
	if d.Confidence > cfg.DegradedConfidenceCap {
		t.Fatalf("degraded confidence %d exceeds cap %d", d.Confidence, cfg.DegradedConfidenceCap)
	}

	// A rally back to the window high, newest first, is not a drawdown.
	rallied := make([]domain.PriceBar, 0, len(closes))
	for i, cl := range []float64{100, 101, 99, 100, 100, 85} {
		rallied = append(rallied, domain.PriceBar{
			Symbol:    "NVDA",
			Timestamp: base.Add(time.Duration(len(closes)-1-i) * 24 * time.Hour),
			Close:     cl,
		})
	}
	if d := c.BasicEvaluate("NVDA", rallied); d.Type != domain.SignalNone {
		t.Fatalf("expected none for a recovered newest-first window, got %s", d.Type)
	}
}

func TestBasicEvaluateQuietWindow(t *testing.T) {
	c := NewClassifier(config.DefaultStrategy(), fixedNow)

	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, 0, 8)
	for i := 0; i < 8; i++ {
		bars = append(bars, domain.PriceBar{
			Symbol:    "AMZN",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Close:     100 + float64(i%3),
		})
	}

	if d := c.BasicEvaluate("AMZN", bars); d.Type != domain.SignalNone {
		t.Fatalf("expected none for a quiet short window, got %s", d.Type)
	}

	if d := c.BasicEvaluate("AMZN", bars[:3]); d.Type != domain.SignalNone {
		t.Fatalf("expected none below the degraded minimum, got %s", d.Type)
	}
}
