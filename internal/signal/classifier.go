package signal

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/config"
	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

// Decision is the classifier verdict before risk levels are attached.
type Decision struct {
	Type       domain.SignalType
	Confidence int
	Reason     string
	Hash       string
}

// Classifier maps a scored snapshot to a signal tier. Predicates are
// evaluated in strictness order, first match wins. The cooldown gate is
// the caller's job; classification itself is pure.
type Classifier struct {
	cfg config.Strategy
	now func() time.Time
}

func NewClassifier(cfg config.Strategy, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{cfg: cfg, now: now}
}

func (c *Classifier) Classify(snap domain.IndicatorSnapshot) Decision {
	if d, ok := c.strongBuy(snap); ok {
		return d
	}
	if d, ok := c.mediumBuy(snap); ok {
		return d
	}
	if d, ok := c.warning(snap); ok {
		return d
	}
	return Decision{Type: domain.SignalNone}
}

func (c *Classifier) strongBuy(snap domain.IndicatorSnapshot) (Decision, bool) {
	r := c.cfg.StrongBuy
	if snap.ConfluenceScore < r.MinScore {
		return Decision{}, false
	}
	if r.RequireBullTrend && snap.Trend != domain.TrendBullish {
		return Decision{}, false
	}
	if snap.RSI < r.RSIMin || snap.RSI > r.RSIMax {
		return Decision{}, false
	}
	if r.RequireMACD && snap.MACDHistogram <= 0 {
		return Decision{}, false
	}
	if snap.VolumeRatio <= r.MinVolumeRatio {
		return Decision{}, false
	}
	if r.MaxSupportDist > 0 && snap.DistanceFromSupport > r.MaxSupportDist {
		return Decision{}, false
	}
	if r.MinResistanceDist > 0 && snap.DistanceFromResistance <= r.MinResistanceDist {
		return Decision{}, false
	}
	if r.ForbidBearishDiv && snap.BearishDivergence {
		return Decision{}, false
	}

	reason := fmt.Sprintf(
		"strong buy: score %d, %s trend, RSI %.1f, MACD hist %.3f, volume %.2fx, %.1f%% above support, %.1f%% below resistance",
		snap.ConfluenceScore, snap.Trend, snap.RSI, snap.MACDHistogram,
		snap.VolumeRatio, snap.DistanceFromSupport, snap.DistanceFromResistance,
	)
	conf := confidence(snap.ConfluenceScore, c.cfg.Confidence.StrongBonus, c.cfg.Confidence.StrongCap)
	return c.decision(snap, domain.SignalStrongBuy, conf, reason), true
}

func (c *Classifier) mediumBuy(snap domain.IndicatorSnapshot) (Decision, bool) {
	r := c.cfg.MediumBuy
	if snap.ConfluenceScore < r.MinScore {
		return Decision{}, false
	}
	if r.ForbidBearTrend && snap.Trend == domain.TrendBearish {
		return Decision{}, false
	}
	if snap.RSI < r.RSIMin || snap.RSI > r.RSIMax {
		return Decision{}, false
	}
	macdOK := snap.MACDHistogram > 0 || (r.AllowMACDCross && snap.MACDCrossUp)
	if r.RequireMACD && !macdOK {
		return Decision{}, false
	}
	if snap.VolumeRatio <= r.MinVolumeRatio {
		return Decision{}, false
	}

	reason := fmt.Sprintf(
		"medium buy: score %d, %s trend, RSI %.1f, volume %.2fx",
		snap.ConfluenceScore, snap.Trend, snap.RSI, snap.VolumeRatio,
	)
	conf := confidence(snap.ConfluenceScore, c.cfg.Confidence.MediumBonus, c.cfg.Confidence.MediumCap)
	return c.decision(snap, domain.SignalMediumBuy, conf, reason), true
}

func (c *Classifier) warning(snap domain.IndicatorSnapshot) (Decision, bool) {
	r := c.cfg.Warning
	if snap.ConfluenceScore < r.MinScore {
		return Decision{}, false
	}

	oversold := snap.RSI <= r.OversoldRSI
	bearFlush := snap.Trend == domain.TrendBearish &&
		snap.RSI <= r.BearTrendRSI &&
		snap.VolumeRatio > r.BearTrendVolume
	if !oversold && !bearFlush {
		return Decision{}, false
	}
	if snap.DistanceFromSupport > r.MaxSupportDist {
		return Decision{}, false
	}

	trigger := "oversold"
	if !oversold {
		trigger = "bear-trend flush"
	}
	reason := fmt.Sprintf(
		"warning (%s): score %d, RSI %.1f, %.1f%% above support",
		trigger, snap.ConfluenceScore, snap.RSI, snap.DistanceFromSupport,
	)
	conf := confidence(snap.ConfluenceScore, 0, c.cfg.Confidence.WarningCap)
	return c.decision(snap, domain.SignalWarning, conf, reason), true
}

// BasicEvaluate is the degraded path for windows below the enrichment
// minimum. It only flags sharp drops toward the window low and never
// reaches full confidence.
func (c *Classifier) BasicEvaluate(symbol string, bars []domain.PriceBar) Decision {
	if len(bars) < c.cfg.DegradedMinBars {
		return Decision{Type: domain.SignalNone}
	}

	// Windows arrive newest-first from the provider and the bar cache;
	// the current close is the max-timestamp bar, not a slice end.
	high := bars[0].Close
	last := bars[0].Close
	latest := bars[0].Timestamp
	for _, b := range bars[1:] {
		if b.Close > high {
			high = b.Close
		}
		if b.Timestamp.After(latest) {
			latest = b.Timestamp
			last = b.Close
		}
	}
	if high <= 0 || last <= 0 {
		return Decision{Type: domain.SignalNone}
	}

	drawdown := (high - last) / high * 100
	if drawdown < c.cfg.DegradedDrawdownPct {
		return Decision{Type: domain.SignalNone}
	}

	conf := int(drawdown)
	if conf > c.cfg.DegradedConfidenceCap {
		conf = c.cfg.DegradedConfidenceCap
	}
	snap := domain.IndicatorSnapshot{Symbol: strings.ToUpper(symbol), RSI: 50}
	reason := fmt.Sprintf("degraded evaluation (%d bars): %.1f%% below window high", len(bars), drawdown)
	return c.decision(snap, domain.SignalWarning, conf, reason)
}

func (c *Classifier) decision(snap domain.IndicatorSnapshot, t domain.SignalType, conf int, reason string) Decision {
	return Decision{
		Type:       t,
		Confidence: conf,
		Reason:     reason,
		Hash:       Hash(snap.Symbol, t, snap.RSI, c.now()),
	}
}

func confidence(score, bonus, limit int) int {
	conf := score + bonus
	if conf > limit {
		conf = limit
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// Hash is the idempotency key: same symbol, tier, rounded RSI and hour
// bucket always collide, so a second evaluation inside the hour cannot
// persist a duplicate.
func Hash(symbol string, t domain.SignalType, rsi float64, at time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d|%d",
		strings.ToUpper(symbol),
		t,
		int(math.Round(rsi)),
		at.UTC().Unix()/3600,
	)
	return fmt.Sprintf("%016x", h.Sum64())
}
