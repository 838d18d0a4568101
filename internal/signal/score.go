package signal

import (
	"github.com/federico-84/trading-signal-worker-sub000/internal/config"
	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

// Score reduces an enriched snapshot to a single confluence figure in
// [0,100]. Pure and deterministic; every breakpoint comes from the
// strategy table.
func Score(snap domain.IndicatorSnapshot, cfg config.Strategy) int {
	total := trendScore(snap, cfg) +
		rsiScore(snap, cfg) +
		macdScore(snap, cfg) +
		volumeScore(snap, cfg) +
		structureScore(snap, cfg)

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

func trendScore(snap domain.IndicatorSnapshot, cfg config.Strategy) int {
	switch snap.Trend {
	case domain.TrendBullish:
		return cfg.Weights.TrendMax
	case domain.TrendSideways:
		return capAt(cfg.Weights.TrendSideways, cfg.Weights.TrendMax)
	default:
		return 0
	}
}

func rsiScore(snap domain.IndicatorSnapshot, cfg config.Strategy) int {
	b := cfg.RSIScore
	switch {
	case snap.RSI >= b.InnerLow && snap.RSI <= b.InnerHigh:
		return cfg.Weights.RSIMax
	case snap.RSI >= b.MidLow && snap.RSI <= b.MidHigh:
		return capAt(b.MidPoints, cfg.Weights.RSIMax)
	case snap.RSI >= b.OuterLow && snap.RSI <= b.OuterHigh:
		return capAt(b.OuterPoints, cfg.Weights.RSIMax)
	default:
		return 0
	}
}

func macdScore(snap domain.IndicatorSnapshot, cfg config.Strategy) int {
	switch {
	case snap.MACDHistogram > 0 && snap.Trend == domain.TrendBullish:
		return cfg.Weights.MACDMax
	case snap.MACDHistogram > 0:
		return capAt(cfg.Weights.MACDPositive, cfg.Weights.MACDMax)
	case snap.MACDCrossUp:
		return capAt(cfg.Weights.MACDCrossUp, cfg.Weights.MACDMax)
	default:
		return 0
	}
}

func volumeScore(snap domain.IndicatorSnapshot, cfg config.Strategy) int {
	b := cfg.VolScore
	switch {
	case snap.VolumeRatio > b.Strong:
		return cfg.Weights.VolumeMax
	case snap.VolumeRatio > b.Elevated:
		return capAt(b.ElevatedPoints, cfg.Weights.VolumeMax)
	case snap.VolumeRatio > b.Mild:
		return capAt(b.MildPoints, cfg.Weights.VolumeMax)
	default:
		return 0
	}
}

func structureScore(snap domain.IndicatorSnapshot, cfg config.Strategy) int {
	b := cfg.Structure
	switch {
	case snap.DistanceFromSupport <= b.NearSupportPct && snap.DistanceFromResistance > b.FarResistancePct:
		return cfg.Weights.StructureMax
	case snap.DistanceFromSupport <= b.MidSupportPct && snap.DistanceFromResistance > b.MidResistancePct:
		return capAt(b.MidPoints, cfg.Weights.StructureMax)
	case snap.DistanceFromResistance > b.MidResistancePct:
		return capAt(b.WeakPoints, cfg.Weights.StructureMax)
	default:
		return 0
	}
}

func capAt(v, max int) int {
	if v > max {
		return max
	}
	return v
}
