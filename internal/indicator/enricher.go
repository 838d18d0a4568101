package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

const (
	rsiPeriod        = 14
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	emaFastPeriod    = 20
	emaSlowPeriod    = 50
	atrPeriod        = 14
	volumeWindow     = 20
	swingLookback    = 2

	supportBuffer      = 0.98
	resistanceBuffer   = 1.02
	supportFallback    = 0.95
	resistanceFallback = 1.05

	regimeLowMax    = 1.0
	regimeNormalMax = 2.5
	regimeHighMax   = 4.0
)

// ErrInsufficientHistory reports a window too short for full enrichment.
// Callers treat it as a skip-or-degrade condition, not a failure.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Enricher derives the indicator snapshot the scorer and classifier run
// on. It is stateless; every call works on its own window copy.
type Enricher struct {
	minBars int
}

func NewEnricher(minBars int) *Enricher {
	if minBars <= 0 {
		minBars = volumeWindow
	}
	return &Enricher{minBars: minBars}
}

func (e *Enricher) MinBars() int { return e.minBars }

// Enrich computes the full snapshot from a bar window. Bars may arrive in
// either time order; they are normalized to ascending before any math.
func (e *Enricher) Enrich(symbol string, bars []domain.PriceBar) (domain.IndicatorSnapshot, error) {
	window := normalizeBars(bars)
	if len(window) < e.minBars {
		return domain.IndicatorSnapshot{}, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, len(window), e.minBars)
	}

	closes := extract(window, func(b domain.PriceBar) float64 { return b.Close })
	highs := extract(window, func(b domain.PriceBar) float64 { return b.High })
	lows := extract(window, func(b domain.PriceBar) float64 { return b.Low })
	volumes := extract(window, func(b domain.PriceBar) float64 { return b.Volume })

	price := closes[len(closes)-1]
	if price <= 0 {
		return domain.IndicatorSnapshot{}, fmt.Errorf("non-positive close for %s", symbol)
	}

	snap := domain.IndicatorSnapshot{
		Symbol: strings.ToUpper(symbol),
		Price:  price,
	}

	snap.RSI = latestRSI(closes)
	snap.MACDHistogram, snap.MACDCrossUp = latestMACD(closes)
	snap.EMA20, snap.EMA50, snap.Trend = classifyTrend(closes, price)
	snap.VolumeRatio = volumeRatio(volumes)
	snap.BearishDivergence = bearishDivergence(closes)

	snap.SupportLevel = nearestSupport(lows, price)
	snap.ResistanceLevel = nearestResistance(highs, price)
	snap.DistanceFromSupport = (price - snap.SupportLevel) / price * 100
	snap.DistanceFromResistance = (snap.ResistanceLevel - price) / price * 100

	snap.ATR = averageTrueRange(highs, lows, closes, atrPeriod)
	snap.VolatilityRegime = classifyRegime(snap.ATR, price)

	return snap, nil
}

func normalizeBars(in []domain.PriceBar) []domain.PriceBar {
	out := make([]domain.PriceBar, 0, len(in))
	for _, b := range in {
		if b.Close <= 0 || b.High <= 0 || b.Low <= 0 {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func extract(bars []domain.PriceBar, f func(domain.PriceBar) float64) []float64 {
	values := make([]float64, len(bars))
	for i := range bars {
		values[i] = f(bars[i])
	}
	return values
}

func latestRSI(closes []float64) float64 {
	series := rsiSeries(closes, rsiPeriod)
	if len(series) == 0 {
		return 50
	}
	last := series[len(series)-1]
	if math.IsNaN(last) {
		return 50
	}
	return last
}

func latestMACD(closes []float64) (histogram float64, crossUp bool) {
	if len(closes) < macdSlowPeriod+macdSignalPeriod {
		return 0, false
	}
	macdLine, signalLine := macdSeries(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	n := len(macdLine)
	histogram = macdLine[n-1] - signalLine[n-1]
	prev := macdLine[n-2] - signalLine[n-2]
	crossUp = prev <= 0 && histogram > 0
	return histogram, crossUp
}

func classifyTrend(closes []float64, price float64) (ema20, ema50 float64, trend domain.Trend) {
	fast := emaSeries(closes, emaFastPeriod)
	slow := emaSeries(closes, emaSlowPeriod)

	if len(fast) > 0 {
		ema20 = fast[len(fast)-1]
	}
	if len(slow) > 0 {
		ema50 = slow[len(slow)-1]
	}

	switch {
	case ema20 > 0 && ema50 > 0 && price > ema20 && ema20 > ema50:
		trend = domain.TrendBullish
	case ema20 > 0 && ema50 > 0 && price < ema20 && ema20 < ema50:
		trend = domain.TrendBearish
	default:
		trend = domain.TrendSideways
	}
	return ema20, ema50, trend
}

func volumeRatio(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 1
	}
	current := volumes[len(volumes)-1]
	window := volumes
	if len(window) > volumeWindow {
		window = window[len(window)-volumeWindow:]
	}
	avg := average(window)
	if avg == 0 {
		return 1
	}
	return current / avg
}

// bearishDivergence flags a higher price high in the second half of the
// window paired with a lower RSI high.
func bearishDivergence(closes []float64) bool {
	series := rsiSeries(closes, rsiPeriod)
	if len(series) == 0 {
		return false
	}

	mid := len(closes) / 2
	if mid < 2 || len(closes)-mid < 2 {
		return false
	}

	firstPriceHigh := maxOf(closes[:mid])
	secondPriceHigh := maxOf(closes[mid:])
	firstRSIHigh := maxOf(series[:mid])
	secondRSIHigh := maxOf(series[mid:])

	if math.IsInf(firstRSIHigh, -1) || math.IsInf(secondRSIHigh, -1) {
		return false
	}

	return secondPriceHigh > firstPriceHigh && secondRSIHigh < firstRSIHigh
}

func classifyRegime(atr, price float64) domain.VolatilityRegime {
	if price <= 0 || atr <= 0 {
		return domain.VolatilityNormal
	}
	normalized := atr / price * 100
	switch {
	case normalized < regimeLowMax:
		return domain.VolatilityLow
	case normalized < regimeNormalMax:
		return domain.VolatilityNormal
	case normalized < regimeHighMax:
		return domain.VolatilityHigh
	default:
		return domain.VolatilityExtreme
	}
}
