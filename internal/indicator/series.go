package indicator

import "math"

// emaSeries computes an EMA seeded by the simple average of the first
// period values. Entries before the seed index are NaN.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}

	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// rsiSeries computes Wilder-smoothed RSI. Entries before the first
// computable index are NaN.
func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}

	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}

	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// macdSeries returns the MACD line and its signal line. Uses simple
// first-value seeding so the signal line is defined over the whole slice.
func macdSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	fastEMA := runningEMA(values, fast)
	slowEMA := runningEMA(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := runningEMA(macdLine, signal)
	return macdLine, signalLine
}

func runningEMA(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// averageTrueRange averages the period most recent true ranges,
// TR = max(high-low, |high-prevClose|, |low-prevClose|).
func averageTrueRange(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n < 2 || period <= 0 {
		return 0
	}

	start := n - period
	if start < 1 {
		start = 1
	}

	var sum float64
	count := 0
	for i := start; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr := math.Max(hl, math.Max(hc, lc))
		sum += tr
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	out := math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) && v > out {
			out = v
		}
	}
	return out
}
