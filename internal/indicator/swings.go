package indicator

// swingLows returns indices whose low is strictly below its lookback
// neighbors on both sides.
func swingLows(lows []float64, lookback int) []int {
	out := make([]int, 0, 8)
	for i := lookback; i < len(lows)-lookback; i++ {
		isSwing := true
		for j := 1; j <= lookback; j++ {
			if lows[i] >= lows[i-j] || lows[i] >= lows[i+j] {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, i)
		}
	}
	return out
}

func swingHighs(highs []float64, lookback int) []int {
	out := make([]int, 0, 8)
	for i := lookback; i < len(highs)-lookback; i++ {
		isSwing := true
		for j := 1; j <= lookback; j++ {
			if highs[i] <= highs[i-j] || highs[i] <= highs[i+j] {
				isSwing = false
				break
			}
		}
		if isSwing {
			out = append(out, i)
		}
	}
	return out
}

// nearestSupport picks the highest swing-low strictly below
// price*supportBuffer, falling back to price*supportFallback.
func nearestSupport(lows []float64, price float64) float64 {
	ceiling := price * supportBuffer
	best := 0.0
	for _, idx := range swingLows(lows, swingLookback) {
		level := lows[idx]
		if level < ceiling && level > best {
			best = level
		}
	}
	if best == 0 {
		return price * supportFallback
	}
	return best
}

// nearestResistance picks the lowest swing-high strictly above
// price*resistanceBuffer, falling back to price*resistanceFallback.
func nearestResistance(highs []float64, price float64) float64 {
	floor := price * resistanceBuffer
	best := 0.0
	for _, idx := range swingHighs(highs, swingLookback) {
		level := highs[idx]
		if level > floor && (best == 0 || level < best) {
			best = level
		}
	}
	if best == 0 {
		return price * resistanceFallback
	}
	return best
}
