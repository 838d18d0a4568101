package risk

import (
	"math"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

// Size converts an entry/stop pair into a share count. Risk-based sizing
// first, then a hard cap so the position value never exceeds the maximum
// position slice of the portfolio. Zero shares marks the signal
// non-actionable; callers still persist it so tracking stays honest.
func (c *Calculator) Size(entry, stopLoss float64) domain.PositionSizing {
	sizing := domain.PositionSizing{}
	if entry <= 0 || stopLoss <= 0 || stopLoss >= entry {
		return sizing
	}

	sizing.RiskPerShare = entry - stopLoss
	sizing.MaxRiskAmount = c.cfg.PortfolioValue * c.cfg.MaxPositionPct / 100

	shares := int(math.Floor(sizing.MaxRiskAmount / sizing.RiskPerShare))
	if shares <= 0 {
		return sizing
	}

	maxPositionValue := c.cfg.PortfolioValue * c.cfg.MaxPositionPct / 100
	if float64(shares)*entry > maxPositionValue {
		shares = int(math.Floor(maxPositionValue / entry))
	}
	if shares <= 0 {
		return sizing
	}

	sizing.Shares = shares
	sizing.PositionValue = float64(shares) * entry
	sizing.Actionable = true
	return sizing
}
