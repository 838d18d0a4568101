package risk

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/federico-84/trading-signal-worker-sub000/internal/config"
	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

// ErrInvalidLevels reports levels that still violate the stop < entry <
// target invariant under the reject policy.
var ErrInvalidLevels = errors.New("invalid risk levels")

const (
	methodATR        = "atr"
	methodStructure  = "structure"
	methodConfidence = "confidence"
)

// Calculator owns the stop-loss, take-profit and sizing math. One
// instance per strategy configuration; safe for concurrent use.
type Calculator struct {
	cfg config.RiskConfig
}

func NewCalculator(cfg config.RiskConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

type stopCandidate struct {
	price  float64
	method string
}

// Levels computes stop-loss and take-profit for a buy at the snapshot
// price. The tightest valid stop wins; the take-profit enforces the
// minimum risk/reward unless a resistance ceiling caps it first.
func (c *Calculator) Levels(snap domain.IndicatorSnapshot, confidence int) (domain.RiskLevels, error) {
	entry := snap.Price
	if entry <= 0 {
		return domain.RiskLevels{}, fmt.Errorf("non-positive entry price for %s", snap.Symbol)
	}

	stop := c.selectStop(snap, entry, confidence)
	levels := c.selectTarget(snap, entry, stop)

	levels.StopLossPct = (entry - levels.StopLoss) / entry * 100
	levels.TakeProfitPct = (levels.TakeProfit - entry) / entry * 100
	if risk := entry - levels.StopLoss; risk > 0 {
		levels.RiskRewardRatio = (levels.TakeProfit - entry) / risk
	}

	if c.valid(levels, entry) {
		return levels, nil
	}

	if c.cfg.OnInvalidLevels == config.InvalidLevelsReject {
		return domain.RiskLevels{}, fmt.Errorf("%w for %s: stop=%.4f entry=%.4f target=%.4f",
			ErrInvalidLevels, snap.Symbol, levels.StopLoss, entry, levels.TakeProfit)
	}

	log.Printf("risk levels for %s failed validation (stop=%.4f target=%.4f), forcing default distances",
		snap.Symbol, levels.StopLoss, levels.TakeProfit)
	return c.lastResort(entry), nil
}

func (c *Calculator) selectStop(snap domain.IndicatorSnapshot, entry float64, confidence int) stopCandidate {
	candidates := make([]stopCandidate, 0, 2)

	if mult, ok := c.cfg.ATRMultipliers[snap.VolatilityRegime]; ok && snap.ATR > 0 {
		if p := entry - snap.ATR*mult; p > 0 && p < entry {
			candidates = append(candidates, stopCandidate{price: p, method: methodATR})
		}
	}

	if snap.SupportLevel > 0 {
		if snap.SupportLevel >= entry {
			// Data-quality event: support above entry means the swing scan
			// picked a stale level. Skip the structural candidate.
			log.Printf("support %.4f at or above entry %.4f for %s, ignoring structural stop",
				snap.SupportLevel, entry, snap.Symbol)
		} else if p := snap.SupportLevel * c.cfg.SupportStopFactor; p > 0 && p < entry {
			candidates = append(candidates, stopCandidate{price: p, method: methodStructure})
		}
	}

	// At equal validity the stop closer to price wins: it respects
	// structure while risking less per share.
	best := stopCandidate{}
	for _, cand := range candidates {
		if cand.price > best.price {
			best = cand
		}
	}
	if best.price > 0 {
		return best
	}

	return stopCandidate{price: entry * (1 - c.stopPct(confidence)/100), method: methodConfidence}
}

// stopPct tightens the fallback stop as confidence rises.
func (c *Calculator) stopPct(confidence int) float64 {
	switch {
	case confidence >= c.cfg.HighConfCutoff:
		return c.cfg.HighConfStopPct
	case confidence >= c.cfg.MediumConfCutoff:
		return c.cfg.MediumConfStopPct
	default:
		return c.cfg.LowConfStopPct
	}
}

func (c *Calculator) selectTarget(snap domain.IndicatorSnapshot, entry float64, stop stopCandidate) domain.RiskLevels {
	riskPerShare := entry - stop.price
	enforced := entry + riskPerShare*c.cfg.MinRiskReward

	notes := []string{fmt.Sprintf("stop via %s", stop.method)}
	target := enforced
	method := stop.method

	minGap := entry * (1 + c.cfg.MinResistanceGapPct/100)
	if snap.ResistanceLevel > minGap {
		ceiling := snap.ResistanceLevel * c.cfg.ResistanceCeilingFactor
		if ceiling > entry && enforced > ceiling {
			// Cap at the ceiling instead of projecting a target the price
			// would have to break resistance to reach.
			target = ceiling
			method = "resistance-limited"
			notes = append(notes, fmt.Sprintf(
				"resistance-limited: target capped at %.4f below resistance %.4f, R/R sacrificed",
				ceiling, snap.ResistanceLevel))
		}
	}

	if target <= entry {
		confTarget := entry * (1 + c.cfg.ConfidenceTargetPct/100)
		target = confTarget
		method = methodConfidence
		notes = append(notes, "confidence-scaled target")
	}

	return domain.RiskLevels{
		StopLoss:   stop.price,
		TakeProfit: target,
		Method:     method,
		Reasoning:  strings.Join(notes, "; "),
	}
}

func (c *Calculator) valid(l domain.RiskLevels, entry float64) bool {
	if !(l.StopLoss < entry && entry < l.TakeProfit) {
		return false
	}
	if l.StopLossPct <= 0 || l.TakeProfitPct <= 0 {
		return false
	}
	if l.RiskRewardRatio < 0.1 || l.RiskRewardRatio > c.cfg.MaxRiskReward {
		return false
	}
	return true
}

func (c *Calculator) lastResort(entry float64) domain.RiskLevels {
	pct := c.cfg.LastResortPct
	stop := entry * (1 - pct/100)
	target := entry * (1 + pct*c.cfg.MinRiskReward/100)
	return domain.RiskLevels{
		StopLoss:        stop,
		TakeProfit:      target,
		StopLossPct:     pct,
		TakeProfitPct:   pct * c.cfg.MinRiskReward,
		RiskRewardRatio: c.cfg.MinRiskReward,
		Method:          "forced-default",
		Reasoning:       fmt.Sprintf("forced default distances (%.1f%% stop) after validation failure", pct),
	}
}
