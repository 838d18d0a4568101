package domain

import "time"

// PriceBar is one daily OHLCV candle as delivered by the market-data
// provider. Bars are immutable once fetched.
type PriceBar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendSideways Trend = "sideways"
	TrendBearish  Trend = "bearish"
)

type VolatilityRegime string

const (
	VolatilityLow     VolatilityRegime = "low"
	VolatilityNormal  VolatilityRegime = "normal"
	VolatilityHigh    VolatilityRegime = "high"
	VolatilityExtreme VolatilityRegime = "extreme"
)

type SignalType string

const (
	SignalStrongBuy SignalType = "strong_buy"
	SignalMediumBuy SignalType = "medium_buy"
	SignalWarning   SignalType = "warning"
	SignalHold      SignalType = "hold"
	SignalNone      SignalType = "none"
)

func (t SignalType) IsBuy() bool {
	return t == SignalStrongBuy || t == SignalMediumBuy
}

func (t SignalType) IsValid() bool {
	switch t {
	case SignalStrongBuy, SignalMediumBuy, SignalWarning, SignalHold, SignalNone:
		return true
	}
	return false
}

// IndicatorSnapshot is the enriched view of a symbol at evaluation time.
// It is rebuilt from scratch on every evaluation and never persisted on
// its own; a Signal carries the slice of it that mattered.
type IndicatorSnapshot struct {
	Symbol                 string           `json:"symbol"`
	Price                  float64          `json:"price"`
	RSI                    float64          `json:"rsi"`
	MACDHistogram          float64          `json:"macd_histogram"`
	MACDCrossUp            bool             `json:"macd_cross_up"`
	EMA20                  float64          `json:"ema20"`
	EMA50                  float64          `json:"ema50"`
	Trend                  Trend            `json:"trend"`
	VolumeRatio            float64          `json:"volume_ratio"`
	SupportLevel           float64          `json:"support_level"`
	ResistanceLevel        float64          `json:"resistance_level"`
	DistanceFromSupport    float64          `json:"distance_from_support_pct"`
	DistanceFromResistance float64          `json:"distance_from_resistance_pct"`
	BearishDivergence      bool             `json:"bearish_divergence"`
	ATR                    float64          `json:"atr"`
	VolatilityRegime       VolatilityRegime `json:"volatility_regime"`
	ConfluenceScore        int              `json:"confluence_score"`
	Degraded               bool             `json:"degraded"`
}

// Signal is the engine's final product. The classifier owns type,
// confidence and reason; the risk calculator owns the price levels and
// sizing fields; the outcome tracker and delivery path own the trailing
// lifecycle fields. Nothing else writes across those lines.
type Signal struct {
	ID              int64      `json:"id"`
	Symbol          string     `json:"symbol"`
	Type            SignalType `json:"type"`
	Confidence      int        `json:"confidence"`
	Reason          string     `json:"reason"`
	EntryPrice      float64    `json:"entry_price"`
	StopLoss        float64    `json:"stop_loss"`
	TakeProfit      float64    `json:"take_profit"`
	StopLossPct     float64    `json:"stop_loss_pct"`
	TakeProfitPct   float64    `json:"take_profit_pct"`
	RiskRewardRatio float64    `json:"risk_reward_ratio"`
	SuggestedShares int        `json:"suggested_shares"`
	PositionValue   float64    `json:"position_value"`
	Actionable      bool       `json:"actionable"`
	SignalHash      string     `json:"signal_hash"`
	CreatedAt       time.Time  `json:"created_at"`
	Sent            bool       `json:"sent"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
}

// RiskLevels is the transient result of the risk calculator before it is
// folded into a Signal.
type RiskLevels struct {
	StopLoss        float64
	TakeProfit      float64
	StopLossPct     float64
	TakeProfitPct   float64
	RiskRewardRatio float64
	Method          string
	Reasoning       string
}

// PositionSizing is the transient sizing result.
type PositionSizing struct {
	Shares        int
	PositionValue float64
	RiskPerShare  float64
	MaxRiskAmount float64
	Actionable    bool
}

type Outcome string

const (
	OutcomeHit        Outcome = "hit"
	OutcomeStoppedOut Outcome = "stopped_out"
	OutcomePartialHit Outcome = "partial_hit"
	OutcomeExpired    Outcome = "expired"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeHit, OutcomeStoppedOut, OutcomePartialHit, OutcomeExpired:
		return true
	}
	return false
}

// PerformanceRecord tracks a persisted signal until the outcome tracker
// resolves it. Outcome is nil while the record is open and is written
// exactly once on completion.
type PerformanceRecord struct {
	ID                   int64      `json:"id"`
	SignalID             int64      `json:"signal_id"`
	Symbol               string     `json:"symbol"`
	Strategy             string     `json:"strategy"`
	PredictedProbability float64    `json:"predicted_probability"`
	EntryPrice           float64    `json:"entry_price"`
	StopLoss             float64    `json:"stop_loss"`
	TakeProfitPrice      float64    `json:"take_profit_price"`
	Outcome              *Outcome   `json:"outcome,omitempty"`
	ActualReturn         float64    `json:"actual_return"`
	HoldingPeriodDays    int        `json:"holding_period_days"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func (r *PerformanceRecord) Open() bool { return r.Outcome == nil }

// StrategyStats is the read-side aggregation over completed records.
type StrategyStats struct {
	Strategy         string  `json:"strategy"`
	ConfidenceBucket string  `json:"confidence_bucket"`
	Total            int     `json:"total"`
	Hits             int     `json:"hits"`
	StoppedOut       int     `json:"stopped_out"`
	Expired          int     `json:"expired"`
	SuccessRate      float64 `json:"success_rate"`
	AvgReturn        float64 `json:"avg_return"`
	AvgHoldingDays   float64 `json:"avg_holding_days"`
}

type SignalFilter struct {
	Symbol  string
	Type    SignalType
	MinConf int
	Limit   int
}

type PerformanceFilter struct {
	Symbol   string
	Strategy string
	OpenOnly bool
	Limit    int
}
