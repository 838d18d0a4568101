package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"
)

// InvalidLevelPolicy selects what happens when computed risk levels still
// violate the stop < entry < target invariant after correction.
type InvalidLevelPolicy string

const (
	InvalidLevelsCorrect InvalidLevelPolicy = "correct"
	InvalidLevelsReject  InvalidLevelPolicy = "reject"
)

type Config struct {
	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string

	HTTPBind string
	HTTPPort int

	ProviderBaseURL  string
	ProviderAPIKey   string
	ProviderTimeout  time.Duration
	FetchDelayMillis int

	Watchlist          []string
	HistoryDays        int
	SignalPollSecs     int
	OutcomePollSecs    int
	MaxConcurrentEvals int

	Strategy Strategy
}

// Strategy carries every tunable threshold of the decision engine. The
// scoring, classification and risk code hold no literals; strategies are
// tuned here, not by editing branch conditions.
type Strategy struct {
	MinBars int

	Weights    ConfluenceWeights
	RSIScore   RSIScoreBands
	VolScore   VolumeScoreBands
	Structure  StructureScoreBands
	StrongBuy  TierRule
	MediumBuy  TierRule
	Warning    WarningRule
	Confidence ConfidenceRule

	Risk RiskConfig

	CooldownWindow     time.Duration
	MaxSignalsPerDay   int
	TrackingWindowDays int

	DegradedMinBars       int
	DegradedDrawdownPct   float64
	DegradedConfidenceCap int
}

// ConfluenceWeights caps each factor's contribution to the 0-100 score.
type ConfluenceWeights struct {
	TrendMax     int
	RSIMax       int
	MACDMax      int
	VolumeMax    int
	StructureMax int

	TrendSideways int
	MACDPositive  int
	MACDCrossUp   int
}

// RSIScoreBands awards points for RSI positioning, widest band last.
type RSIScoreBands struct {
	InnerLow, InnerHigh float64 // full points
	MidLow, MidHigh     float64
	OuterLow, OuterHigh float64
	MidPoints           int
	OuterPoints         int
}

type VolumeScoreBands struct {
	Strong, Elevated, Mild     float64
	ElevatedPoints, MildPoints int
}

// StructureScoreBands scores position relative to support and resistance.
type StructureScoreBands struct {
	NearSupportPct   float64
	FarResistancePct float64
	MidSupportPct    float64
	MidResistancePct float64
	MidPoints        int
	WeakPoints       int
}

// TierRule is the predicate set for one buy tier.
type TierRule struct {
	MinScore          int
	RSIMin, RSIMax    float64
	MinVolumeRatio    float64
	MaxSupportDist    float64 // 0 disables the check
	MinResistanceDist float64 // 0 disables the check
	RequireMACD       bool    // histogram > 0 required (cross-up accepted for medium tier)
	AllowMACDCross    bool
	ForbidBearishDiv  bool
	ForbidBearTrend   bool
	RequireBullTrend  bool
}

type WarningRule struct {
	MinScore        int
	OversoldRSI     float64
	BearTrendRSI    float64
	BearTrendVolume float64
	MaxSupportDist  float64
}

type ConfidenceRule struct {
	StrongBonus int
	StrongCap   int
	MediumBonus int
	MediumCap   int
	WarningCap  int
}

type RiskConfig struct {
	ATRMultipliers map[domain.VolatilityRegime]float64

	SupportStopFactor       float64
	ResistanceCeilingFactor float64
	MinResistanceGapPct     float64

	// Confidence fallback stop distances, tighter as confidence rises.
	HighConfStopPct   float64
	MediumConfStopPct float64
	LowConfStopPct    float64
	HighConfCutoff    int
	MediumConfCutoff  int

	ConfidenceTargetPct float64

	MinRiskReward   float64
	MaxRiskReward   float64
	LastResortPct   float64
	OnInvalidLevels InvalidLevelPolicy

	PortfolioValue float64
	MaxPositionPct float64
}

var defaultWatchlist = []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "AMD"}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, alerts will be disabled")
	}

	cfg.HTTPBind = strings.TrimSpace(os.Getenv("HTTP_BIND"))
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = "0.0.0.0"
	}
	cfg.HTTPPort = envInt("HTTP_PORT", 8080)

	cfg.ProviderBaseURL = strings.TrimSpace(os.Getenv("MARKET_DATA_BASE_URL"))
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = "https://api.twelvedata.com"
	}
	cfg.ProviderAPIKey = os.Getenv("MARKET_DATA_API_KEY")
	if cfg.ProviderAPIKey == "" {
		log.Println("Warning: MARKET_DATA_API_KEY not set")
	}
	cfg.ProviderTimeout = time.Duration(envInt("MARKET_DATA_TIMEOUT_SECS", 10)) * time.Second
	cfg.FetchDelayMillis = envInt("FETCH_DELAY_MILLIS", 350)

	cfg.Watchlist = parseWatchlist(os.Getenv("WATCHLIST"))
	cfg.HistoryDays = envInt("HISTORY_DAYS", 120)
	cfg.SignalPollSecs = envInt("SIGNAL_POLL_SECS", 300)
	cfg.OutcomePollSecs = envInt("OUTCOME_POLL_SECS", 1800)
	cfg.MaxConcurrentEvals = envInt("MAX_CONCURRENT_EVALS", 4)

	cfg.Strategy = DefaultStrategy()
	applyStrategyEnv(&cfg.Strategy)

	return cfg
}

// DefaultStrategy is the tuned production threshold table.
func DefaultStrategy() Strategy {
	return Strategy{
		MinBars: 20,
		Weights: ConfluenceWeights{
			TrendMax:      25,
			RSIMax:        20,
			MACDMax:       20,
			VolumeMax:     15,
			StructureMax:  20,
			TrendSideways: 10,
			MACDPositive:  15,
			MACDCrossUp:   10,
		},
		RSIScore: RSIScoreBands{
			InnerLow: 20, InnerHigh: 40,
			MidLow: 15, MidHigh: 50,
			OuterLow: 10, OuterHigh: 60,
			MidPoints:   15,
			OuterPoints: 10,
		},
		VolScore: VolumeScoreBands{
			Strong: 2.0, Elevated: 1.5, Mild: 1.2,
			ElevatedPoints: 12, MildPoints: 8,
		},
		Structure: StructureScoreBands{
			NearSupportPct:   5,
			FarResistancePct: 8,
			MidSupportPct:    8,
			MidResistancePct: 5,
			MidPoints:        12,
			WeakPoints:       5,
		},
		StrongBuy: TierRule{
			MinScore:          75,
			RSIMin:            20,
			RSIMax:            40,
			MinVolumeRatio:    1.5,
			MaxSupportDist:    5,
			MinResistanceDist: 8,
			RequireMACD:       true,
			ForbidBearishDiv:  true,
			RequireBullTrend:  true,
		},
		MediumBuy: TierRule{
			MinScore:       60,
			RSIMin:         20,
			RSIMax:         45,
			MinVolumeRatio: 1.2,
			RequireMACD:    true,
			AllowMACDCross: true,
			ForbidBearTrend: true,
		},
		Warning: WarningRule{
			MinScore:        50,
			OversoldRSI:     25,
			BearTrendRSI:    30,
			BearTrendVolume: 1.5,
			MaxSupportDist:  3,
		},
		Confidence: ConfidenceRule{
			StrongBonus: 5,
			StrongCap:   95,
			MediumBonus: 3,
			MediumCap:   85,
			WarningCap:  75,
		},
		Risk: RiskConfig{
			ATRMultipliers: map[domain.VolatilityRegime]float64{
				domain.VolatilityLow:     1.5,
				domain.VolatilityNormal:  2.5,
				domain.VolatilityHigh:    3.0,
				domain.VolatilityExtreme: 3.5,
			},
			SupportStopFactor:       0.98,
			ResistanceCeilingFactor: 0.95,
			MinResistanceGapPct:     2,
			HighConfStopPct:         3,
			MediumConfStopPct:       5,
			LowConfStopPct:          7,
			HighConfCutoff:          80,
			MediumConfCutoff:        65,
			ConfidenceTargetPct:     8,
			MinRiskReward:           2.0,
			MaxRiskReward:           10,
			LastResortPct:           5,
			OnInvalidLevels:         InvalidLevelsCorrect,
			PortfolioValue:          10000,
			MaxPositionPct:          5,
		},
		CooldownWindow:        2 * time.Hour,
		MaxSignalsPerDay:      2,
		TrackingWindowDays:    10,
		DegradedMinBars:       5,
		DegradedDrawdownPct:   10,
		DegradedConfidenceCap: 40,
	}
}

func applyStrategyEnv(s *Strategy) {
	s.MinBars = envInt("STRATEGY_MIN_BARS", s.MinBars)
	s.MaxSignalsPerDay = envInt("MAX_SIGNALS_PER_DAY", s.MaxSignalsPerDay)
	s.TrackingWindowDays = envInt("TRACKING_WINDOW_DAYS", s.TrackingWindowDays)

	if n := envInt("COOLDOWN_MINUTES", 0); n > 0 {
		s.CooldownWindow = time.Duration(n) * time.Minute
	}

	s.Risk.MinRiskReward = envFloat("MIN_RISK_REWARD", s.Risk.MinRiskReward)
	s.Risk.PortfolioValue = envFloat("PORTFOLIO_VALUE", s.Risk.PortfolioValue)
	s.Risk.MaxPositionPct = envFloat("MAX_POSITION_PCT", s.Risk.MaxPositionPct)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("ON_INVALID_LEVELS"))); v != "" {
		switch InvalidLevelPolicy(v) {
		case InvalidLevelsCorrect, InvalidLevelsReject:
			s.Risk.OnInvalidLevels = InvalidLevelPolicy(v)
		default:
			log.Printf("Warning: unsupported ON_INVALID_LEVELS=%q, keeping %q", v, s.Risk.OnInvalidLevels)
		}
	}
}

func parseWatchlist(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultWatchlist...)
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	if len(out) == 0 {
		return append([]string(nil), defaultWatchlist...)
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
