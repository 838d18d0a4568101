package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/federico-84/trading-signal-worker-sub000/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const dailyInterval = "1day"

// MarketDataProvider fetches daily OHLCV series and spot prices over
// HTTP. Responses are decoded into typed bars at this boundary; nothing
// loosely-typed crosses into the engine.
type MarketDataProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	tracer  trace.Tracer
}

func NewMarketDataProvider(baseURL, apiKey string, timeout time.Duration, tracer trace.Tracer) *MarketDataProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MarketDataProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		tracer:  tracer,
	}
}

type timeSeriesResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Values  []timeSeriesBar `json:"values"`
}

type timeSeriesBar struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

type priceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Price   string `json:"price"`
}

// FetchHistory returns up to days daily bars, newest first. Fewer bars
// than requested is not an error; short listings happen for recent IPOs.
func (p *MarketDataProvider) FetchHistory(ctx context.Context, symbol string, days int) ([]domain.PriceBar, error) {
	_, span := p.tracer.Start(ctx, "market-data.fetch-history")
	defer span.End()

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", dailyInterval)
	q.Set("outputsize", strconv.Itoa(days))
	q.Set("apikey", p.apiKey)

	var decoded timeSeriesResponse
	if err := p.get(ctx, "/time_series", q, &decoded); err != nil {
		return nil, err
	}
	if decoded.Status == "error" {
		return nil, fmt.Errorf("market data error for %s: %s", symbol, decoded.Message)
	}

	bars := make([]domain.PriceBar, 0, len(decoded.Values))
	for _, raw := range decoded.Values {
		bar, err := raw.toBar(symbol)
		if err != nil {
			return nil, fmt.Errorf("decode bar for %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (p *MarketDataProvider) FetchLatestPrice(ctx context.Context, symbol string) (float64, error) {
	_, span := p.tracer.Start(ctx, "market-data.fetch-latest-price")
	defer span.End()

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("apikey", p.apiKey)

	var decoded priceResponse
	if err := p.get(ctx, "/price", q, &decoded); err != nil {
		return 0, err
	}
	if decoded.Status == "error" {
		return 0, fmt.Errorf("market data error for %s: %s", symbol, decoded.Message)
	}

	price, err := strconv.ParseFloat(decoded.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("invalid price %q for %s", decoded.Price, symbol)
	}
	return price, nil
}

func (p *MarketDataProvider) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("market data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market data request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("market data decode: %w", err)
	}
	return nil
}

func (raw timeSeriesBar) toBar(symbol string) (domain.PriceBar, error) {
	ts, err := time.Parse("2006-01-02", raw.Datetime)
	if err != nil {
		return domain.PriceBar{}, fmt.Errorf("timestamp %q: %w", raw.Datetime, err)
	}

	open, err := parsePositive("open", raw.Open)
	if err != nil {
		return domain.PriceBar{}, err
	}
	high, err := parsePositive("high", raw.High)
	if err != nil {
		return domain.PriceBar{}, err
	}
	low, err := parsePositive("low", raw.Low)
	if err != nil {
		return domain.PriceBar{}, err
	}
	closePrice, err := parsePositive("close", raw.Close)
	if err != nil {
		return domain.PriceBar{}, err
	}

	// Volume may be absent for some listings; treat it as zero.
	volume := 0.0
	if raw.Volume != "" {
		if v, err := strconv.ParseFloat(raw.Volume, 64); err == nil && v >= 0 {
			volume = v
		}
	}

	return domain.PriceBar{
		Symbol:    strings.ToUpper(symbol),
		Timestamp: ts.UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

func parsePositive(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
