package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"vigil/internal/ratelimit"
	"vigil/pkg/model"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceProvider implements the Provider interface for the Binance spot API
type BinanceProvider struct {
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	rateLimit int
}

// NewBinanceProvider creates a new Binance provider
func NewBinanceProvider(rateLimitPerMin int) *BinanceProvider {
	return &BinanceProvider{
		baseURL:   binanceBaseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   ratelimit.NewLimiter("binance", rateLimitPerMin),
		rateLimit: rateLimitPerMin,
	}
}

// Name returns the provider name
func (p *BinanceProvider) Name() string {
	return "binance"
}

// IsAvailable reports provider availability (public endpoint, no key needed)
func (p *BinanceProvider) IsAvailable() bool {
	return true
}

// RateLimit returns the rate limit per minute
func (p *BinanceProvider) RateLimit() int {
	return p.rateLimit
}

// GetCandles fetches spot klines for a symbol, oldest first.
// Binance interval strings match our timeframe notation directly.
func (p *BinanceProvider) GetCandles(ctx context.Context, symbol string, timeframe model.Timeframe, limit int) ([]model.Candle, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		p.baseURL, symbol, timeframe, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	p.limiter.ResetBackoff()

	// Rows are [openTime, open, high, low, close, volume, closeTime, ...]
	// with numeric strings for prices and a millisecond integer for time.
	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err), Retryable: false}
	}

	if len(rows) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: ErrNoData, Retryable: false}
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("malformed kline row: %d fields", len(row)), Retryable: false}
		}
		c, err := parseBinanceRow(row)
		if err != nil {
			return nil, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("malformed kline row: %w", err), Retryable: false}
		}
		candles = append(candles, c)
	}

	return candles, nil
}

func parseBinanceRow(row []json.RawMessage) (model.Candle, error) {
	var ms int64
	if err := json.Unmarshal(row[0], &ms); err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		var err error
		if fields[i], err = strconv.ParseFloat(s, 64); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}

	return model.Candle{
		OpenTime: time.UnixMilli(ms).UTC(),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
