package model

import "time"

// Candle represents a single candlestick (OHLCV data)
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Direction is the side of a trade signal.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	None  Direction = "NONE"
)

// Timeframe identifies a candle resolution (e.g. "1h", "4h", "1d").
type Timeframe string

// TimeframeSet is the ordered short/medium/long resolutions a scan evaluates.
// Medium is the reference timeframe: scoring, the noise filter and the alert
// all key off it.
type TimeframeSet struct {
	Short  Timeframe `yaml:"short" json:"short"`
	Medium Timeframe `yaml:"medium" json:"medium"`
	Long   Timeframe `yaml:"long" json:"long"`
}

// All returns the timeframes in short, medium, long order.
func (t TimeframeSet) All() []Timeframe {
	return []Timeframe{t.Short, t.Medium, t.Long}
}

// IndicatorSnapshot holds the indicator values computed from the most recent
// closed candles of one (symbol, timeframe) series.
type IndicatorSnapshot struct {
	RSI         float64 `json:"rsi"`
	EMAFast     float64 `json:"ema_fast"`
	EMAMid      float64 `json:"ema_mid"`
	EMASlow     float64 `json:"ema_slow"`
	BBUpper     float64 `json:"bb_upper"`
	BBMid       float64 `json:"bb_mid"`
	BBLower     float64 `json:"bb_lower"`
	VolumeRatio float64 `json:"volume_ratio"`
	Close       float64 `json:"close"` // most recent closed candle
}

// ScoreResult is the confluence scoring outcome for one (symbol, timeframe).
type ScoreResult struct {
	Direction      Direction `json:"direction"`
	Score          int       `json:"score"` // 0-10
	Reasons        []string  `json:"reasons"`
	ReferencePrice float64   `json:"reference_price"`
}

// AlertDecision is the final artifact handed to the notification collaborator.
type AlertDecision struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	Direction  Direction `json:"direction"`
	Score      int       `json:"score"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	RiskReward float64   `json:"risk_reward"`
	Reasons    []string  `json:"reasons"`
	RSIShort   float64   `json:"rsi_short,omitempty"`
	RSIMedium  float64   `json:"rsi_medium"`
	RSILong    float64   `json:"rsi_long,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CycleSummary aggregates one scan cycle's outcome.
type CycleSummary struct {
	Started    time.Time       `json:"started"`
	Duration   time.Duration   `json:"duration"`
	Scanned    int             `json:"scanned"`
	Skipped    int             `json:"skipped"`
	LongCount  int             `json:"long_count"`
	ShortCount int             `json:"short_count"`
	Dispatched int             `json:"dispatched"`
	Suppressed int             `json:"suppressed"`
	Alerts     []AlertDecision `json:"alerts"`
}

// Signals returns the total number of directional signals found in the cycle.
func (s CycleSummary) Signals() int { return s.LongCount + s.ShortCount }
