package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vigil/pkg/logger"
	"vigil/pkg/model"
)

// Config represents the application configuration
type Config struct {
	Watchlist  WatchlistConfig  `yaml:"watchlist"`
	Detector   DetectorConfig   `yaml:"detector"`
	Scan       ScanConfig       `yaml:"scan"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    logger.Config    `yaml:"logging"`
}

// WatchlistConfig holds the symbols and timeframes under surveillance
type WatchlistConfig struct {
	Symbols    []string           `yaml:"symbols"`
	Timeframes model.TimeframeSet `yaml:"timeframes"`
}

// DetectorConfig holds scoring and filtering thresholds
type DetectorConfig struct {
	RSIPeriod      int     `yaml:"rsi_period"`
	RSIOversold    float64 `yaml:"rsi_oversold"`
	RSIOverbought  float64 `yaml:"rsi_overbought"`
	BBProximityPct float64 `yaml:"bb_proximity_pct"` // % distance to band that counts as "near"
	VolumeRatioMin float64 `yaml:"volume_ratio_min"`
	ScoreThreshold int     `yaml:"score_threshold"`
	StopPct        float64 `yaml:"stop_pct"`   // adverse offset from entry
	TargetPct      float64 `yaml:"target_pct"` // favorable offset from entry
}

// ScanConfig holds orchestration settings
type ScanConfig struct {
	Interval      time.Duration `yaml:"interval"`       // time between scan cycles
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`  // per-request deadline
	PacePerMinute int           `yaml:"pace_per_minute"` // evenly spaced fetch requests per minute
	CandleLimit   int           `yaml:"candle_limit"`   // candles per fetch, >= 200 for EMA-200
	CooldownHours int           `yaml:"cooldown_hours"`
}

// ExchangeConfig holds market-data provider settings
type ExchangeConfig struct {
	Primary   string `yaml:"primary"`   // bybit or binance
	RateLimit int    `yaml:"rate_limit"` // requests per minute per provider
}

// TelegramConfig holds notification transport credentials
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// CalendarConfig holds static economic events used for alert annotations
type CalendarConfig struct {
	HorizonDays int             `yaml:"horizon_days"`
	Events      []CalendarEvent `yaml:"events"`
}

// CalendarEvent is a single scheduled macro event
type CalendarEvent struct {
	Name string    `yaml:"name"`
	Time time.Time `yaml:"time"`
}

// MetricsConfig controls the optional Prometheus listener
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Watchlist: WatchlistConfig{
			Symbols: []string{
				"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT",
				"ADAUSDT", "DOGEUSDT", "LINKUSDT", "AVAXUSDT", "MATICUSDT",
				"DOTUSDT", "UNIUSDT", "LTCUSDT", "ATOMUSDT", "ETCUSDT",
			},
			Timeframes: model.TimeframeSet{Short: "1h", Medium: "4h", Long: "1d"},
		},
		Detector: DetectorConfig{
			RSIPeriod:      14,
			RSIOversold:    30,
			RSIOverbought:  70,
			BBProximityPct: 2.0,
			VolumeRatioMin: 1.2,
			ScoreThreshold: 5,
			StopPct:        3.0,
			TargetPct:      4.0,
		},
		Scan: ScanConfig{
			Interval:      30 * time.Minute,
			FetchTimeout:  30 * time.Second,
			PacePerMinute: 120,
			CandleLimit:   220,
			CooldownHours: 6,
		},
		Exchange: ExchangeConfig{
			Primary:   "bybit",
			RateLimit: 120,
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Calendar: CalendarConfig{
			HorizonDays: 7,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9290",
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with environment variables if set
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("WATCHLIST_SYMBOLS"); v != "" {
		cfg.Watchlist.Symbols = strings.Split(v, ",")
	}

	return cfg, nil
}

// Validate checks if the configuration is valid, including the notification
// transport credentials.
func (c *Config) Validate() error {
	if err := c.ValidateScanOnly(); err != nil {
		return err
	}
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram credentials are required (set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID)")
	}
	return nil
}

// ValidateScanOnly checks everything a scan needs except the Telegram
// credentials. Dry runs have no transport, but a broken watchlist or candle
// limit must still fail fast.
func (c *Config) ValidateScanOnly() error {
	if len(c.Watchlist.Symbols) == 0 {
		return fmt.Errorf("watchlist.symbols cannot be empty")
	}
	tf := c.Watchlist.Timeframes
	if tf.Short == "" || tf.Medium == "" || tf.Long == "" {
		return fmt.Errorf("watchlist.timeframes requires short, medium and long")
	}
	if c.Detector.ScoreThreshold < 1 || c.Detector.ScoreThreshold > 10 {
		return fmt.Errorf("detector.score_threshold must be in [1, 10]")
	}
	if c.Scan.CandleLimit < 200 {
		return fmt.Errorf("scan.candle_limit must be at least 200 for the slow EMA")
	}
	if c.Scan.Interval < time.Minute {
		return fmt.Errorf("scan.interval must be at least 1 minute")
	}
	if c.Scan.CooldownHours < 1 {
		return fmt.Errorf("scan.cooldown_hours must be at least 1")
	}
	if c.Exchange.Primary != "bybit" && c.Exchange.Primary != "binance" {
		return fmt.Errorf("exchange.primary must be 'bybit' or 'binance', got %q", c.Exchange.Primary)
	}
	return nil
}
