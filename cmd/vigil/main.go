package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vigil/internal/calendar"
	"vigil/internal/config"
	"vigil/internal/cooldown"
	"vigil/internal/daemon"
	"vigil/internal/metrics"
	"vigil/internal/notify"
	"vigil/internal/provider"
	"vigil/internal/ratelimit"
	"vigil/internal/scanner"
	sig "vigil/internal/signal"
	"vigil/pkg/logger"
	"vigil/pkg/model"
)

var (
	cfgFile    string
	symbolList string
	format     string
	dryRun     bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vigil",
		Short: "Crypto confluence signal scanner with Telegram alerts",
		Long: `Vigil scans a crypto watchlist across three timeframes, scores RSI,
Bollinger band and volume confluence, and alerts on setups that clear
the threshold.

Examples:
  vigil scan --dry-run
  vigil scan --symbols BTCUSDT,ETHUSDT --format json
  vigil watch --config config.yaml`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&symbolList, "symbols", "", "comma-separated symbol override")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan cycle and print the results",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	scanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log alerts instead of sending to Telegram")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan continuously until interrupted",
		RunE:  runWatch,
	}

	rootCmd.AddCommand(scanCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("loading config: %w", err)
	}
	if symbolList != "" {
		cfg.Watchlist.Symbols = strings.Split(symbolList, ",")
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, log, nil
}

// buildScanner assembles the full pipeline from config. The dry flag swaps
// the Telegram transport for a log notifier.
func buildScanner(cfg *config.Config, log zerolog.Logger, dry bool) (*scanner.Scanner, notify.Notifier, *metrics.Metrics) {
	var notifier notify.Notifier
	if dry || cfg.Telegram.BotToken == "" {
		notifier = notify.NewLogNotifier(log)
	} else {
		notifier = notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	m := metrics.New()
	s := scanner.NewScanner(scanner.Options{
		Watchlist:    cfg.Watchlist,
		Detector:     sig.NewDetector(cfg.Detector),
		Provider:     buildProvider(cfg),
		Ledger:       cooldown.NewLedger(time.Duration(cfg.Scan.CooldownHours) * time.Hour),
		Notifier:     notifier,
		Annotator:    calendar.New(cfg.Calendar),
		Pacer:        ratelimit.NewPacer(cfg.Scan.PacePerMinute),
		Metrics:      m,
		Log:          log,
		RSIPeriod:    cfg.Detector.RSIPeriod,
		CandleLimit:  cfg.Scan.CandleLimit,
		FetchTimeout: cfg.Scan.FetchTimeout,
	})
	return s, notifier, m
}

// buildProvider wires the primary exchange with the other as fallback.
func buildProvider(cfg *config.Config) provider.Provider {
	bybit := provider.NewBybitProvider(cfg.Exchange.RateLimit)
	binance := provider.NewBinanceProvider(cfg.Exchange.RateLimit)
	if cfg.Exchange.Primary == "binance" {
		return provider.NewFallbackProvider(binance, bybit)
	}
	return provider.NewFallbackProvider(bybit, binance)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
		cancel()
	}()
	return ctx, cancel
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	// A dry run has no Telegram dependency, so only the credential check
	// is relaxed.
	if dryRun {
		err = cfg.ValidateScanOnly()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, _, _ := buildScanner(cfg, log, dryRun)

	fmt.Printf("Scanning %d symbols (%s/%s/%s)...\n\n",
		len(cfg.Watchlist.Symbols),
		cfg.Watchlist.Timeframes.Short, cfg.Watchlist.Timeframes.Medium, cfg.Watchlist.Timeframes.Long)

	bar := progressbar.NewOptions(len(cfg.Watchlist.Symbols),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	summary := s.RunCycle(ctx)
	bar.Finish()
	fmt.Println()

	if format == "json" {
		return outputJSON(summary)
	}
	return outputTable(summary)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		// Best effort: tell the operator over Telegram before dying, if
		// the transport itself is configured.
		if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
			tn := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
			if sendErr := tn.Send(context.Background(), notify.FormatError(err.Error(), time.Now())); sendErr != nil {
				log.Warn().Err(sendErr).Msg("could not deliver config error notification")
			}
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, notifier, m := buildScanner(cfg, log, false)

	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(cfg.Metrics.Listen); err != nil {
				log.Error().Err(err).Str("listen", cfg.Metrics.Listen).Msg("metrics listener failed")
			}
		}()
		log.Info().Str("listen", cfg.Metrics.Listen).Msg("metrics listener started")
	}

	d := daemon.New(s, notifier, cfg.Watchlist.Symbols, cfg.Scan.Interval, log)
	return d.Run(ctx)
}

func outputTable(summary model.CycleSummary) error {
	if len(summary.Alerts) == 0 {
		fmt.Printf("No setups found. Scanned %d symbols (%d skipped, %d suppressed by cooldown) in %s\n",
			summary.Scanned, summary.Skipped, summary.Suppressed, summary.Duration.Round(time.Second))
		return nil
	}

	alerts := summary.Alerts
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Score != alerts[j].Score {
			return alerts[i].Score > alerts[j].Score
		}
		return alerts[i].Symbol < alerts[j].Symbol
	})

	fmt.Printf("Found %d setups:\n\n", len(alerts))

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Dir", "Score", "Entry", "Stop", "Target", "R/R"}),
	)
	for _, a := range alerts {
		table.Append([]string{
			a.Symbol,
			string(a.Direction),
			fmt.Sprintf("%d/10", a.Score),
			fmt.Sprintf("%.4f", a.Entry),
			fmt.Sprintf("%.4f", a.Stop),
			fmt.Sprintf("%.4f", a.Target),
			fmt.Sprintf("1:%.2f", a.RiskReward),
		})
	}
	table.Render()

	fmt.Println("\n--- Setup Details ---")
	for _, a := range alerts {
		fmt.Printf("\n[%s] %s %d/10\n", a.Symbol, a.Direction, a.Score)
		for _, reason := range a.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
		if a.RSIMedium > 0 {
			fmt.Printf("  RSI: %.1f (%s)\n", a.RSIMedium, a.Timeframe)
		}
	}

	fmt.Printf("\nScanned %d symbols in %s\n", summary.Scanned, summary.Duration.Round(time.Second))
	return nil
}

func outputJSON(summary model.CycleSummary) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
