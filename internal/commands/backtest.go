package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fxmonitor/config"
	"fxmonitor/internal/backtest"
	"fxmonitor/internal/detector"
	"fxmonitor/internal/logger"
	"fxmonitor/internal/provider"
)

var (
	btPair           string
	btEntryKind      string
	btEntryParams    string
	btExitSignalKind string
	btExitSignalPar  string
	btMaxHoldingDays int
	btStopLossPct    float64
	btTakeProfitPct  float64
	btCapital        float64
	btMultiple       bool
	btYears          int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a condition against history and print the result",
	Long: `Fetch daily history for a pair, enter a position whenever the entry
condition triggers, close it by the first exit rule that fires
(stop-loss, take-profit, max holding days, exit signal), and print the
trades, equity curve, and summary as JSON.

Examples:
  fxmonitor backtest --pair EUR/USD \
    --entry-kind percentage_change \
    --entry-params '{"change_threshold":2,"detection_period":30}' \
    --max-holding-days 10 --stop-loss 3 --capital 10000 --multiple`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btPair, "pair", "EUR/USD", "currency pair, BASE/QUOTE")
	backtestCmd.Flags().StringVar(&btEntryKind, "entry-kind", "", "entry condition kind (required)")
	backtestCmd.Flags().StringVar(&btEntryParams, "entry-params", "{}", "entry condition parameters, JSON")
	backtestCmd.Flags().StringVar(&btExitSignalKind, "exit-signal-kind", "", "optional exit condition kind")
	backtestCmd.Flags().StringVar(&btExitSignalPar, "exit-signal-params", "{}", "exit condition parameters, JSON")
	backtestCmd.Flags().IntVar(&btMaxHoldingDays, "max-holding-days", 0, "close after N days held (0 disables)")
	backtestCmd.Flags().Float64Var(&btStopLossPct, "stop-loss", 0, "stop loss percent (0 disables)")
	backtestCmd.Flags().Float64Var(&btTakeProfitPct, "take-profit", 0, "take profit percent (0 disables)")
	backtestCmd.Flags().Float64Var(&btCapital, "capital", 10000, "initial capital")
	backtestCmd.Flags().BoolVar(&btMultiple, "multiple", false, "re-enter after each exit")
	backtestCmd.Flags().IntVar(&btYears, "years", 10, "years of history to fetch")
	backtestCmd.MarkFlagRequired("entry-kind")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := logger.Init("fxmonitor-backtest", logger.ParseLevel(cfg.LogLevel))

	entry, err := detector.FromConfig(detector.Kind(btEntryKind), json.RawMessage(btEntryParams))
	if err != nil {
		return fmt.Errorf("entry condition: %w", err)
	}
	exit := backtest.ExitPolicy{
		MaxHoldingDays: btMaxHoldingDays,
		StopLossPct:    btStopLossPct,
		TakeProfitPct:  btTakeProfitPct,
	}
	if btExitSignalKind != "" {
		sig, err := detector.FromConfig(detector.Kind(btExitSignalKind), json.RawMessage(btExitSignalPar))
		if err != nil {
			return fmt.Errorf("exit signal: %w", err)
		}
		exit.Signal = sig
	}

	base, quote, err := provider.SplitPair(btPair)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	prov := provider.New(cfg.ProviderURL, log)
	now := time.Now().UTC()
	series, err := prov.History(ctx, base, quote, now.AddDate(-btYears, 0, 0), now)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}
	log.WithField("bars", series.Len()).Info("history loaded")

	result, err := backtest.Run(series, entry, exit, btCapital, btMultiple)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
