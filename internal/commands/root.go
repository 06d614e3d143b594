// Package commands wires the CLI surface: the long-running server and
// the one-shot backtest runner.
package commands

import (
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "fxmonitor",
	Short: "Currency pair market-condition monitor",
	Long: `fxmonitor watches daily currency pair rates, evaluates configured
market conditions (trend moves, historical extremes, price levels,
volatility spikes, moving-average crossovers), and delivers alerts by
email, webhook, or WebSocket. It also replays conditions against
history as a trading backtest.`,
	Version: "1.0.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "",
		"log level (debug, info, warn, error); overrides LOG_LEVEL")
}
