package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendsignal/config"
	"trendsignal/internal/marketdata"
)

var importCmd = &cobra.Command{
	Use:   "import --csv candles.csv",
	Short: "Load OHLCV candles from a CSV file into the SQLite candle store",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("csv")
		if path == "" {
			return fmt.Errorf("--csv is required")
		}

		// Importing touches only the candle store; venue settings are not
		// required.
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		symbol := cfg.Symbol
		if cmd.Flags().Changed("symbol") {
			symbol, _ = cmd.Flags().GetString("symbol")
		}
		timeframe := cfg.Timeframe
		if cmd.Flags().Changed("timeframe") {
			timeframe, _ = cmd.Flags().GetString("timeframe")
		}
		cfg.Symbol, cfg.Timeframe = symbol, timeframe
		if err := cfg.ValidateStore(); err != nil {
			return err
		}

		n, err := importCSV(cmd, path, cfg.SQLitePath, symbol, timeframe)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s %s candles into %s\n", n, symbol, timeframe, cfg.SQLitePath)
		return nil
	},
}

func init() {
	importCmd.Flags().String("csv", "", "CSV file with timestamp,open,high,low,close,volume")
	importCmd.Flags().String("symbol", "", "symbol to store the candles under (defaults to SYMBOL)")
	importCmd.Flags().String("timeframe", "", "timeframe of the candles (defaults to TIMEFRAME)")
}

func importCSV(cmd *cobra.Command, csvPath, dbPath, symbol, timeframe string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	series, err := marketdata.ReadCSV(f)
	if err != nil {
		return 0, err
	}

	w, err := openArchive(dbPath)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	if err := w.WriteCandles(cmd.Context(), symbol, timeframe, series); err != nil {
		return 0, err
	}
	return len(series), nil
}
