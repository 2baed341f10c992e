package main

import (
	"log"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "trendbot",
	Short: "Supertrend / Bollinger / EMA crossover signal bot",
	Long: `trendbot fetches OHLCV candles for one instrument, computes Supertrend,
Bollinger Bands, EWMA and EMA, and places a market order for every signal
that fires against the last candle.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(runCmd, frameCmd, importCmd, signalsCmd)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cobra.CheckErr(rootCmd.Execute())
}
