package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"trendsignal/config"
	"trendsignal/internal/indicator"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Fetch candles and print the last rows of the indicator frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, _ := cmd.Flags().GetInt("rows")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		src, closeSrc, err := newSource(cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		series, err := src.Fetch(ctx, cfg.Symbol, cfg.Timeframe, cfg.FetchLimit)
		if err != nil {
			return err
		}
		if err := series.Validate(); err != nil {
			return err
		}

		f := indicator.Compute(series, cfg.Params())
		fmt.Fprintf(os.Stdout, "%s %s: %d candles\n", cfg.Symbol, cfg.Timeframe, f.Len())
		renderFrame(os.Stdout, f, rows)
		return nil
	},
}

func init() {
	frameCmd.Flags().Int("rows", 20, "number of trailing rows to print")
}

var frameHeader = []string{
	"timestamp", "close", "atr", "upperband", "lowerband", "trend",
	"bb lower", "bb mid", "bb upper", "ewma", "ema",
}

// renderFrame prints the last n rows of f. Undefined values print as "-".
func renderFrame(w io.Writer, f *indicator.Frame, n int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(frameHeader)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	start := f.Len() - n
	if n <= 0 || start < 0 {
		start = 0
	}
	for i := start; i < f.Len(); i++ {
		r := f.Row(i)
		trend := "down"
		if r.InUptrend {
			trend = "up"
		}
		table.Append([]string{
			r.TS.UTC().Format("2006-01-02 15:04"),
			strconv.FormatFloat(r.Close, 'f', 4, 64),
			r.ATR.String(),
			r.Upper.String(),
			r.Lower.String(),
			trend,
			r.BBLower.String(),
			r.BBMid.String(),
			r.BBUpper.String(),
			strconv.FormatFloat(r.EWMA, 'f', 4, 64),
			strconv.FormatFloat(r.EMA, 'f', 4, 64),
		})
	}
	table.Render()
}
