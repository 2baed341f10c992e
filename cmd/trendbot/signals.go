package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"trendsignal/config"
	redisstore "trendsignal/internal/store/redis"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Show recently published signals, or follow new ones with --follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt64("count")
		follow, _ := cmd.Flags().GetBool("follow")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.RedisAddr == "" {
			return errNoRedis
		}
		r, err := redisstore.NewReader(redisstore.ReaderConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return err
		}
		defer r.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if !follow {
			msgs, err := r.Recent(ctx, cfg.Symbol, count)
			if err != nil {
				return err
			}
			renderSignals(cmd.OutOrStdout(), msgs)
			return nil
		}
		return followSignals(ctx, cmd.OutOrStdout(), r, cfg.Symbol)
	},
}

func init() {
	signalsCmd.Flags().Int64("count", 20, "number of recent signals to show")
	signalsCmd.Flags().Bool("follow", false, "stream new signals as they are published")
}

func followSignals(ctx context.Context, w io.Writer, r *redisstore.Reader, symbol string) error {
	out := make(chan redisstore.SignalMessage, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Subscribe(ctx, symbol, out) }()

	for {
		select {
		case m := <-out:
			fmt.Fprintf(w, "%s [%s] %s %s at %.4f (%s)\n",
				m.TS.UTC().Format("2006-01-02 15:04:05"), m.CycleID, m.Action, m.Symbol, m.Price, m.Label)
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func renderSignals(w io.Writer, msgs []redisstore.SignalMessage) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"time", "symbol", "action", "price", "signal", "cycle"})
	table.SetAutoFormatHeaders(false)
	for _, m := range msgs {
		table.Append([]string{
			m.TS.UTC().Format("2006-01-02 15:04"),
			m.Symbol,
			m.Action,
			fmt.Sprintf("%.4f", m.Price),
			m.Label,
			m.CycleID,
		})
	}
	table.Render()
}
