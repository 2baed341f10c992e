package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trendsignal/config"
	"trendsignal/internal/api"
	"trendsignal/internal/logger"
	"trendsignal/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run evaluation cycles on a fixed interval (or once with --once)",
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		interval, _ := cmd.Flags().GetDuration("interval")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("interval") {
			cfg.Interval = interval
		}
		if once {
			cfg.Interval = 0
		}
		return runBot(cfg)
	},
}

func init() {
	runCmd.Flags().Bool("once", false, "run a single cycle and exit")
	runCmd.Flags().Duration("interval", 0, "time between cycles, e.g. 5m (overrides INTERVAL)")
}

func runBot(cfg config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	logger.Init("trendbot", level)

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.engine()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[trendbot] shutting down...")
		cancel()
	}()

	if cfg.Interval > 0 && cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, a.health, a.reg)
		srv.Mount("/api/", api.NewRouter(svc, a.oracle, cfg.Symbol))
		srv.Start()
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			srv.Stop(shutdownCtx)
		}()

		a.health.StartLivenessChecker(ctx, a.redisClient(), a.sqlDB(), 15*time.Second)
	}
	if cfg.Interval > 0 && a.publisher != nil {
		go a.publisher.RunReplay(ctx, 30*time.Second)
	}

	log.Printf("[trendbot] %s %s every %s, trade size %s, position mode %s",
		cfg.Symbol, cfg.Timeframe, cfg.Interval, cfg.TradeSize, cfg.PositionMode)
	return svc.Run(ctx, cfg.Interval)
}
