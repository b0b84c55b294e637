package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/logger"
	"github.com/mfarias/salon-events/internal/record"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run scan passes on the configured cron schedule until interrupted",
		RunE:  runWatch,
	}
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Classify but do not deliver to the store")
	cmd.Flags().BoolVar(&flagHeadful, "headful", false, "Run the browser with a visible window")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", logger.Fields{"signal": sig.String()})
		cancel()
	}()

	// The browser is exclusively owned, so overlapping passes are never
	// allowed: a tick that fires while a pass is running is dropped.
	var running sync.Mutex

	runOnce := func() {
		if !running.TryLock() {
			logger.Warn("previous pass still running, skipping tick", nil)
			return
		}
		defer running.Unlock()

		surface, cleanup, err := browser.NewChrome(ctx, !flagHeadful)
		if err != nil {
			logger.Error("starting browser", nil, err)
			return
		}
		defer cleanup()

		report, err := runPass(ctx, cfg, surface, flagDryRun)
		if err != nil {
			logger.Error("pass failed", nil, err)
			return
		}
		logger.Info("scheduled pass finished", logger.Fields{
			"discovered": report.Discovered,
			"extracted":  report.Extracted,
			"new":        report.Classified[record.New],
			"skipped":    len(report.Skips),
		})
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ScanCron, runOnce); err != nil {
		return fmt.Errorf("invalid scan_cron %q: %w", cfg.ScanCron, err)
	}

	logger.Info("watch mode started", logger.Fields{"schedule": cfg.ScanCron})
	c.Start()
	defer c.Stop()

	// First pass immediately; subsequent passes follow the schedule.
	runOnce()

	<-ctx.Done()
	return nil
}
