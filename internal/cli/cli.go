// Package cli implements the salon-events command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/calendar"
	"github.com/mfarias/salon-events/internal/config"
	"github.com/mfarias/salon-events/internal/dispatch"
	"github.com/mfarias/salon-events/internal/extract"
	"github.com/mfarias/salon-events/internal/logger"
	"github.com/mfarias/salon-events/internal/pipeline"
	"github.com/mfarias/salon-events/internal/record"
	"github.com/mfarias/salon-events/internal/session"
	"github.com/mfarias/salon-events/internal/storage"
)

// Exit codes. ExitNewRecords lets cron wrappers detect that a pass found
// something new without parsing output.
const (
	ExitSuccess    = 0
	ExitError      = 1
	ExitNewRecords = 2
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
	flagDryRun  bool
	flagHeadful bool
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salon-events",
		Short: "Extract booking records from the legacy calendar and reconcile them downstream",
		Long: `salon-events scans the browser-rendered booking calendar, extracts each
event's detail fields, classifies every record as new/modified/unchanged
against the last synchronized snapshot, and delivers changes to the
coordination store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "Path to config file")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		if _, ok := err.(newRecordsError); ok {
			return ExitNewRecords
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// newRecordsError carries the ExitNewRecords code through cobra's error
// return without being reported as a failure.
type newRecordsError struct{}

func (newRecordsError) Error() string { return "new records found" }

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one discovery/extraction/sync pass",
		RunE:  runScan,
	}
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Classify but do not deliver to the store")
	cmd.Flags().BoolVar(&flagHeadful, "headful", false, "Run the browser with a visible window")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	surface, cleanup, err := browser.NewChrome(ctx, !flagHeadful)
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer cleanup()

	report, err := runPass(ctx, cfg, surface, flagDryRun)
	if err != nil {
		return err
	}

	format := OutputFormat(strings.ToLower(flagFormat))
	if err := WriteReport(os.Stdout, report, format, flagVerbose); err != nil {
		return err
	}
	if flagVerbose {
		logger.Debug("pass metrics", logger.Fields(logger.GetMetricsSnapshot()))
	}

	if report.Classified[record.New] > 0 {
		return newRecordsError{}
	}
	return nil
}

// runPass assembles the pipeline for one pass over the given surface.
func runPass(ctx context.Context, cfg *config.Config, surface browser.Surface, dryRun bool) (*pipeline.Report, error) {
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	dispatcher, closeDispatcher, err := buildDispatcher(cfg, dryRun)
	if err != nil {
		return nil, err
	}
	defer closeDispatcher()

	sessions := session.NewManager(surface, cfg.Credentials, cfg.Selectors, cfg.NavTimeout)
	p := &pipeline.Pipeline{
		Sessions:   sessions,
		Navigator:  calendar.NewNavigator(surface, cfg.Selectors, cfg.NavTimeout),
		Extractor:  extract.NewExtractor(surface, sessions, cfg.Selectors, cfg.NavTimeout, cfg.PanelDelay),
		Dispatcher: dispatcher,
		Store:      store,
		Criteria:   cfg.Filters,
	}
	return p.Run(ctx)
}

// buildDispatcher picks the delivery target: dry-run printer, remote HTTP
// store when sync_url is set, local sqlite store otherwise.
func buildDispatcher(cfg *config.Config, dryRun bool) (dispatch.Dispatcher, func(), error) {
	noop := func() {}
	if dryRun {
		return dispatch.NewDryRunDispatcher(os.Stdout), noop, nil
	}
	if cfg.SyncURL != "" {
		return dispatch.NewHTTPDispatcher(cfg.SyncURL), noop, nil
	}
	d, err := dispatch.NewSQLiteDispatcher(cfg.SyncDBPath)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

func loadConfig() (*config.Config, error) {
	if flagVerbose {
		logger.SetDefault(logger.New(logger.LevelDebug, os.Stderr))
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "salon-events.yaml"
	}
	return home + "/.config/salon-events/config.yaml"
}
