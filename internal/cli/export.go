package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mfarias/salon-events/internal/export"
	"github.com/mfarias/salon-events/internal/record"
	"github.com/mfarias/salon-events/internal/storage"
)

var (
	flagExportOut    string
	flagExportICSDir string
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the last synchronized records as CSV (and optionally ICS)",
		RunE:  runExport,
	}
	cmd.Flags().StringVar(&flagExportOut, "out", "", "CSV output path (default stdout)")
	cmd.Flags().StringVar(&flagExportICSDir, "ics-dir", "", "Also write one .ics file per record into this directory")
	return cmd
}

func runExport(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	index, err := store.LoadIndex()
	if err != nil {
		return fmt.Errorf("loading known index: %w", err)
	}

	records := make([]*record.Record, 0, index.Len())
	for _, stored := range index.Records {
		records = append(records, stored.Record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].EventCode < records[j].EventCode
	})

	out := os.Stdout
	if flagExportOut != "" {
		f, err := os.Create(flagExportOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", flagExportOut, err)
		}
		defer f.Close()
		out = f
	}
	if err := export.WriteCSV(out, records); err != nil {
		return err
	}

	if flagExportICSDir != "" {
		if err := os.MkdirAll(flagExportICSDir, 0755); err != nil {
			return fmt.Errorf("creating ICS directory: %w", err)
		}
		for _, rec := range records {
			path := filepath.Join(flagExportICSDir, rec.EventCode+".ics")
			if err := os.WriteFile(path, []byte(export.GenerateICS(rec)), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
		}
	}
	return nil
}
