package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/mfarias/salon-events/internal/dispatch"
	"github.com/mfarias/salon-events/internal/pipeline"
	"github.com/mfarias/salon-events/internal/record"
)

// OutputFormat specifies the report output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteReport writes the pass report in the specified format.
func WriteReport(w io.Writer, report *pipeline.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatText:
		return writeText(w, report, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeText(w io.Writer, report *pipeline.Report, verbose bool) error {
	fmt.Fprintf(w, "Pass finished in %s\n", report.FinishedAt.Sub(report.StartedAt).Round(1e6))
	fmt.Fprintf(w, "  dates scanned: %d\n", report.DatesScanned)
	fmt.Fprintf(w, "  discovered:    %d\n", report.Discovered)
	fmt.Fprintf(w, "  extracted:     %d\n", report.Extracted)
	fmt.Fprintf(w, "  skipped:       %d\n", len(report.Skips))

	fmt.Fprintln(w, "Classification:")
	for _, c := range []record.Classification{record.New, record.ModifiedData, record.ModifiedIdentity, record.Unchanged} {
		fmt.Fprintf(w, "  %-18s %d\n", string(c)+":", report.Classified[c])
	}

	if len(report.Outcomes) > 0 {
		fmt.Fprintln(w, "Store outcomes:")
		for _, o := range []dispatch.Outcome{dispatch.Created, dispatch.Updated, dispatch.Skipped} {
			if n, ok := report.Outcomes[o]; ok {
				fmt.Fprintf(w, "  %-18s %d\n", string(o)+":", n)
			}
		}
	}

	// Every skip is reported individually so the operator can see exactly
	// which dates and codes were not processed and why.
	if len(report.Skips) > 0 {
		fmt.Fprintln(w, "Skipped units:")
		skips := append([]pipeline.Skip(nil), report.Skips...)
		sort.SliceStable(skips, func(i, j int) bool { return skips[i].Unit < skips[j].Unit })
		for _, s := range skips {
			fmt.Fprintf(w, "  [%s] %s: %s\n", s.Unit, s.Key, s.Reason)
		}
	}

	if verbose && len(report.Records) > 0 {
		fmt.Fprintln(w, "Records:")
		for _, rec := range report.Records {
			res := report.Results[rec.EventCode]
			fmt.Fprintf(w, "  %s  %-12s %s | %s | %s\n",
				rec.EventCode, res.Classification, rec.EventDate, rec.Venue, rec.ClientName)
		}
	}
	return nil
}
