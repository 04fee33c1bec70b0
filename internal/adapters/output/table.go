// internal/adapters/output/table.go
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/usecases"
)

// WriteTable imprime un resumen en texto plano, sin colores. Se usa para
// summary.txt y para terminales sin estilos.
func WriteTable(w io.Writer, r *usecases.Report) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "=== droidsweep results ===\n")
	fmt.Fprintf(tw, "Bundle:\t%s\n", r.Source)
	fmt.Fprintf(tw, "Report:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Duration:\t%s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintf(tw, "Indicators:\t%d keywords (%s)\n\n", r.Indicators.Keywords, orDash(r.Indicators.Fingerprint))

	fmt.Fprintln(tw, "MODULE\tRECORDS\tDETECTIONS\tERROR")
	fmt.Fprintln(tw, "------\t-------\t----------\t-----")
	for _, m := range r.Modules {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", m.Name, m.Records, m.Detections, orDash(m.Error))
	}
	fmt.Fprintln(tw)

	if len(r.Detections) == 0 {
		fmt.Fprintln(tw, "No detections.")
	} else {
		fmt.Fprintln(tw, "LEVEL\tTITLE\tINDICATOR\tMESSAGE")
		fmt.Fprintln(tw, "-----\t-----\t---------\t-------")
		for _, d := range r.Detections {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Level, d.Title, orDash(d.IOC), oneLine(d.Message))
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	if counts := r.CountByLevel(); len(counts) > 0 {
		levels := make([]domain.AlertLevel, 0, len(counts))
		for l := range counts {
			levels = append(levels, l)
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i] > levels[j] })
		fmt.Fprintln(w, "\nBy level:")
		for _, l := range levels {
			fmt.Fprintf(w, "  - %s: %d\n", l, counts[l])
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
