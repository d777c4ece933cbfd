// Package report renders model statistics as markdown tables.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/dadacore/markov/brain"
)

// Formatter renders statistics as markdown tables
type Formatter struct {
	// MaxWidth is the maximum width for a value column
	MaxWidth int
	// TruncateString is appended to truncated values
	TruncateString string
}

// NewFormatter creates a formatter with default settings
func NewFormatter() *Formatter {
	return &Formatter{
		MaxWidth:       60,
		TruncateString: "...",
	}
}

// FormatStats renders a brain's statistics as a two-column table
func (f *Formatter) FormatStats(stats brain.Stats) string {
	rows := [][]string{
		{"backend", stats.Backend},
		{"location", stats.Location},
		{"order", f.formatValue(stats.Order)},
	}
	if stats.Surveyed {
		sum := stats.Summary
		rows = append(rows,
			[]string{"forward roots", f.formatValue(sum.ForwardRoots)},
			[]string{"backward roots", f.formatValue(sum.BackwardRoots)},
			[]string{"contexts", f.formatValue(sum.Contexts)},
			[]string{"transitions", f.formatValue(sum.Transitions)},
			[]string{"branching contexts", f.formatValue(sum.Branching)},
		)
	}
	c := stats.Cache
	rows = append(rows,
		[]string{"cache size", f.formatValue(c.Size)},
		[]string{"cache dirty", f.formatValue(c.Dirty)},
		[]string{"cache hits", f.formatValue(c.Hits)},
		[]string{"cache misses", f.formatValue(c.Misses)},
		[]string{"cache hit rate", f.formatValue(hitRate(c.Hits, c.Misses))},
		[]string{"cache evictions", f.formatValue(c.Evictions)},
		[]string{"cache write-backs", f.formatValue(c.WriteBacks)},
	)

	out := f.formatTable([]string{"metric", "value"}, rows)
	if !stats.Surveyed {
		out += "\n_Backend does not support scanning; root counts unavailable_\n"
	}
	return out
}

// FormatLearnResult summarises a batch learn as a one-row table
func (f *Formatter) FormatLearnResult(res brain.LearnResult, elapsed time.Duration) string {
	return f.formatTable(
		[]string{"lines", "learned", "skipped", "elapsed"},
		[][]string{{
			f.formatValue(res.Lines),
			f.formatValue(res.Learned),
			f.formatValue(res.Skipped),
			f.formatValue(elapsed),
		}},
	)
}

func (f *Formatter) formatTable(headers []string, rows [][]string) string {
	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	return tableString.String()
}

// formatValue converts a value to its display form
func (f *Formatter) formatValue(val interface{}) string {
	var s string
	switch v := val.(type) {
	case nil:
		s = "-"
	case string:
		s = v
	case int:
		s = fmt.Sprintf("%d", v)
	case int64:
		s = fmt.Sprintf("%d", v)
	case float64:
		s = fmt.Sprintf("%.2f", v)
	case time.Duration:
		s = v.Round(time.Millisecond).String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if f.MaxWidth > 0 && len(s) > f.MaxWidth {
		s = s[:f.MaxWidth-len(f.TruncateString)] + f.TruncateString
	}
	return s
}

func hitRate(hits, misses int64) interface{} {
	if hits+misses == 0 {
		return nil
	}
	return float64(hits) / float64(hits+misses)
}
