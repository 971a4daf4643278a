package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/quotaguard/pkg/throttle"
	"mercator-hq/quotaguard/pkg/throttle/storage"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is aligned plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// Table is a rectangular rendering of command output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Tabular is implemented by results that can be rendered as a table.
type Tabular interface {
	Table() Table
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// NewFormatter creates a formatter for format. An empty format means text.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatText, "":
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or csv)", format)
	}
}

// TextFormatter writes tables as aligned columns and anything else with %v.
type TextFormatter struct{}

// FormatTo writes data to w in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case Tabular:
		table := v.Table()
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		if len(table.Headers) > 0 {
			fmt.Fprintln(tw, strings.Join(table.Headers, "\t"))
		}
		for _, row := range table.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	case []string:
		for _, line := range v {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats tables as CSV.
type CSVFormatter struct{}

// FormatTo writes data to w in CSV format. data must be Tabular.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	tab, ok := data.(Tabular)
	if !ok {
		return fmt.Errorf("csv output is not supported for %T", data)
	}
	table := tab.Table()

	csvWriter := csv.NewWriter(w)
	if len(table.Headers) > 0 {
		if err := csvWriter.Write(table.Headers); err != nil {
			return err
		}
	}
	if err := csvWriter.WriteAll(table.Rows); err != nil {
		return err
	}
	return csvWriter.Error()
}

// SnapshotTable renders usage snapshots, one row per service type.
type SnapshotTable []throttle.Snapshot

// Table implements Tabular.
func (s SnapshotTable) Table() Table {
	t := Table{Headers: []string{"SERVICE", "MONTH", "USED", "LIMIT", "PCT", "PENDING", "PER_MINUTE", "DISABLED", "LAST_FLUSH"}}
	for _, snap := range s {
		pct := 0.0
		if snap.MonthlyLimit > 0 {
			pct = float64(snap.MonthlyCount) / float64(snap.MonthlyLimit) * 100
		}
		lastFlush := "never"
		if !snap.LastFlush.IsZero() {
			lastFlush = snap.LastFlush.UTC().Format(time.RFC3339)
		}
		t.Rows = append(t.Rows, []string{
			snap.ServiceType,
			snap.Month,
			strconv.FormatInt(snap.MonthlyCount, 10),
			strconv.FormatInt(snap.MonthlyLimit, 10),
			strconv.FormatFloat(pct, 'f', 1, 64),
			strconv.FormatInt(snap.PendingFlush, 10),
			strconv.Itoa(snap.PerMinute),
			strconv.FormatBool(snap.Disabled),
			lastFlush,
		})
	}
	return t
}

// HistoryTable renders durable daily usage records.
type HistoryTable []storage.DailyUsageRecord

// Table implements Tabular.
func (h HistoryTable) Table() Table {
	t := Table{Headers: []string{"DATE", "SERVICE", "COUNT"}}
	for _, rec := range h {
		t.Rows = append(t.Rows, []string{
			storage.DateKey(rec.Date),
			rec.ServiceType,
			strconv.FormatInt(rec.Count, 10),
		})
	}
	return t
}
