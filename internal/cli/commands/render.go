package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// OutputMode selects how results are written.
type OutputMode string

// Output modes.
const (
	ModeAuto  OutputMode = "auto"
	ModeTable OutputMode = "table"
	ModeJSON  OutputMode = "json"
)

// ResolveMode turns "auto" into table for terminals and JSON otherwise.
func ResolveMode(mode string, w io.Writer) OutputMode {
	switch OutputMode(mode) {
	case ModeTable, ModeJSON:
		return OutputMode(mode)
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return ModeTable
	}
	return ModeJSON
}

func renderRecords(w io.Writer, mode OutputMode, records []criteria.Record) error {
	if mode == ModeJSON {
		if records == nil {
			records = []criteria.Record{}
		}
		return renderJSON(w, records)
	}
	return renderTable(w, records)
}

func renderTable(w io.Writer, records []criteria.Record) error {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	cols := columnsOf(records)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, rec := range records {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			v, ok := rec[col]
			if !ok {
				row[i] = ""
				continue
			}
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(records))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderJSONLine writes rec as one line of JSON.
func renderJSONLine(w io.Writer, rec criteria.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// columnsOf returns the union of record keys, sorted.
func columnsOf(records []criteria.Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
