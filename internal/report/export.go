package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/opsdash/servicekpi/internal/loader"
)

// WriteTable serializes the queried view of the unified table as CSV.
// This is the round-trip path: the output reads back through the loader as
// a base source with the same record count and column set.
func (a *Assembler) WriteTable(w io.Writer, s *Session, q Query) error {
	a.diag.RecordExport()
	return loader.Write(w, a.View(s, q))
}

// WriteReport serializes the full exportable document: the table section
// followed by a KPI summary section, separated by a blank line. It mirrors
// the original two-sheet workbook export.
func (a *Assembler) WriteReport(w io.Writer, s *Session, q Query) error {
	a.diag.RecordExport()
	if err := loader.Write(w, a.View(s, q)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	snap := a.Snapshot(s, q)
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Metric", "Value", "Goal", "Tier"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, e := range snap.Entries {
		row := []string{
			e.Label,
			strconv.FormatFloat(e.Value, 'f', -1, 64),
			strconv.FormatFloat(e.Goal, 'f', -1, 64),
			string(e.Rendering.Tier),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
