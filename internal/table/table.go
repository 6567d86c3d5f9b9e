package table

import (
	"sort"
	"strings"
)

// Value is a single cell. Present distinguishes a cell that exists in the
// source (possibly as an empty string) from one that was never there, such
// as a column introduced by an unmatched left join.
type Value struct {
	Raw     string
	Present bool
}

// Missing is the absent-cell sentinel.
var Missing = Value{}

// String constructs a present value.
func String(s string) Value {
	return Value{Raw: s, Present: true}
}

// IsBlank reports whether the value is missing or present but empty after
// trimming.
func (v Value) IsBlank() bool {
	return !v.Present || strings.TrimSpace(v.Raw) == ""
}

// Record maps column name to cell value. Columns absent from the map are
// treated as missing.
type Record map[string]Value

// Get returns the cell for a column, or Missing if the record has none.
func (r Record) Get(col string) Value {
	if v, ok := r[col]; ok {
		return v
	}
	return Missing
}

// Table is an ordered collection of records sharing a column set. Column
// names are whitespace-trimmed on construction and case-sensitive after
// that. A built table is never mutated; filters return copies.
type Table struct {
	columns []string
	index   map[string]int
	records []Record
}

// New creates an empty table with the given columns. Header whitespace is
// trimmed; duplicate or empty headers after trimming are dropped.
func New(columns []string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.ensureColumn(strings.TrimSpace(c))
	}
	return t
}

func (t *Table) ensureColumn(name string) {
	if name == "" {
		return
	}
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table declares the column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Append adds a record. Cells for undeclared columns extend the schema.
func (t *Table) Append(rec Record) {
	stored := make(Record, len(rec))
	for col, v := range rec {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		t.ensureColumn(col)
		stored[col] = v
	}
	t.records = append(t.records, stored)
}

// AppendRow adds a record from values aligned with the declared columns.
// Short rows leave trailing columns missing; extra values are ignored.
func (t *Table) AppendRow(values []string) {
	rec := make(Record, len(t.columns))
	for i, col := range t.columns {
		if i < len(values) {
			rec[col] = String(values[i])
		}
	}
	t.records = append(t.records, rec)
}

// Record returns the record at index i.
func (t *Table) Record(i int) Record {
	return t.records[i]
}

// Records returns all records in order.
func (t *Table) Records() []Record {
	return t.records
}

// Filter returns a new table containing the records for which keep returns
// true. The column set is preserved.
func (t *Table) Filter(keep func(Record) bool) *Table {
	if t == nil {
		return nil
	}
	out := New(t.columns)
	for _, rec := range t.records {
		if keep(rec) {
			out.records = append(out.records, rec)
		}
	}
	return out
}

// DistinctValues returns the sorted distinct non-blank values of a column.
func (t *Table) DistinctValues(col string) []string {
	if t == nil || !t.HasColumn(col) {
		return nil
	}
	seen := make(map[string]struct{})
	for _, rec := range t.records {
		v := rec.Get(col)
		if v.IsBlank() {
			continue
		}
		seen[strings.TrimSpace(v.Raw)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
