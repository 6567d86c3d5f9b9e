// Package loader reads spreadsheet-like CSV exports into tables and writes
// tables back out. It makes no assumption about the upstream tool beyond
// "rows under a header line": encodings are detected, headers trimmed, and
// ragged rows tolerated.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/opsdash/servicekpi/internal/table"
)

// BOM prefixes checked during encoding detection.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Warning is a non-fatal issue found while reading a source.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result is a parsed table plus any row-level warnings.
type Result struct {
	Table    *table.Table
	Encoding string
	Warnings []Warning
}

// Read parses CSV data from r into a table, detecting the encoding first.
// Ragged rows are padded or truncated to the header width with a warning
// rather than rejected.
func Read(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	decoded, encName, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(decoded))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty source: no header row")
		}
		return nil, fmt.Errorf("read header row: %w", err)
	}

	t := table.New(header)
	width := len(t.Columns())
	res := &Result{Table: t, Encoding: encName}

	rowNum := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Row: rowNum, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		if len(row) != width {
			res.Warnings = append(res.Warnings, Warning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d", len(row), width),
			})
			if len(row) > width {
				row = row[:width]
			}
		}
		t.AppendRow(row)
	}

	return res, nil
}

// Write encodes a table as UTF-8 CSV: one header row followed by the
// records in order. Missing cells render as empty fields, so a written
// table reads back with the same record count and column set.
func Write(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(cols))
	for _, rec := range t.Records() {
		for i, col := range cols {
			row[i] = rec.Get(col).Raw
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// decode detects the input encoding, strips any BOM and returns UTF-8
// bytes. Valid UTF-8 passes through; undecipherable input falls back to
// Latin-1, which maps every byte to a code point and cannot fail.
func decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], "utf-8", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(data[len(bomUTF16LE):])
		if err != nil {
			return nil, "", fmt.Errorf("utf-16le: %w", err)
		}
		return out, "utf-16le", nil
	case bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		out, err := dec.Bytes(data[len(bomUTF16BE):])
		if err != nil {
			return nil, "", fmt.Errorf("utf-16be: %w", err)
		}
		return out, "utf-16be", nil
	case utf8.Valid(data):
		return data, "utf-8", nil
	default:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", fmt.Errorf("latin-1: %w", err)
		}
		return out, "latin-1", nil
	}
}
