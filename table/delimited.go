// Delimited text encoding of tables.
//
// The input side reads sacct's parsable output: one record per line, a single-character
// delimiter, a fixed number of fields per line, optional double-quoting.  Any line with the wrong
// number of fields fails the whole read - a partition is never partially loaded.

package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var DefaultNullTokens = []string{"", "Unknown", "INVALID"}

type Format struct {
	Delimiter  rune
	NullTokens []string
	Header     bool
}

func DefaultFormat() Format {
	return Format{
		Delimiter:  '|',
		NullTokens: DefaultNullTokens,
	}
}

func (f Format) nulls() map[string]bool {
	m := make(map[string]bool, len(f.NullTokens))
	for _, s := range f.NullTokens {
		m[s] = true
	}
	return m
}

// Read reads a table.  If `columns` is nil the first line must be a header and supplies the column
// names; otherwise there must be no header unless f.Header is set, in which case the header must
// match `columns` exactly.
func Read(input io.Reader, columns []string, f Format) (*Table, error) {
	rdr := csv.NewReader(input)
	rdr.Comma = f.Delimiter
	rdr.LazyQuotes = true
	rdr.ReuseRecord = true
	if columns != nil {
		rdr.FieldsPerRecord = len(columns)
	}

	if columns == nil || f.Header {
		header, err := rdr.Read()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: missing header", ErrStructure)
			}
			return nil, wrapReadError(err)
		}
		if columns == nil {
			columns = append([]string(nil), header...)
			rdr.FieldsPerRecord = len(columns)
		} else if !sameColumns(header, columns) {
			return nil, fmt.Errorf("%w: header does not match the expected columns", ErrStructure)
		}
	}

	t, err := New(columns)
	if err != nil {
		return nil, err
	}
	nulls := f.nulls()
	for {
		fields, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapReadError(err)
		}
		if err := t.AppendText(fields, nulls); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func wrapReadError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return fmt.Errorf("%w: %v", ErrStructure, perr)
	}
	return err
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Write writes the table with the format's delimiter, Null cells as empty fields.
func Write(output io.Writer, t *Table, f Format) error {
	w := csv.NewWriter(output)
	w.Comma = f.Delimiter
	if f.Header {
		if err := w.Write(t.columns); err != nil {
			return err
		}
	}
	record := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, c := range row {
			record[i] = c.String()
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
