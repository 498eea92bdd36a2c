// In-memory tables of named columns.  A Table is owned by one goroutine at a time; nothing here is
// locked.

package table

import (
	"errors"
	"fmt"
)

// Structural defects in a table: wrong number of fields, missing or duplicated columns.  Errors
// from this package that describe such defects wrap ErrStructure.
var ErrStructure = errors.New("malformed table")

type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
}

func New(columns []string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, found := index[c]; found {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrStructure, c)
		}
		index[c] = i
	}
	return &Table{
		columns: append([]string(nil), columns...),
		index:   index,
	}, nil
}

// MustNew is New for column lists known to be good.
func MustNew(columns []string) *Table {
	t, err := New(columns)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t *Table) NumColumns() int {
	return len(t.columns)
}

func (t *Table) NumRows() int {
	return len(t.rows)
}

func (t *Table) ColumnIndex(name string) (int, bool) {
	ix, found := t.index[name]
	return ix, found
}

func (t *Table) HasColumn(name string) bool {
	_, found := t.index[name]
	return found
}

// Row returns the row itself, not a copy.
func (t *Table) Row(i int) []Cell {
	return t.rows[i]
}

func (t *Table) Cell(row, col int) Cell {
	return t.rows[row][col]
}

func (t *Table) Set(row, col int, c Cell) {
	t.rows[row][col] = c
}

// Get looks the column up by name; an absent column reads as Null.
func (t *Table) Get(row int, column string) Cell {
	if ix, found := t.index[column]; found {
		return t.rows[row][ix]
	}
	return NullCell()
}

func (t *Table) AppendRow(cells []Cell) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("%w: row has %d fields, expected %d", ErrStructure, len(cells), len(t.columns))
	}
	t.rows = append(t.rows, cells)
	return nil
}

// AppendText appends a row of raw tokens; tokens in `nulls` become Null cells.
func (t *Table) AppendText(fields []string, nulls map[string]bool) error {
	cells := make([]Cell, len(fields))
	for i, f := range fields {
		if !nulls[f] {
			cells[i] = TextCell(f)
		}
	}
	return t.AppendRow(cells)
}

// Project returns a new table with the given columns in the given order.  The cells are shared
// values, so the new table is independent of this one.
func (t *Table) Project(columns []string) (*Table, error) {
	ixs := make([]int, len(columns))
	for i, c := range columns {
		ix, found := t.index[c]
		if !found {
			return nil, fmt.Errorf("%w: no column %q", ErrStructure, c)
		}
		ixs[i] = ix
	}
	nt, err := New(columns)
	if err != nil {
		return nil, err
	}
	nt.rows = make([][]Cell, len(t.rows))
	for r, row := range t.rows {
		nr := make([]Cell, len(ixs))
		for i, ix := range ixs {
			nr[i] = row[ix]
		}
		nt.rows[r] = nr
	}
	return nt, nil
}

// ColumnStrings renders one column.
func (t *Table) ColumnStrings(column string) []string {
	ix, found := t.index[column]
	if !found {
		return nil
	}
	xs := make([]string, len(t.rows))
	for i, row := range t.rows {
		xs[i] = row[ix].String()
	}
	return xs
}
