// Row collapsing: one output row per logical job.
//
// The engine is synchronous and owns the input table for the duration of a call.  Duration columns
// of the input are rewritten in place (text to seconds) before grouping; nothing else in the input
// is modified.  Parallelism, if any, is across partitions and is the caller's business.

package collapse

import (
	"context"
	"fmt"
	"io"
	"strings"

	"sacctcollapse/derive"
	"sacctcollapse/policy"
	"sacctcollapse/status"
	"sacctcollapse/table"
	"sacctcollapse/units"
)

type Engine struct {
	variant *Variant
	log     status.Logger
}

func NewEngine(v *Variant, log status.Logger) *Engine {
	if log == nil {
		log = status.Default()
	}
	return &Engine{variant: v, log: log}
}

func (e *Engine) Variant() *Variant {
	return e.variant
}

type Result struct {
	Variant     string
	Table       *table.Table
	Header      bool
	Diagnostics *Diagnostics
}

// Write renders the result with the given delimiter, with a header if the variant has one.
func (r *Result) Write(w io.Writer, delimiter rune) error {
	return table.Write(w, r.Table, table.Format{Delimiter: delimiter, Header: r.Header})
}

type group struct {
	key  string
	rows []int
}

// Collapse aggregates `in`.  It fails if the input lacks columns the policy reads, if the context
// is cancelled, or if a derived field cannot be computed.  Unparsable values never fail; they are
// counted in the result's diagnostics.
func (e *Engine) Collapse(ctx context.Context, in *table.Table) (*Result, error) {
	v := e.variant

	var missing []string
	for _, c := range v.Required() {
		if !in.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", table.ErrStructure, strings.Join(missing, ","))
	}

	diag := newDiagnostics(in.NumRows())
	lenient := &diag.Leniency

	normalizeDurations(in, v.DurationColumns, lenient)

	groups := groupRows(in, v.KeyColumn)
	e.log.Infof("Collapse %s: %d rows, %d jobs", v.Name, in.NumRows(), len(groups))

	columns := v.Policy.Columns()
	kinds := make([]policy.Kind, len(columns))
	for i, c := range columns {
		kinds[i], _ = v.Policy.Kind(c)
	}
	outColumns := columns
	if v.Derive != nil {
		outColumns = append(append([]string(nil), columns...), derive.Columns...)
	}
	out, err := table.New(outColumns)
	if err != nil {
		return nil, err
	}

	cells := make([]table.Cell, 0, 16)
	for gi, g := range groups {
		if gi%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		diag.noteGroup(len(g.rows))
		cx := &policy.Context{Bytes: v.Bytes, Key: g.key, Leniency: lenient}
		row := make([]table.Cell, len(outColumns))
		for ci, c := range columns {
			cells = cells[:0]
			for _, r := range g.rows {
				cells = append(cells, in.Get(r, c))
			}
			row[ci] = policy.Reduce(kinds[ci], cells, cx)
		}
		if err := out.AppendRow(row); err != nil {
			return nil, err
		}
	}

	if v.Derive != nil {
		for r := 0; r < out.NumRows(); r++ {
			if err := v.Derive.Apply(rowRecord{out, r}, lenient); err != nil {
				return nil, fmt.Errorf("job %s: %w", out.Get(r, policy.JobColumn), err)
			}
		}
	}

	final, err := out.Project(v.OutputColumns())
	if err != nil {
		return nil, err
	}
	diag.finish(final)
	if n := lenient.Total(); n > 0 {
		e.log.Warningf("Collapse %s: %d lenient parses (%s)", v.Name, n, lenient)
	}

	return &Result{
		Variant:     v.Name,
		Table:       final,
		Header:      v.Header,
		Diagnostics: diag,
	}, nil
}

// Text cells of the duration columns become Num cells holding seconds.  Cells that are already
// numeric are left alone, so re-normalizing is harmless.
func normalizeDurations(t *table.Table, columns []string, lenient *units.Leniency) {
	for _, c := range columns {
		ix, found := t.ColumnIndex(c)
		if !found {
			continue
		}
		for r := 0; r < t.NumRows(); r++ {
			cell := t.Cell(r, ix)
			if cell.Kind() != table.Text {
				continue
			}
			secs, ok := units.ParseDuration(cell.String())
			if !ok {
				lenient.Note(units.DurationToken)
			}
			t.Set(r, ix, table.NumCell(secs))
		}
	}
}

// Groups come out in order of first appearance of their key.
func groupRows(t *table.Table, keyColumn string) []*group {
	var groups []*group
	byKey := make(map[string]*group)
	for r := 0; r < t.NumRows(); r++ {
		key := policy.JobKey(t.Get(r, keyColumn))
		g := byKey[key]
		if g == nil {
			g = &group{key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	return groups
}

type rowRecord struct {
	t   *table.Table
	row int
}

func (r rowRecord) Get(column string) table.Cell {
	return r.t.Get(r.row, column)
}

func (r rowRecord) Set(column string, value table.Cell) {
	if ix, found := r.t.ColumnIndex(column); found {
		r.t.Set(r.row, ix, value)
	}
}
