package policy

import (
	"strings"

	"sacctcollapse/table"
	"sacctcollapse/units"
)

// Context carries what a reduction may need beyond the cells themselves.
type Context struct {
	// Unit table for Max and UnitMean.
	Bytes units.ByteTable

	// The group's key, for ExtractJob.
	Key string

	// Lenient fallbacks are noted here; may be nil.
	Leniency *units.Leniency
}

var defaultContext = Context{Bytes: units.BaseUnits}

// Reduce reduces the cells of one column of one group.  Null cells are skipped by every
// reduction.  An all-Null (or empty) input never fails; it produces the reduction's empty value:
//
//	FirstNonNull, Min, PlainMean, ExtractJobID, ExtractJobIDRaw  Null
//	Concatenate, ExtractTRES                                      ""
//	Sum, Max, UnitMean, ExtractSteps                              0
//	ExtractJob                                                    the key
func Reduce(k Kind, cells []table.Cell, cx *Context) table.Cell {
	if cx == nil {
		cx = &defaultContext
	}
	switch k {
	case FirstNonNull:
		return firstNonNull(cells)

	case Concatenate, ExtractTRES:
		return concatenate(cells)

	case Sum:
		var total float64
		for _, c := range cells {
			if !c.IsNull() {
				total += cx.number(c)
			}
		}
		return table.NumCell(total)

	case Max:
		// The floor is zero; these are sizes.
		var m float64
		for _, c := range cells {
			if !c.IsNull() {
				if x := cx.bytes(c); x > m {
					m = x
				}
			}
		}
		return table.NumCell(m)

	case UnitMean:
		var total float64
		n := 0
		for _, c := range cells {
			if !c.IsNull() {
				total += cx.bytes(c)
				n++
			}
		}
		if n == 0 {
			return table.NumCell(0)
		}
		return table.NumCell(total / float64(n))

	case PlainMean:
		var total float64
		n := 0
		for _, c := range cells {
			if !c.IsNull() {
				total += cx.number(c)
				n++
			}
		}
		if n == 0 {
			return table.NullCell()
		}
		return table.NumCell(total / float64(n))

	case Min:
		var m float64
		n := 0
		for _, c := range cells {
			if !c.IsNull() {
				x := cx.number(c)
				if n == 0 || x < m {
					m = x
				}
				n++
			}
		}
		if n == 0 {
			return table.NullCell()
		}
		return table.NumCell(m)

	case ExtractJobID:
		c := firstNonNull(cells)
		if c.IsNull() {
			return c
		}
		id, _, _ := strings.Cut(c.String(), ".")
		id, _, _ = strings.Cut(id, "_")
		return table.TextCell(id)

	case ExtractJobIDRaw:
		c := firstNonNull(cells)
		if c.IsNull() {
			return c
		}
		return table.TextCell(JobKey(c))

	case ExtractJob:
		return table.TextCell(cx.Key)

	case ExtractSteps:
		// Each row is one step unless it is already a collapsed row that says otherwise.
		var steps float64
		for _, c := range cells {
			switch c.Kind() {
			case table.Null:
				steps++
			case table.Num:
				x, _ := c.Num()
				steps += x
			default:
				x, ok := units.ParseNumber(c.String())
				if !ok {
					cx.Leniency.Note(units.NumberToken)
					x = 1
				}
				steps += x
			}
		}
		return table.NumCell(steps)

	default:
		panic("Unknown reduction kind " + k.String())
	}
}

// JobKey derives the grouping key from a composite step id: the text before the first '.'.  It is
// total; a Null id gives the empty key.
func JobKey(c table.Cell) string {
	key, _, _ := strings.Cut(c.String(), ".")
	return key
}

func firstNonNull(cells []table.Cell) table.Cell {
	for _, c := range cells {
		if !c.IsNull() {
			return c
		}
	}
	return table.NullCell()
}

const concatSeparator = ", "

func concatenate(cells []table.Cell) table.Cell {
	var b strings.Builder
	first := true
	for _, c := range cells {
		if c.IsNull() {
			continue
		}
		if !first {
			b.WriteString(concatSeparator)
		}
		b.WriteString(c.String())
		first = false
	}
	return table.TextCell(b.String())
}

func (cx *Context) number(c table.Cell) float64 {
	if x, ok := c.Num(); ok {
		return x
	}
	x, ok := units.ParseNumber(c.String())
	if !ok {
		cx.Leniency.Note(units.NumberToken)
	}
	return x
}

func (cx *Context) bytes(c table.Cell) float64 {
	if x, ok := c.Num(); ok {
		return x
	}
	x, ok := cx.Bytes.Parse(c.String())
	if !ok {
		cx.Leniency.Note(units.ByteToken)
	}
	return x
}
