package table

import (
	"strconv"
)

type Kind uint8

const (
	Null Kind = iota
	Text
	Num
)

// A Cell is a nullable value: nothing, a raw token, or a number.  Raw tables hold Null and Text
// cells; normalization and reduction produce Num cells.  The zero Cell is Null.

type Cell struct {
	kind Kind
	text string
	num  float64
}

func NullCell() Cell {
	return Cell{}
}

func TextCell(s string) Cell {
	return Cell{kind: Text, text: s}
}

func NumCell(x float64) Cell {
	return Cell{kind: Num, num: x}
}

func (c Cell) Kind() Kind {
	return c.kind
}

func (c Cell) IsNull() bool {
	return c.kind == Null
}

// Num returns the number of a Num cell; Text and Null cells are not numbers.
func (c Cell) Num() (float64, bool) {
	return c.num, c.kind == Num
}

// String renders the cell the way it is written to output: Null is empty, numbers use the
// shortest representation that round-trips.
func (c Cell) String() string {
	switch c.kind {
	case Text:
		return c.text
	case Num:
		return FormatNumber(c.num)
	default:
		return ""
	}
}

func FormatNumber(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
