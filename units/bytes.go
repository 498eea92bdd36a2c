package units

import (
	"slices"
	"strings"
)

// A ByteTable maps a trailing unit letter to a scale factor.  Tables are values and their contents
// cannot be changed after construction, so the same table can be shared by any number of
// partitions.
//
// The two tables below are not interchangeable: they belong to different output variants and
// produce numbers in different units.

type ByteTable struct {
	name       string
	scales     map[byte]float64
	unsuffixed float64
}

var (
	// Everything in the common base unit: K=10^3, M=10^6.  There is no G.
	BaseUnits = NewByteTable("base", 1, map[byte]float64{
		'K': 1e3,
		'M': 1e6,
	})

	// Everything in megabytes: K=1/1024, M=1, G=1024.
	Megabytes = NewByteTable("megabytes", 1, map[byte]float64{
		'K': 1.0 / 1024,
		'M': 1,
		'G': 1024,
	})
)

// NewByteTable copies `scales`.  `unsuffixed` applies to tokens without a unit letter.
func NewByteTable(name string, unsuffixed float64, scales map[byte]float64) ByteTable {
	s := make(map[byte]float64, len(scales))
	for k, v := range scales {
		s[k] = v
	}
	return ByteTable{name: name, scales: s, unsuffixed: unsuffixed}
}

func (bt ByteTable) Name() string {
	return bt.name
}

func (bt ByteTable) String() string {
	suffixes := make([]byte, 0, len(bt.scales))
	for k := range bt.scales {
		suffixes = append(suffixes, k)
	}
	slices.Sort(suffixes)
	var b strings.Builder
	b.WriteString(bt.name)
	b.WriteString("(")
	for i, k := range suffixes {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteByte(k)
	}
	b.WriteString(")")
	return b.String()
}

// Scale returns the factor for a unit letter, if the table has one.
func (bt ByteTable) Scale(suffix byte) (float64, bool) {
	x, found := bt.scales[suffix]
	return x, found
}

// Parse strips a trailing unit letter and scales the number in front of it.  A letter the table
// does not know, or a bad number, yields (0, false).
func (bt ByteTable) Parse(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	mpy := bt.unsuffixed
	if last := s[len(s)-1]; isLetter(last) {
		scale, found := bt.scales[last]
		if !found {
			return 0, false
		}
		mpy = scale
		s = s[:len(s)-1]
	}
	n, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	return n * mpy, true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
