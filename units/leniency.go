package units

import (
	"fmt"
	"strings"
)

// Category is the kind of token that needed a lenient fallback.
type Category int

const (
	DurationToken Category = iota
	ByteToken
	NumberToken
	MemoryToken
	numCategories
)

func (c Category) String() string {
	switch c {
	case DurationToken:
		return "duration"
	case ByteToken:
		return "bytes"
	case NumberToken:
		return "number"
	case MemoryToken:
		return "memory"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

func Categories() []Category {
	return []Category{DurationToken, ByteToken, NumberToken, MemoryToken}
}

// Leniency counts how often a malformed token was replaced by a neutral value.  It belongs to one
// partition and is not thread-safe.  A nil *Leniency ignores notes.

type Leniency struct {
	counts [numCategories]int
}

func (l *Leniency) Note(c Category) {
	if l != nil {
		l.counts[c]++
	}
}

func (l *Leniency) Count(c Category) int {
	if l == nil {
		return 0
	}
	return l.counts[c]
}

func (l *Leniency) Total() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, c := range l.counts {
		n += c
	}
	return n
}

func (l *Leniency) Add(other *Leniency) {
	if l == nil || other == nil {
		return
	}
	for i := range l.counts {
		l.counts[i] += other.counts[i]
	}
}

func (l *Leniency) String() string {
	parts := make([]string, 0, numCategories)
	for _, c := range Categories() {
		parts = append(parts, fmt.Sprintf("%s=%d", c, l.Count(c)))
	}
	return strings.Join(parts, " ")
}
