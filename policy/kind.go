package policy

import (
	"fmt"
)

// Kind is one of a closed set of reductions.  A group's values for a column are reduced to a
// single value by exactly one Kind.

type Kind int

const (
	FirstNonNull Kind = iota
	Concatenate
	Sum
	Max
	UnitMean
	PlainMean
	Min

	// Column-specific extractions.

	ExtractJobID    // text before '.', then before '_'
	ExtractJobIDRaw // text before '.'
	ExtractJob      // the group's key
	ExtractSteps    // step count, weighted by any NJobSteps already present
	ExtractTRES     // flattened per-step resource descriptors
)

var kindNames = [...]string{
	FirstNonNull:    "first-non-null",
	Concatenate:     "concatenate",
	Sum:             "sum",
	Max:             "max",
	UnitMean:        "unit-mean",
	PlainMean:       "plain-mean",
	Min:             "min",
	ExtractJobID:    "extract-job-id",
	ExtractJobIDRaw: "extract-job-id-raw",
	ExtractJob:      "extract-job",
	ExtractSteps:    "extract-steps",
	ExtractTRES:     "extract-tres",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown reduction %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	x, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = x
	return nil
}
