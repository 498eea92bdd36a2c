package collapse

import (
	"fmt"
	"slices"

	"sacctcollapse/derive"
	"sacctcollapse/policy"
	"sacctcollapse/status"
	"sacctcollapse/units"
)

const (
	FirstPassName = "first-pass"
	AnalyticName  = "analytic"
)

func VariantNames() []string {
	return []string{FirstPassName, AnalyticName}
}

// A Variant is the complete, immutable configuration of one collapsing pass.  Nothing in it is
// modified after construction; engines share variants freely.
type Variant struct {
	Name   string
	Policy *policy.Policy

	// Scale table for the unit-aware reductions.
	Bytes units.ByteTable

	// Converted to seconds, in place, before grouping.
	DurationColumns []string

	// The column the job key is derived from.
	KeyColumn string

	// Output column order.  Nil means all policy columns sorted by name.  Derived columns are
	// always appended.
	Output []string

	Header bool

	// Nil for variants without derived fields.
	Derive *derive.Calculator
}

// FirstPass is the general collapse of raw sacct output: every column kept, sorted, no header,
// byte quantities in base units.
func FirstPass(log status.Logger) (*Variant, error) {
	p, err := policy.FirstPass(log)
	if err != nil {
		return nil, err
	}
	return &Variant{
		Name:            FirstPassName,
		Policy:          p,
		Bytes:           units.BaseUnits,
		DurationColumns: slices.Clone(policy.DurationColumns),
		KeyColumn:       policy.KeyColumn,
	}, nil
}

// Analytic is the per-job view for usage analysis: selected columns with a header, byte
// quantities in megabytes, plus derived fields.  It needs cost coefficients for every cluster
// that appears in the data, and fails at once if there are none at all.
func Analytic(costs derive.CostTable, log status.Logger) (*Variant, error) {
	if costs.Len() == 0 {
		return nil, fmt.Errorf("%s variant: %w", AnalyticName, derive.ErrNoCosts)
	}
	p, err := policy.Analytic(log)
	if err != nil {
		return nil, err
	}
	for _, c := range derive.Inputs {
		if _, found := p.Kind(c); !found {
			return nil, fmt.Errorf("%s variant: derived fields read %s, which the policy drops", AnalyticName, c)
		}
	}
	return &Variant{
		Name:            AnalyticName,
		Policy:          p,
		Bytes:           units.Megabytes,
		DurationColumns: slices.Clone(policy.DurationColumns),
		KeyColumn:       policy.KeyColumn,
		Output:          slices.Clone(policy.AnalyticOutputColumns),
		Header:          true,
		Derive:          derive.NewCalculator(costs),
	}, nil
}

func ByName(name string, costs derive.CostTable, log status.Logger) (*Variant, error) {
	switch name {
	case FirstPassName:
		return FirstPass(log)
	case AnalyticName:
		return Analytic(costs, log)
	default:
		return nil, fmt.Errorf("unknown variant %q, expected one of %v", name, VariantNames())
	}
}

// Required returns the input columns the variant reads: the policy's columns except those the
// collapse itself produces.
func (v *Variant) Required() []string {
	var xs []string
	for _, c := range v.Policy.Columns() {
		if !slices.Contains(policy.ExtraColumns, c) {
			xs = append(xs, c)
		}
	}
	return xs
}

// OutputColumns is the final column order of the variant's result.
func (v *Variant) OutputColumns() []string {
	var cols []string
	if v.Output != nil {
		cols = slices.Clone(v.Output)
	} else {
		cols = v.Policy.Columns()
		slices.Sort(cols)
	}
	if v.Derive != nil {
		cols = append(cols, derive.Columns...)
	}
	return cols
}
