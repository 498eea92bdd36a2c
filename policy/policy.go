// Column reduction policies.
//
// A Policy is an immutable, total mapping from the columns of a schema to reduction kinds.  It is
// built from categories (a kind and the columns it applies to) and construction fails if any
// column of the schema is left unclassified, is classified twice, or if a category names a column
// the schema does not have.  These are configuration defects and are reported before any data is
// read.

package policy

import (
	"errors"
	"fmt"
	"slices"

	"sacctcollapse/status"
)

var (
	ErrUnmappedColumn  = errors.New("column has no reduction")
	ErrAmbiguousColumn = errors.New("column has more than one reduction")
	ErrUnknownColumn   = errors.New("reduction names a column not in the schema")
)

type Category struct {
	Name    string
	Kind    Kind
	Columns []string
}

type Policy struct {
	name    string
	columns []string
	kinds   map[string]Kind
}

type ColumnPolicy struct {
	Column string `yaml:"column" json:"column"`
	Kind   Kind   `yaml:"reduction" json:"reduction"`
}

// Build classifies `schema` by `categories`.  Every defect is logged as a warning and all of them
// are returned together.
func Build(name string, schema []string, categories []Category, log status.Logger) (*Policy, error) {
	inSchema := make(map[string]bool, len(schema))
	for _, c := range schema {
		inSchema[c] = true
	}

	var defects []error
	kinds := make(map[string]Kind, len(schema))
	owner := make(map[string]string, len(schema))
	for _, cat := range categories {
		for _, col := range cat.Columns {
			if !inSchema[col] {
				defects = append(defects, fmt.Errorf("%w: %s (%s)", ErrUnknownColumn, col, cat.Name))
				continue
			}
			if prev, found := owner[col]; found {
				defects = append(defects,
					fmt.Errorf("%w: %s (%s and %s)", ErrAmbiguousColumn, col, prev, cat.Name))
				continue
			}
			owner[col] = cat.Name
			kinds[col] = cat.Kind
		}
	}
	for _, col := range schema {
		if _, found := kinds[col]; !found {
			defects = append(defects, fmt.Errorf("%w: %s", ErrUnmappedColumn, col))
		}
	}

	if len(defects) > 0 {
		if log != nil {
			for _, d := range defects {
				log.Warningf("Policy %s: %v", name, d)
			}
		}
		return nil, fmt.Errorf("policy %s: %w", name, errors.Join(defects...))
	}

	return &Policy{
		name:    name,
		columns: append([]string(nil), schema...),
		kinds:   kinds,
	}, nil
}

func (p *Policy) Name() string {
	return p.name
}

// Columns returns the schema in the order it was given.
func (p *Policy) Columns() []string {
	return slices.Clone(p.columns)
}

func (p *Policy) Kind(column string) (Kind, bool) {
	k, found := p.kinds[column]
	return k, found
}

func (p *Policy) Describe() []ColumnPolicy {
	xs := make([]ColumnPolicy, 0, len(p.columns))
	for _, c := range p.columns {
		xs = append(xs, ColumnPolicy{Column: c, Kind: p.kinds[c]})
	}
	return xs
}

// Unmapped returns the columns of `columns` that this policy does not classify.  Callers use it to
// check an input schema against the policy before reading data.
func (p *Policy) Unmapped(columns []string) []string {
	var xs []string
	for _, c := range columns {
		if _, found := p.kinds[c]; !found {
			xs = append(xs, c)
		}
	}
	return xs
}

func FirstPass(log status.Logger) (*Policy, error) {
	return Build("first-pass", Schema(), FirstPassCategories(), log)
}

func Analytic(log status.Logger) (*Policy, error) {
	return Build("analytic", Schema(), AnalyticCategories(), log)
}
