package derive

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrUnknownCluster = errors.New("no service-unit coefficient for cluster")
	ErrNoCosts        = errors.New("no service-unit coefficients configured")
)

// A CostTable maps cluster names to service units per CPU hour.  Names are matched without regard
// to case, since configuration keys arrive lowercased.  The table is immutable.

type CostTable struct {
	coef map[string]float64
}

func NewCostTable(coefficients map[string]float64) (CostTable, error) {
	m := make(map[string]float64, len(coefficients))
	var bad []error
	for name, x := range coefficients {
		if !(x > 0) {
			bad = append(bad, fmt.Errorf("cluster %q: coefficient must be positive, not %v", name, x))
			continue
		}
		key := strings.ToLower(name)
		if _, found := m[key]; found {
			bad = append(bad, fmt.Errorf("cluster %q: duplicate coefficient", name))
			continue
		}
		m[key] = x
	}
	if len(bad) > 0 {
		return CostTable{}, errors.Join(bad...)
	}
	return CostTable{coef: m}, nil
}

func (ct CostTable) Coefficient(cluster string) (float64, error) {
	x, found := ct.coef[strings.ToLower(cluster)]
	if !found {
		if cluster == "" {
			cluster = "(none)"
		}
		return 0, fmt.Errorf("%w: %s", ErrUnknownCluster, cluster)
	}
	return x, nil
}

func (ct CostTable) Clusters() []string {
	return slices.Sorted(maps.Keys(ct.coef))
}

func (ct CostTable) Len() int {
	return len(ct.coef)
}
