package collapse

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	dunits "github.com/docker/go-units"

	"sacctcollapse/policy"
	"sacctcollapse/table"
	"sacctcollapse/units"
)

// Diagnostics describe one collapse.  They are a quality signal for the operator and never
// influence the aggregation.
type Diagnostics struct {
	InputRows int `json:"input_rows"`

	// Set by the caller if known; zero means unknown.
	InputBytes int64 `json:"input_bytes,omitempty"`

	Rows    int `json:"rows"`
	Columns int `json:"columns"`

	// Group size -> number of groups of that size.
	GroupSizes map[int]int `json:"group_sizes"`

	// Value -> number of output rows carrying it, for values of the output Job and JobID columns
	// that occur more than once.  A duplicated Job means two groups collapsed to the same key.
	DuplicateJobs   map[string]int `json:"duplicate_jobs"`
	DuplicateJobIDs map[string]int `json:"duplicate_job_ids"`

	Leniency units.Leniency `json:"-"`
}

func newDiagnostics(inputRows int) *Diagnostics {
	return &Diagnostics{
		InputRows:       inputRows,
		GroupSizes:      make(map[int]int),
		DuplicateJobs:   make(map[string]int),
		DuplicateJobIDs: make(map[string]int),
	}
}

func (d *Diagnostics) noteGroup(size int) {
	d.GroupSizes[size]++
}

func (d *Diagnostics) finish(t *table.Table) {
	d.Rows = t.NumRows()
	d.Columns = t.NumColumns()
	duplicates(t.ColumnStrings(policy.JobColumn), d.DuplicateJobs)
	duplicates(t.ColumnStrings("JobID"), d.DuplicateJobIDs)
}

func duplicates(values []string, hist map[string]int) {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	for v, n := range counts {
		if n > 1 {
			hist[v] = n
		}
	}
}

// LenientCounts is the leniency as a map, for encoders.
func (d *Diagnostics) LenientCounts() map[string]int {
	m := make(map[string]int)
	for _, c := range units.Categories() {
		m[c.String()] = d.Leniency.Count(c)
	}
	return m
}

func (d *Diagnostics) Format(w io.Writer) error {
	var b strings.Builder
	if d.InputBytes > 0 {
		fmt.Fprintf(&b, "Input: %d rows, %s\n", d.InputRows, dunits.HumanSize(float64(d.InputBytes)))
	} else {
		fmt.Fprintf(&b, "Input: %d rows\n", d.InputRows)
	}
	b.WriteString("Histogram of job group size:\n")
	writeHistogram(&b, d.GroupSizes)
	fmt.Fprintf(&b, "Aggregated table shape: (%d, %d)\n", d.Rows, d.Columns)
	b.WriteString("Histogram of job group (duplicated only), Job:\n")
	writeHistogram(&b, d.DuplicateJobs)
	b.WriteString("Histogram of job group (duplicated only), JobID:\n")
	writeHistogram(&b, d.DuplicateJobIDs)
	fmt.Fprintf(&b, "Lenient parses: %s\n", &d.Leniency)
	_, err := io.WriteString(w, b.String())
	return err
}

func (d *Diagnostics) String() string {
	var b strings.Builder
	_ = d.Format(&b)
	return b.String()
}

func writeHistogram[K cmp.Ordered](b *strings.Builder, hist map[K]int) {
	if len(hist) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, k := range slices.Sorted(maps.Keys(hist)) {
		fmt.Fprintf(b, "  %v: %d\n", k, hist[k])
	}
}
