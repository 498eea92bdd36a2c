package collapse

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacctcollapse/derive"
	"sacctcollapse/policy"
	"sacctcollapse/status"
	"sacctcollapse/table"
	"sacctcollapse/units"
)

type row map[string]string

func rawTable(t *testing.T, rows ...row) *table.Table {
	t.Helper()
	tb := table.MustNew(policy.SacctColumns)
	nulls := map[string]bool{"": true, "Unknown": true, "INVALID": true}
	for _, r := range rows {
		fields := make([]string, len(policy.SacctColumns))
		for i, c := range policy.SacctColumns {
			fields[i] = r[c]
		}
		require.NoError(t, tb.AppendText(fields, nulls))
	}
	return tb
}

func firstPass(t *testing.T) *Engine {
	t.Helper()
	v, err := FirstPass(nil)
	require.NoError(t, err)
	return NewEngine(v, status.New(&bytes.Buffer{}, status.LogLevelWarning))
}

func TestCollapseTwoSteps(t *testing.T) {
	in := rawTable(t,
		row{"JobIDRaw": "100", "JobID": "100", "Elapsed": "", "State": "COMPLETED"},
		row{"JobIDRaw": "100.batch", "JobID": "100.batch", "Elapsed": "00:01:00", "State": "COMPLETED"},
	)
	res, err := firstPass(t).Collapse(context.Background(), in)
	require.NoError(t, err)

	out := res.Table
	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, table.NumCell(60), out.Get(0, "Elapsed"))
	assert.Equal(t, table.NumCell(2), out.Get(0, "NJobSteps"))
	assert.Equal(t, table.TextCell("100"), out.Get(0, "Job"))
	assert.Equal(t, table.TextCell("100"), out.Get(0, "JobID"))
	assert.Equal(t, table.TextCell("100"), out.Get(0, "JobIDRaw"))
	assert.Equal(t, table.TextCell("COMPLETED, COMPLETED"), out.Get(0, "State"))
	assert.False(t, res.Header)
}

func TestCollapseGroupsInOrderOfAppearance(t *testing.T) {
	in := rawTable(t,
		row{"JobIDRaw": "8"},
		row{"JobIDRaw": "7"},
		row{"JobIDRaw": "7.batch"},
		row{"JobIDRaw": "8.extern"},
		row{"JobIDRaw": "7.0"},
		row{"JobIDRaw": "9"},
	)
	res, err := firstPass(t).Collapse(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"8", "7", "9"}, res.Table.ColumnStrings("Job"))
	assert.Equal(t, []string{"2", "3", "1"}, res.Table.ColumnStrings("NJobSteps"))
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, res.Diagnostics.GroupSizes)
	assert.Equal(t, 6, res.Diagnostics.InputRows)
	assert.Equal(t, 3, res.Diagnostics.Rows)
}

func TestFirstPassColumnsAreSorted(t *testing.T) {
	res, err := firstPass(t).Collapse(context.Background(), rawTable(t, row{"JobIDRaw": "1"}))
	require.NoError(t, err)
	cols := res.Table.Columns()
	assert.Len(t, cols, len(policy.SacctColumns)+len(policy.ExtraColumns))
	assert.IsNonDecreasing(t, cols)
}

func TestCollapseIsIdempotent(t *testing.T) {
	in := rawTable(t,
		row{"JobIDRaw": "100", "JobID": "100", "Elapsed": "00:02:00", "State": "COMPLETED",
			"Account": "nn9999k", "AllocTRES": "cpu=4,mem=8G", "NCPUS": "4"},
		row{"JobIDRaw": "100.batch", "JobID": "100.batch", "Elapsed": "00:01:00", "AveRSS": "2K",
			"MaxRSS": "0.5M", "AveCPU": "00:00:09.5", "NTasks": "1", "NCPUS": "4"},
		row{"JobIDRaw": "101_3", "JobID": "101_3", "Elapsed": "1-00:00:00", "MinCPU": "00:01:00",
			"Submit": "2024-01-02T03:04:05"},
		row{"JobIDRaw": "101_3.0", "JobID": "101_3.0", "MinCPU": "00:00:30", "ReqMem": "4000Mc"},
	)
	e := firstPass(t)
	format := table.DefaultFormat()

	first, err := e.Collapse(context.Background(), in)
	require.NoError(t, err)
	var once bytes.Buffer
	require.NoError(t, first.Write(&once, format.Delimiter))

	again, err := table.Read(bytes.NewReader(once.Bytes()), first.Table.Columns(), format)
	require.NoError(t, err)
	second, err := e.Collapse(context.Background(), again)
	require.NoError(t, err)
	var twice bytes.Buffer
	require.NoError(t, second.Write(&twice, format.Delimiter))

	assert.Equal(t, once.String(), twice.String())
	assert.Equal(t, table.NumCell(2), second.Table.Get(0, "NJobSteps"))
	assert.Equal(t, table.NumCell(180), second.Table.Get(0, "Elapsed"))
	assert.Equal(t, table.NumCell(30), second.Table.Get(1, "MinCPU"))
}

func TestCollapseMissingColumns(t *testing.T) {
	in := table.MustNew([]string{"JobIDRaw", "Elapsed"})
	require.NoError(t, in.AppendText([]string{"1", "00:00:01"}, nil))
	_, err := firstPass(t).Collapse(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, table.ErrStructure)
	assert.Contains(t, err.Error(), "Account")
}

func TestCollapseEmpty(t *testing.T) {
	res, err := firstPass(t).Collapse(context.Background(), rawTable(t))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.NumRows())
	assert.Empty(t, res.Diagnostics.GroupSizes)
}

func TestCollapseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := firstPass(t).Collapse(ctx, rawTable(t, row{"JobIDRaw": "1"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnostics(t *testing.T) {
	in := rawTable(t,
		row{"JobIDRaw": "200", "JobID": "123_1", "Elapsed": "bogus"},
		row{"JobIDRaw": "201", "JobID": "123_2"},
		row{"JobIDRaw": "202", "JobID": "124"},
	)
	res, err := firstPass(t).Collapse(context.Background(), in)
	require.NoError(t, err)

	d := res.Diagnostics
	assert.Empty(t, d.DuplicateJobs)
	assert.Equal(t, map[string]int{"123": 2}, d.DuplicateJobIDs)
	assert.Equal(t, 1, d.Leniency.Count(units.DurationToken))
	assert.Equal(t, 1, d.LenientCounts()["duration"])

	d.InputBytes = 2048
	text := d.String()
	assert.Contains(t, text, "Histogram of job group size:\n  1: 3\n")
	assert.Contains(t, text, "Aggregated table shape: (3, 85)")
	assert.Contains(t, text, "JobID:\n  123: 2\n")
	assert.Contains(t, text, "Job:\n  (none)\n")
	assert.Contains(t, text, "2.048kB")
	assert.Contains(t, text, "duration=1")
}

func analytic(t *testing.T, costs map[string]float64) *Engine {
	t.Helper()
	ct, err := derive.NewCostTable(costs)
	require.NoError(t, err)
	v, err := Analytic(ct, nil)
	require.NoError(t, err)
	return NewEngine(v, status.New(&bytes.Buffer{}, status.LogLevelWarning))
}

func TestAnalytic(t *testing.T) {
	in := rawTable(t,
		row{"JobIDRaw": "300", "JobID": "300", "Cluster": "fox", "State": "CANCELLED by 1234",
			"Elapsed": "00:10:00", "CPUTimeRAW": "7200", "NCPUS": "8", "NNodes": "1",
			"ReqMem": "4000Mc", "Start": "2024-01-01T00:00:00"},
		row{"JobIDRaw": "300.batch", "JobID": "300.batch", "State": "CANCELLED",
			"Elapsed": "00:05:00", "CPUTimeRAW": "3600", "NCPUS": "8", "NNodes": "1",
			"NTasks": "2", "AveDiskRead": "100M", "MaxRSS": "1G", "Start": "2024-01-01T00:00:01"},
	)
	res, err := analytic(t, map[string]float64{"FOX": 2}).Collapse(context.Background(), in)
	require.NoError(t, err)

	out := res.Table
	assert.True(t, res.Header)
	assert.Equal(t, append(append([]string(nil), policy.AnalyticOutputColumns...), derive.Columns...),
		out.Columns())
	require.Equal(t, 1, out.NumRows())

	for col, want := range map[string]table.Cell{
		"Elapsed":             table.NumCell(600),
		"NCPUS":               table.NumCell(8),
		"NTasks":              table.NumCell(2),
		"NJobSteps":           table.NumCell(2),
		"State":               table.TextCell("CANCELLED by 1234"),
		"Start":               table.TextCell("2024-01-01T00:00:00"),
		"MaxRSS":              table.NumCell(1024),
		derive.TotalDiskRead:  table.NumCell(200),
		derive.DiskReadRate:   table.NumCell(200.0 / 600),
		derive.TotalDiskWrite: table.NumCell(0),
		derive.DiskWriteRate:  table.NumCell(0),
		derive.ReqMemAmount:   table.NumCell(4000),
		derive.ReqMemPer:      table.TextCell("core"),
		derive.TotalReqMem:    table.NumCell(32000),
		derive.JobState:       table.TextCell("CANCELLED"),
		derive.ServiceUnits:   table.NumCell(6),
	} {
		assert.Equal(t, want, out.Get(0, col), col)
	}

	var buf bytes.Buffer
	require.NoError(t, res.Write(&buf, '|'))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("Job|JobID|JobIDRaw|NJobSteps|")))
}

func TestAnalyticUnknownCluster(t *testing.T) {
	in := rawTable(t, row{"JobIDRaw": "1", "Cluster": "saga"})
	_, err := analytic(t, map[string]float64{"fox": 1}).Collapse(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, derive.ErrUnknownCluster)
	assert.Contains(t, err.Error(), "saga")
}

func TestByName(t *testing.T) {
	ct, err := derive.NewCostTable(map[string]float64{"fox": 1})
	require.NoError(t, err)
	for _, name := range VariantNames() {
		v, err := ByName(name, ct, nil)
		require.NoError(t, err)
		assert.Equal(t, name, v.Name)
	}
	_, err = ByName("third-pass", ct, nil)
	assert.Error(t, err)
}

func TestAnalyticNeedsCosts(t *testing.T) {
	_, err := ByName(AnalyticName, derive.CostTable{}, nil)
	assert.ErrorIs(t, err, derive.ErrNoCosts)

	v, err := ByName(FirstPassName, derive.CostTable{}, nil)
	require.NoError(t, err)
	assert.Nil(t, v.Derive)
}

func TestAnalyticPolicyCoversDerivedInputs(t *testing.T) {
	v, err := Analytic(mustCosts(t), nil)
	require.NoError(t, err)
	for _, c := range derive.Inputs {
		assert.Contains(t, v.Required(), c)
	}
}

func mustCosts(t *testing.T) derive.CostTable {
	t.Helper()
	ct, err := derive.NewCostTable(map[string]float64{"fox": 1})
	require.NoError(t, err)
	return ct
}
