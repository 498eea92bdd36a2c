package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacctcollapse/table"
	"sacctcollapse/units"
)

type record map[string]table.Cell

func (r record) Get(c string) table.Cell        { return r[c] }
func (r record) Set(c string, value table.Cell) { r[c] = value }

func TestCostTable(t *testing.T) {
	ct, err := NewCostTable(map[string]float64{"Fox": 1.5, "saga": 0.25})
	require.NoError(t, err)
	assert.Equal(t, []string{"fox", "saga"}, ct.Clusters())

	x, err := ct.Coefficient("FOX")
	require.NoError(t, err)
	assert.Equal(t, 1.5, x)

	_, err = ct.Coefficient("betzy")
	assert.ErrorIs(t, err, ErrUnknownCluster)
	assert.Contains(t, err.Error(), "betzy")

	_, err = ct.Coefficient("")
	assert.ErrorIs(t, err, ErrUnknownCluster)
}

func TestCostTableRejectsBadCoefficients(t *testing.T) {
	_, err := NewCostTable(map[string]float64{"fox": 0})
	assert.Error(t, err)
	_, err = NewCostTable(map[string]float64{"fox": -1})
	assert.Error(t, err)
	_, err = NewCostTable(map[string]float64{"fox": 1, "FOX": 2})
	assert.ErrorContains(t, err, "duplicate")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 0.0, TotalBytes(100, 0))
	assert.Equal(t, 300.0, TotalBytes(100, 3))
	assert.Equal(t, 0.0, Rate(300, 0))
	assert.Equal(t, 5.0, Rate(300, 60))
	assert.Equal(t, 8000.0, MemoryTotal(1000, units.PerCore, 8, 2))
	assert.Equal(t, 2000.0, MemoryTotal(1000, units.PerNode, 8, 2))
	assert.Equal(t, 0.0, MemoryTotal(0, "", 8, 2))
	assert.Equal(t, "CANCELLED", NormalizeState("CANCELLED by 1234"))
	assert.Equal(t, "COMPLETED", NormalizeState("COMPLETED"))
	assert.Equal(t, 4.0, CostInServiceUnits(7200, 2))
}

func TestApply(t *testing.T) {
	ct, err := NewCostTable(map[string]float64{"fox": 1})
	require.NoError(t, err)
	c := NewCalculator(ct)

	r := record{
		"AveDiskRead":  table.NumCell(10),
		"AveDiskWrite": table.TextCell("20"),
		"NTasks":       table.NumCell(4),
		"Elapsed":      table.NumCell(8),
		"ReqMem":       table.TextCell("2Gn"),
		"NCPUS":        table.NumCell(32),
		"NNodes":       table.NumCell(2),
		"State":        table.TextCell("TIMEOUT"),
		"CPUTimeRAW":   table.NumCell(36000),
		"Cluster":      table.TextCell("fox"),
	}
	var l units.Leniency
	require.NoError(t, c.Apply(r, &l))

	assert.Equal(t, table.NumCell(40), r[TotalDiskRead])
	assert.Equal(t, table.NumCell(80), r[TotalDiskWrite])
	assert.Equal(t, table.NumCell(5), r[DiskReadRate])
	assert.Equal(t, table.NumCell(10), r[DiskWriteRate])
	assert.Equal(t, table.NumCell(2048), r[ReqMemAmount])
	assert.Equal(t, table.TextCell("node"), r[ReqMemPer])
	assert.Equal(t, table.NumCell(4096), r[TotalReqMem])
	assert.Equal(t, table.TextCell("TIMEOUT"), r[JobState])
	assert.Equal(t, table.NumCell(10), r[ServiceUnits])
	assert.Equal(t, 0, l.Total())
}

func TestApplyLenient(t *testing.T) {
	ct, err := NewCostTable(map[string]float64{"fox": 1})
	require.NoError(t, err)
	r := record{
		"ReqMem":  table.TextCell("lots"),
		"NTasks":  table.TextCell("x"),
		"Cluster": table.TextCell("fox"),
	}
	var l units.Leniency
	require.NoError(t, NewCalculator(ct).Apply(r, &l))
	assert.Equal(t, table.NullCell(), r[ReqMemPer])
	assert.Equal(t, table.NumCell(0), r[ReqMemAmount])
	assert.Equal(t, table.NullCell(), r[JobState])
	assert.Equal(t, 1, l.Count(units.MemoryToken))
	assert.Equal(t, 1, l.Count(units.NumberToken))
}

func TestApplyUnknownCluster(t *testing.T) {
	r := record{"Cluster": table.TextCell("saga")}
	err := NewCalculator(CostTable{}).Apply(r, nil)
	assert.ErrorIs(t, err, ErrUnknownCluster)
}
