// Derived fields for collapsed jobs: totals, rates, memory, state, and cost.  Everything here is
// row-local and runs after aggregation, reading only columns that have already been reduced.
//
// Units follow the analytic variant: byte quantities are in megabytes, durations in seconds.

package derive

import (
	"strings"

	"sacctcollapse/table"
	"sacctcollapse/units"
)

// Derived columns, in output order.
const (
	TotalDiskRead  = "TotalDiskRead"
	TotalDiskWrite = "TotalDiskWrite"
	DiskReadRate   = "DiskReadRate"
	DiskWriteRate  = "DiskWriteRate"
	ReqMemAmount   = "ReqMemAmount"
	ReqMemPer      = "ReqMemPer"
	TotalReqMem    = "TotalReqMem"
	JobState       = "JobState"
	ServiceUnits   = "ServiceUnits"
)

var Columns = []string{
	TotalDiskRead, TotalDiskWrite, DiskReadRate, DiskWriteRate,
	ReqMemAmount, ReqMemPer, TotalReqMem, JobState, ServiceUnits,
}

// Columns the calculator reads.
var Inputs = []string{
	"AveDiskRead", "AveDiskWrite", "NTasks", "Elapsed", "ReqMem", "NCPUS", "NNodes",
	"State", "CPUTimeRAW", "Cluster",
}

// A Record is one collapsed row viewed by column name.
type Record interface {
	Get(column string) table.Cell
	Set(column string, value table.Cell)
}

type Calculator struct {
	costs CostTable
}

func NewCalculator(costs CostTable) *Calculator {
	return &Calculator{costs: costs}
}

// Apply computes every derived column of r.  It fails only if the job's cluster has no cost
// coefficient; in that case r may have been partially updated and must be discarded.
func (c *Calculator) Apply(r Record, lenient *units.Leniency) error {
	tasks := number(r.Get("NTasks"), lenient)
	elapsed := number(r.Get("Elapsed"), lenient)

	read := TotalBytes(number(r.Get("AveDiskRead"), lenient), tasks)
	write := TotalBytes(number(r.Get("AveDiskWrite"), lenient), tasks)
	r.Set(TotalDiskRead, table.NumCell(read))
	r.Set(TotalDiskWrite, table.NumCell(write))
	r.Set(DiskReadRate, table.NumCell(Rate(read, elapsed)))
	r.Set(DiskWriteRate, table.NumCell(Rate(write, elapsed)))

	reqMem := r.Get("ReqMem")
	amount, per := units.SplitMemoryRequest(reqMem.String())
	if !reqMem.IsNull() && per == "" {
		lenient.Note(units.MemoryToken)
	}
	r.Set(ReqMemAmount, table.NumCell(amount))
	if per == "" {
		r.Set(ReqMemPer, table.NullCell())
	} else {
		r.Set(ReqMemPer, table.TextCell(per))
	}
	r.Set(TotalReqMem, table.NumCell(
		MemoryTotal(amount, per, number(r.Get("NCPUS"), lenient), number(r.Get("NNodes"), lenient))))

	state := r.Get("State")
	if state.IsNull() {
		r.Set(JobState, state)
	} else {
		r.Set(JobState, table.TextCell(NormalizeState(state.String())))
	}

	cluster := r.Get("Cluster")
	coef, err := c.costs.Coefficient(cluster.String())
	if err != nil {
		return err
	}
	r.Set(ServiceUnits, table.NumCell(CostInServiceUnits(number(r.Get("CPUTimeRAW"), lenient), coef)))
	return nil
}

// TotalBytes is the per-task average times the number of tasks.
func TotalBytes(perTask, tasks float64) float64 {
	if tasks == 0 {
		return 0
	}
	return perTask * tasks
}

// Rate is total/elapsed, or zero if no time elapsed.
func Rate(total, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return total / elapsedSeconds
}

// MemoryTotal multiplies by the core count for a per-core request and by the node count otherwise.
func MemoryTotal(amount float64, per string, cores, nodes float64) float64 {
	if per == units.PerCore {
		return amount * cores
	}
	return amount * nodes
}

// NormalizeState drops qualifier words: "CANCELLED by 1234" becomes "CANCELLED".
func NormalizeState(s string) string {
	state, _, _ := strings.Cut(s, " ")
	return state
}

func CostInServiceUnits(cpuSeconds, coefficient float64) float64 {
	return cpuSeconds / 3600 * coefficient
}

func number(c table.Cell, lenient *units.Leniency) float64 {
	if c.IsNull() {
		return 0
	}
	if x, ok := c.Num(); ok {
		return x
	}
	x, ok := units.ParseNumber(c.String())
	if !ok {
		lenient.Note(units.NumberToken)
	}
	return x
}
