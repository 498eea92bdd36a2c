package policy

// The sacct columns of the raw input, in input order.  This is the -o list the accounting dumps
// were produced with.

var SacctColumns = []string{
	"AllocCPUS", "AllocGRES", "AllocNodes", "AllocTRES", "Account",
	"AssocID", "AveCPU", "AveCPUFreq", "AveDiskRead", "AveDiskWrite",
	"AvePages", "AveRSS", "AveVMSize", "BlockID", "Cluster", "Comment",
	"ConsumedEnergy", "ConsumedEnergyRaw", "CPUTime", "CPUTimeRAW", "DerivedExitCode",
	"Elapsed", "Eligible", "End", "ExitCode", "GID",
	"Group", "JobID", "JobIDRaw", "JobName", "Layout",
	"MaxDiskRead", "MaxDiskReadNode", "MaxDiskReadTask", "MaxDiskWrite", "MaxDiskWriteNode",
	"MaxDiskWriteTask", "MaxPages", "MaxPagesNode", "MaxPagesTask", "MaxRSS",
	"MaxRSSNode", "MaxRSSTask", "MaxVMSize", "MaxVMSizeNode", "MaxVMSizeTask",
	"MinCPU", "MinCPUNode", "MinCPUTask", "NCPUS", "NNodes",
	"NodeList", "NTasks", "Priority", "Partition", "QOS",
	"QOSRAW", "ReqCPUFreq", "ReqCPUFreqMin", "ReqCPUFreqMax", "ReqCPUFreqGov",
	"ReqCPUS", "ReqGRES", "ReqMem", "ReqNodes", "ReqTRES",
	"Reservation", "ReservationId", "Reserved", "ResvCPU", "ResvCPURAW",
	"Start", "State", "Submit", "Suspended", "SystemCPU",
	"Timelimit", "TotalCPU", "UID", "User", "UserCPU",
	"WCKey", "WCKeyID",
}

// Columns that exist only in collapsed output.  They are computed from the group, not read, so a
// raw table need not have them.
const (
	StepsColumn = "NJobSteps"
	JobColumn   = "Job"
)

var ExtraColumns = []string{StepsColumn, JobColumn}

// The grouping key is derived from this column.
const KeyColumn = "JobIDRaw"

// Duration columns are converted to seconds before grouping.
var DurationColumns = []string{
	"Elapsed", "CPUTime", "AveCPU", "MinCPU",
	"Reserved", "ResvCPU", "SystemCPU",
	"UserCPU", "TotalCPU",
}

// Timestamps, kept as text by the first pass.
var TimestampColumns = []string{"Submit", "Start", "End", "Eligible"}

// Columns grouped by how they collapse.  The first-pass tables follow the manual stratification of
// the accounting columns; they are deliberately uninformed about what downstream analysis wants.

var (
	// Constant across the steps of a job.
	uniqueToJob = []string{
		"Account", "AssocID", "Cluster", "GID", "Group",
		"BlockID", "DerivedExitCode", "ReqMem", "ReqTRES",
		"Reservation", "ReservationId", "Priority", "Partition",
		"QOS", "QOSRAW", "Timelimit", "UID", "User",
	}

	// Rarely meaningful, kept by flattening.
	uninformative = []string{
		"AllocGRES", "Comment", "ConsumedEnergy",
		"ConsumedEnergyRaw", "ReqCPUFreq", "ReqCPUFreqMin",
		"ReqCPUFreqMax", "ReqCPUFreqGov", "ReqGRES",
		"Suspended", "WCKey", "WCKeyID",
	}

	// Per-step values where every value is informative.
	flatten = []string{
		"Eligible", "End", "JobName", "Layout",
		"Start", "State", "Submit", "MaxDiskReadNode",
		"MaxDiskReadTask", "MaxDiskWriteNode", "MaxDiskWriteTask", "MaxPagesNode",
		"MaxPagesTask", "MaxRSSNode", "MaxRSSTask", "MaxVMSizeNode",
		"MaxVMSizeTask", "MinCPUNode", "MinCPUTask", "NodeList", "ExitCode",
	}

	unitAverage = []string{"AveCPUFreq", "AveDiskRead", "AveDiskWrite", "AvePages", "AveRSS", "AveVMSize"}

	numericAverage = []string{"AveCPU", "Reserved", "ResvCPU"}

	maximum = []string{"MaxDiskRead", "MaxDiskWrite", "MaxPages", "MaxRSS", "MaxVMSize"}

	sum = []string{
		"AllocCPUS", "AllocNodes", "NTasks",
		"ResvCPURAW", "NCPUS", "CPUTimeRAW",
		"ReqNodes", "ReqCPUS", "NNodes", "Elapsed", "CPUTime", "SystemCPU", "UserCPU", "TotalCPU",
	}
)

// FirstPassCategories classifies every sacct column plus the extra columns.
func FirstPassCategories() []Category {
	return []Category{
		{Name: "unique-to-job", Kind: FirstNonNull, Columns: uniqueToJob},
		{Name: "uninformative", Kind: Concatenate, Columns: uninformative},
		{Name: "flatten", Kind: Concatenate, Columns: flatten},
		{Name: "unit-average", Kind: UnitMean, Columns: unitAverage},
		{Name: "numeric-average", Kind: PlainMean, Columns: numericAverage},
		{Name: "max", Kind: Max, Columns: maximum},
		{Name: "sum", Kind: Sum, Columns: sum},
		{Name: "job-id", Kind: ExtractJobID, Columns: []string{"JobID"}},
		{Name: "job-id-raw", Kind: ExtractJobIDRaw, Columns: []string{"JobIDRaw"}},
		{Name: "tres", Kind: ExtractTRES, Columns: []string{"AllocTRES"}},
		{Name: "min", Kind: Min, Columns: []string{"MinCPU"}},
		{Name: "steps", Kind: ExtractSteps, Columns: []string{StepsColumn}},
		{Name: "job", Kind: ExtractJob, Columns: []string{JobColumn}},
	}
}

// The analytic pass wants one value per job where the first pass flattened: the job's own row
// comes first in sacct output, so its state and timestamps are taken.  Allocation sizes are the
// largest any step reports rather than a sum, and wall time is the job's, not the sum of the steps'.
var (
	analyticFirst = append([]string{"State", "JobName"}, TimestampColumns...)
	analyticMax   = []string{
		"Elapsed", "NCPUS", "NNodes", "AllocCPUS", "AllocNodes", "ReqCPUS", "ReqNodes",
	}
)

func AnalyticCategories() []Category {
	cats := FirstPassCategories()
	moved := make(map[string]bool)
	for _, c := range analyticFirst {
		moved[c] = true
	}
	for _, c := range analyticMax {
		moved[c] = true
	}
	for i := range cats {
		cats[i].Columns = without(cats[i].Columns, moved)
	}
	return append(cats,
		Category{Name: "job-attributes", Kind: FirstNonNull, Columns: analyticFirst},
		Category{Name: "job-extent", Kind: Max, Columns: analyticMax},
	)
}

// The analytic output: the job's identity, its resource use, and (appended by the derived-field
// calculator) totals, rates, memory, state, and cost.
var AnalyticOutputColumns = []string{
	"Job", "JobID", "JobIDRaw", "NJobSteps",
	"Cluster", "Account", "User", "Group", "Partition", "QOS",
	"JobName", "State", "Submit", "Start", "End",
	"Elapsed", "CPUTime", "CPUTimeRAW", "TotalCPU", "UserCPU", "SystemCPU",
	"NCPUS", "NNodes", "NTasks", "ReqMem", "AllocTRES",
	"AveDiskRead", "AveDiskWrite", "MaxDiskRead", "MaxDiskWrite",
	"AveRSS", "MaxRSS", "MaxVMSize",
	"NodeList", "ExitCode",
}

func without(xs []string, drop map[string]bool) []string {
	ys := make([]string, 0, len(xs))
	for _, x := range xs {
		if !drop[x] {
			ys = append(ys, x)
		}
	}
	return ys
}

// Schema returns the sacct columns followed by the extra columns.
func Schema() []string {
	return append(append([]string(nil), SacctColumns...), ExtraColumns...)
}
