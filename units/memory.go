package units

const (
	PerCore = "core"
	PerNode = "node"
)

// SplitMemoryRequest splits a ReqMem token of the form <number>[K|M|G]<c|n> into a magnitude in
// megabytes and a qualifier, PerCore or PerNode.  A missing or unrecognized qualifier, or a bad
// magnitude, yields (0, "").
func SplitMemoryRequest(s string) (magnitude float64, qualifier string) {
	if len(s) < 2 {
		return 0, ""
	}
	switch s[len(s)-1] {
	case 'c':
		qualifier = PerCore
	case 'n':
		qualifier = PerNode
	default:
		return 0, ""
	}
	magnitude, ok := Megabytes.Parse(s[:len(s)-1])
	if !ok {
		return 0, ""
	}
	return magnitude, qualifier
}
