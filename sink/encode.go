package sink

import (
	"encoding/json"

	"sacctcollapse/collapse"
	"sacctcollapse/policy"
	"sacctcollapse/table"
)

// Value is a cell as a JSON-friendly value: nil, string, or float64.
func Value(c table.Cell) any {
	switch c.Kind() {
	case table.Num:
		x, _ := c.Num()
		return x
	case table.Text:
		return c.String()
	default:
		return nil
	}
}

// A Job is one output row keyed by column name.
type Job struct {
	Key    string
	Fields map[string]any
}

func Jobs(res *collapse.Result) []Job {
	t := res.Table
	columns := t.Columns()
	jobs := make([]Job, t.NumRows())
	for r := range jobs {
		fields := make(map[string]any, len(columns))
		for ci, c := range columns {
			fields[c] = Value(t.Cell(r, ci))
		}
		jobs[r] = Job{
			Key:    t.Get(r, policy.JobColumn).String(),
			Fields: fields,
		}
	}
	return jobs
}

func (j Job) JSON() ([]byte, error) {
	return json.Marshal(j.Fields)
}
