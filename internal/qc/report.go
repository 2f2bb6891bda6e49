package qc

// Result counts the flags for one checked variable.
type Result struct {
	Source    int    `json:"source"`
	DatasetID string `json:"dataset_id"`
	Generic   string `json:"generic"`
	Variable  string `json:"variable"`
	Units     string `json:"units"`

	Good    int `json:"good"`
	Suspect int `json:"suspect"`
	Fail    int `json:"fail"`
	Missing int `json:"missing"`
}

func newResult(id, generic, name, units string, flags []Flag) Result {
	r := Result{DatasetID: id, Generic: generic, Variable: name, Units: units}
	for _, f := range flags {
		switch f {
		case FlagGood:
			r.Good++
		case FlagSuspect:
			r.Suspect++
		case FlagFail:
			r.Fail++
		case FlagMissing:
			r.Missing++
		}
	}
	return r
}

// Total is the number of flagged values.
func (r Result) Total() int { return r.Good + r.Suspect + r.Fail + r.Missing }

// Report summarizes a QC pass.
type Report struct {
	Session string   `json:"session,omitempty"`
	Results []Result `json:"results"`
}

// Merge appends other's results tagged with source index i.
func (r *Report) Merge(i int, other Report) {
	for _, res := range other.Results {
		res.Source = i
		r.Results = append(r.Results, res)
	}
}

// Count sums one flag across all results.
func (r Report) Count(f Flag) int {
	n := 0
	for _, res := range r.Results {
		switch f {
		case FlagGood:
			n += res.Good
		case FlagSuspect:
			n += res.Suspect
		case FlagFail:
			n += res.Fail
		case FlagMissing:
			n += res.Missing
		}
	}
	return n
}
