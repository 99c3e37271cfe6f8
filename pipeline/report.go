package pipeline

import "time"

// RunMode selects how a run walks the graph.
//
// Waterfall processes beakers one at a time in topological order; river
// takes each item from the first beaker and flows it all the way downstream.
type RunMode string

const (
	Waterfall RunMode = "waterfall"
	River     RunMode = "river"
)

// ParseRunMode returns the RunMode for s, or false for an unknown mode.
func ParseRunMode(s string) (RunMode, bool) {
	switch RunMode(s) {
	case Waterfall, River:
		return RunMode(s), true
	}
	return "", false
}

// AlreadyProcessed is the pseudo-destination used in run reports for items
// that were skipped because the destination beaker already had them.
const AlreadyProcessed = "_already_processed"

// RunReport summarizes a pipeline run: for each source beaker, how many
// items were dispatched to each destination.
type RunReport struct {
	StartTime   time.Time                 `json:"start_time"`
	EndTime     time.Time                 `json:"end_time"`
	Mode        RunMode                   `json:"run_mode"`
	OnlyBeakers []string                  `json:"only_beakers,omitempty"`
	Nodes       map[string]map[string]int `json:"nodes"`
}

// Duration returns the elapsed wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

func (r *RunReport) count(from, to string) {
	if r.Nodes[from] == nil {
		r.Nodes[from] = map[string]int{}
	}
	r.Nodes[from][to]++
}
