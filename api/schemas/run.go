package schemas

import "time"

// RunStatus is the lifecycle state of an automation run.
type RunStatus string

const (
	// StatusIdle means no action sequence is loaded yet.
	StatusIdle      RunStatus = "idle"
	StatusReady     RunStatus = "ready"
	StatusRunning   RunStatus = "running"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
	StatusStopped   RunStatus = "stopped"
	StatusError     RunStatus = "error"
)

// Active reports whether a worker owns the run.
func (s RunStatus) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

// Terminal reports whether the run has ended.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusError
}

// RunModeKind distinguishes bounded from continuous runs.
type RunModeKind string

const (
	ModeBounded    RunModeKind = "bounded"
	ModeContinuous RunModeKind = "continuous"
)

// RunState is the observable progress of a run.
type RunState struct {
	RunID      string      `json:"runId"`
	Status     RunStatus   `json:"status"`
	Mode       RunModeKind `json:"mode"`
	CurrentRow int         `json:"currentRow"`
	TotalRows  int         `json:"totalRows"`
	// Pass counts completed wraps in continuous mode; zero for the first pass.
	Pass       int       `json:"pass"`
	Err        string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// DataRow is one row of the tabular data source.
type DataRow struct {
	// Index is the 0-based position of the row in the source.
	Index int
	// Cells holds trimmed cell values, padded to Width. After date expansion three
	// synthetic values (day, month, year) follow the padded cells.
	Cells []string
	// Width is the padded source width before expansion.
	Width int
}

// Value returns the cell at column i, or "" when out of range.
func (r DataRow) Value(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Expanded reports whether the synthetic date columns are present.
func (r DataRow) Expanded() bool {
	return len(r.Cells) == r.Width+3
}
