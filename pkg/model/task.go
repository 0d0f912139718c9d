// Package model defines the data structures exchanged between the CLI
// front-end and the solve engine: a task describing what to solve and
// the result it produced.
package model

import "time"

// TaskStatus represents the status of a solve task.
type TaskStatus int

const (
	TaskStatusPending   TaskStatus = 0
	TaskStatusRunning   TaskStatus = 1
	TaskStatusCompleted TaskStatus = 2
	TaskStatusFailed    TaskStatus = 3
)

// String returns the string representation of TaskStatus.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusRunning:
		return "running"
	case TaskStatusCompleted:
		return "completed"
	case TaskStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SolveTask describes one invocation of the engine: the formula and
// decomposition collaborators named in spec §6, plus the SolveConfig
// knobs resolved from CLI flags/config file.
type SolveTask struct {
	ID              int64      `json:"id"`
	FormulaPath     string     `json:"formula_path"`
	DecompPath      string     `json:"decomp_path"`
	Layout          string     `json:"layout"`
	Weighted        bool       `json:"weighted"`
	DoTrace         bool       `json:"do_trace"`
	MaxBag          int        `json:"max_bag"`
	MaxMemoryBuffer uint64     `json:"max_memory_buffer"`
	CombineWidth    int        `json:"combine_width"`
	Status          TaskStatus `json:"status"`
	StatusInfo      string     `json:"status_info"`
	CreateTime      time.Time  `json:"create_time"`
	BeginTime       *time.Time `json:"begin_time"`
	EndTime         *time.Time `json:"end_time"`
}

// NewSolveTask creates a pending SolveTask for the given formula/decomp
// pair.
func NewSolveTask(formulaPath, decompPath string) *SolveTask {
	return &SolveTask{
		FormulaPath: formulaPath,
		DecompPath:  decompPath,
		Layout:      "auto",
		Status:      TaskStatusPending,
		CreateTime:  time.Now(),
	}
}

// MarkRunning transitions the task to running and records the start time.
func (t *SolveTask) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.BeginTime = &now
}

// MarkDone transitions the task to completed or failed and records the
// end time.
func (t *SolveTask) MarkDone(failed bool, info string) {
	now := time.Now()
	t.EndTime = &now
	t.StatusInfo = info
	if failed {
		t.Status = TaskStatusFailed
		return
	}
	t.Status = TaskStatusCompleted
}

// Duration returns the wall-clock time spent solving, zero if the task
// hasn't finished.
func (t *SolveTask) Duration() time.Duration {
	if t.BeginTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.BeginTime)
}
