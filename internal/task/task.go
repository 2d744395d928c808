// Package task defines the persistent task data model and its state machine.
package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a Task. It is a sum type over the five
// states named in the design; the string form below is a serialization
// artifact for the wire and for tasks.json, not the internal representation.
type Status int

const (
	Pending Status = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' {
		str = str[1 : len(str)-1]
	}
	switch str {
	case "pending":
		*s = Pending
	case "running":
		*s = Running
	case "completed":
		*s = Completed
	case "failed":
		*s = Failed
	case "cancelled":
		*s = Cancelled
	default:
		return fmt.Errorf("task: unknown status %q", str)
	}
	return nil
}

// Task is the unit of work tracked by the Store. Field tags match the wire
// encoding described by the persisted-state contract: optional timestamps
// marshal to JSON null when unset.
type Task struct {
	ID             uint64     `json:"id"`
	ScriptPath     string     `json:"script_path"`
	Workdir        string     `json:"workdir"`
	NCPU           int        `json:"ncpu"`
	NGPU           int        `json:"ngpu"`
	SpecificCPUs   []int      `json:"specific_cpus"`
	SpecificGPUs   []int      `json:"specific_gpus"`
	LogFile        string     `json:"log_file"`
	AllocatedCPUs  []int      `json:"allocated_cpus"`
	AllocatedGPUs  []int      `json:"allocated_gpus"`
	Status         Status     `json:"status"`
	PID            int        `json:"pid"`
	ExitCode       int        `json:"exit_code"`
	SubmitTime     time.Time  `json:"submit_time"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

// IsTerminal reports whether the task will never transition again.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case Completed, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// Request carries everything needed to admit a new task, i.e. the fields of
// Task that a caller controls. Kept distinct from Task so that Submit can
// stamp the id/status/timestamps without the caller pre-populating them.
type Request struct {
	ScriptPath   string
	Workdir      string
	NCPU         int
	NGPU         int
	SpecificCPUs []int
	SpecificGPUs []int
	LogFile      string
}
