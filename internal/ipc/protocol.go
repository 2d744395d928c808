// Package ipc implements the wire protocol between myqueue (CLI) and
// myqueued (daemon): length-prefixed JSON envelopes over a Unix domain
// socket.
package ipc

import "fmt"

// MsgType names a message envelope's kind. Request types are what a client
// sends; response types are what the server sends back.
type MsgType string

const (
	MsgSubmit    MsgType = "SUBMIT"
	MsgQuery     MsgType = "QUERY_QUEUE"
	MsgQueryAll  MsgType = "QUERY_QUEUE_ALL"
	MsgDelete    MsgType = "DELETE_TASK"
	MsgDeleteAll MsgType = "DELETE_ALL"
	MsgInfo      MsgType = "GET_TASK_INFO"
	MsgLog       MsgType = "GET_TASK_LOG"
	MsgSubscribe MsgType = "SUBSCRIBE"
	MsgShutdown  MsgType = "SHUTDOWN"

	MsgOk    MsgType = "OK"
	MsgError MsgType = "ERROR"
)

// Envelope is the top-level JSON object sent in every frame: {"type": ...,
// "payload": ...}. WriteFrame marshals Payload as given; ReadFrame decodes
// into rawEnvelope instead, leaving the payload as raw JSON so readers can
// decode it into whichever concrete request/response type "type" implies.
type Envelope struct {
	Type    MsgType `json:"type"`
	Payload any     `json:"payload"`
}

// SubmitRequest carries everything the scheduler needs to enqueue a task.
type SubmitRequest struct {
	ScriptPath   string `json:"script_path"`
	Workdir      string `json:"workdir"`
	NCPU         int    `json:"ncpu"`
	NGPU         int    `json:"ngpu"`
	SpecificCPUs []int  `json:"specific_cpus,omitempty"`
	SpecificGPUs []int  `json:"specific_gpus,omitempty"`
	LogFile      string `json:"log_file,omitempty"`
}

// SubmitResponse carries the id assigned to a successful Submit.
type SubmitResponse struct {
	ID uint64 `json:"id"`
}

// DeleteRequest is a batch of ids, so cancel/--range can be serviced in one
// round trip.
type DeleteRequest struct {
	TaskIDs []uint64 `json:"task_ids"`
}

// DeleteResponse reports per-id success, since some ids in a batch may not
// exist.
type DeleteResponse struct {
	Deleted []uint64 `json:"deleted"`
	Missing []uint64 `json:"missing"`
}

// DeleteAllCounts breaks down a delete-all by what each removed task was
// doing at the time it was removed.
type DeleteAllCounts struct {
	Total             int `json:"total"`
	RunningTerminated int `json:"running_terminated"`
	PendingDeleted    int `json:"pending_deleted"`
	TerminalDeleted   int `json:"terminal_deleted"`
}

// DeleteAllResponse reports the counts delete-all affected.
type DeleteAllResponse struct {
	Counts DeleteAllCounts `json:"counts"`
}

// QueryRequest selects which tasks Query returns. IncludeTerminal is the
// "--all" switch on `myqueue ps`.
type QueryRequest struct {
	IncludeTerminal bool `json:"include_terminal"`
}

// QueryResponse is the flattened task list `myqueue ps` renders.
type QueryResponse struct {
	Tasks []TaskInfo `json:"tasks"`
}

// TaskInfo is the wire shape of a task: the full persisted record plus its
// resolved resource allocation, with timestamps formatted as strings.
type TaskInfo struct {
	ID            uint64  `json:"id"`
	Status        string  `json:"status"`
	ScriptPath    string  `json:"script_path"`
	Workdir       string  `json:"workdir"`
	AllocatedCPUs []int   `json:"allocated_cpus"`
	AllocatedGPUs []int   `json:"allocated_gpus"`
	PID           int     `json:"pid"`
	ExitCode      int     `json:"exit_code"`
	SubmitTime    string  `json:"submit_time"`
	StartTime     *string `json:"start_time"`
	EndTime       *string `json:"end_time"`
}

// InfoRequest asks for a single task's full record.
type InfoRequest struct {
	ID uint64 `json:"id"`
}

// LogRequest asks for a task's captured stdout/stderr, optionally only the
// last Tail lines (0 means the whole file).
type LogRequest struct {
	ID   uint64 `json:"id"`
	Tail int    `json:"tail"`
}

// LogResponse carries the requested log file's path and content.
type LogResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SubscribeEvent is pushed by the server over a long-lived Subscribe
// connection whenever a task changes state; `myqueue watch` renders these.
type SubscribeEvent struct {
	TaskID    uint64 `json:"task_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the payload of an Error envelope.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string { return e.Message }

// ErrorEnvelope builds an Error-typed envelope wrapping msg.
func ErrorEnvelope(msg string) Envelope {
	return Envelope{Type: MsgError, Payload: ErrorResponse{Message: msg}}
}

// ErrorEnvelopef is ErrorEnvelope with fmt.Sprintf-style formatting.
func ErrorEnvelopef(format string, args ...any) Envelope {
	return ErrorEnvelope(fmt.Sprintf(format, args...))
}
