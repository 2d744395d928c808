package main

import (
	"encoding/json"

	"github.com/myqueue/myqueue/internal/archive"
	"github.com/myqueue/myqueue/internal/ipc"
	"github.com/myqueue/myqueue/internal/scheduler"
	"github.com/myqueue/myqueue/internal/task"
)

// handler builds the ipc.Handler that answers the protocol's request types,
// wired to store and sched. QUERY_QUEUE_ALL is not handled and gets the
// unknown-type error (`ps --all` sends QUERY_QUEUE with include_terminal);
// SUBSCRIBE connections are taken over by the server's OnSubscribe hook.
func handler(store *task.Store, sched *scheduler.Scheduler) ipc.Handler {
	return func(typ ipc.MsgType, payload json.RawMessage) (ipc.MsgType, any) {
		switch typ {
		case ipc.MsgSubmit:
			return handleSubmit(store, payload)
		case ipc.MsgQuery:
			return handleQuery(store, payload)
		case ipc.MsgDelete:
			return handleDelete(store, sched, payload)
		case ipc.MsgDeleteAll:
			return handleDeleteAll(store, sched)
		case ipc.MsgInfo:
			return handleInfo(store, payload)
		case ipc.MsgLog:
			return handleLog(store, payload)
		case ipc.MsgShutdown:
			cancel()
			return ipc.MsgOk, struct{}{}
		default:
			return ipc.MsgError, ipc.ErrorResponse{Message: "unknown message type: " + string(typ)}
		}
	}
}

func handleSubmit(store *task.Store, payload json.RawMessage) (ipc.MsgType, any) {
	var req ipc.SubmitRequest
	if err := ipc.DecodePayload(payload, &req); err != nil {
		return ipc.MsgError, ipc.ErrorResponse{Message: "malformed submit request: " + err.Error()}
	}

	id := store.Submit(task.Request{
		ScriptPath:   req.ScriptPath,
		Workdir:      req.Workdir,
		NCPU:         req.NCPU,
		NGPU:         req.NGPU,
		SpecificCPUs: req.SpecificCPUs,
		SpecificGPUs: req.SpecificGPUs,
		LogFile:      req.LogFile,
	})
	store.Save()
	return ipc.MsgOk, ipc.SubmitResponse{ID: id}
}

func handleQuery(store *task.Store, payload json.RawMessage) (ipc.MsgType, any) {
	var req ipc.QueryRequest
	ipc.DecodePayload(payload, &req) // best-effort; zero value means "not all"

	var tasks []task.Task
	if req.IncludeTerminal {
		tasks = store.All()
	} else {
		tasks = append(store.Pending(), store.Running()...)
	}

	infos := make([]ipc.TaskInfo, len(tasks))
	for i, t := range tasks {
		infos[i] = toTaskInfo(t)
	}
	return ipc.MsgOk, ipc.QueryResponse{Tasks: infos}
}

func handleDelete(store *task.Store, sched *scheduler.Scheduler, payload json.RawMessage) (ipc.MsgType, any) {
	var req ipc.DeleteRequest
	if err := ipc.DecodePayload(payload, &req); err != nil {
		return ipc.MsgError, ipc.ErrorResponse{Message: "malformed delete request: " + err.Error()}
	}

	var deleted, missing []uint64
	for _, id := range req.TaskIDs {
		if deleteOne(store, sched, id) {
			deleted = append(deleted, id)
		} else {
			missing = append(missing, id)
		}
	}
	return ipc.MsgOk, ipc.DeleteResponse{Deleted: deleted, Missing: missing}
}

func handleDeleteAll(store *task.Store, sched *scheduler.Scheduler) (ipc.MsgType, any) {
	var counts ipc.DeleteAllCounts
	for _, t := range store.All() {
		wasRunning := t.Status == task.Running
		wasTerminal := t.IsTerminal()
		if !deleteOne(store, sched, t.ID) {
			continue
		}
		counts.Total++
		switch {
		case wasRunning:
			counts.RunningTerminated++
		case wasTerminal:
			counts.TerminalDeleted++
		default:
			counts.PendingDeleted++
		}
	}
	return ipc.MsgOk, ipc.DeleteAllResponse{Counts: counts}
}

func deleteOne(store *task.Store, sched *scheduler.Scheduler, id uint64) bool {
	t, ok := store.Get(id)
	if !ok {
		return false
	}
	if t.Status == task.Running {
		return sched.Terminate(id, false)
	}
	ok = store.Delete(id)
	store.Save()
	return ok
}

func handleInfo(store *task.Store, payload json.RawMessage) (ipc.MsgType, any) {
	var req ipc.InfoRequest
	if err := ipc.DecodePayload(payload, &req); err != nil {
		return ipc.MsgError, ipc.ErrorResponse{Message: "malformed info request: " + err.Error()}
	}

	t, ok := store.Get(req.ID)
	if !ok {
		return ipc.MsgError, ipc.ErrorResponse{Message: "no such task"}
	}
	return ipc.MsgOk, toTaskInfo(t)
}

func handleLog(store *task.Store, payload json.RawMessage) (ipc.MsgType, any) {
	var req ipc.LogRequest
	if err := ipc.DecodePayload(payload, &req); err != nil {
		return ipc.MsgError, ipc.ErrorResponse{Message: "malformed log request: " + err.Error()}
	}

	t, ok := store.Get(req.ID)
	if !ok {
		return ipc.MsgError, ipc.ErrorResponse{Message: "no such task"}
	}
	if t.LogFile == "" {
		return ipc.MsgError, ipc.ErrorResponse{Message: "task has no per-task log file"}
	}

	logPath := t.Workdir + "/" + t.LogFile
	content, err := archive.Read(logPath)
	if err != nil {
		return ipc.MsgError, ipc.ErrorResponse{Message: "reading log: " + err.Error()}
	}
	return ipc.MsgOk, ipc.LogResponse{Path: logPath, Content: tailLines(string(content), req.Tail)}
}

func tailLines(content string, n int) string {
	if n <= 0 {
		return content
	}
	lines := splitLines(content)
	if len(lines) <= n {
		return content
	}
	tail := lines[len(lines)-n:]
	out := ""
	for i, l := range tail {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func toTaskInfo(t task.Task) ipc.TaskInfo {
	info := ipc.TaskInfo{
		ID:            t.ID,
		Status:        t.Status.String(),
		ScriptPath:    t.ScriptPath,
		Workdir:       t.Workdir,
		AllocatedCPUs: t.AllocatedCPUs,
		AllocatedGPUs: t.AllocatedGPUs,
		PID:           t.PID,
		ExitCode:      t.ExitCode,
		SubmitTime:    t.SubmitTime.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if t.StartTime != nil {
		s := t.StartTime.UTC().Format("2006-01-02T15:04:05Z")
		info.StartTime = &s
	}
	if t.EndTime != nil {
		e := t.EndTime.UTC().Format("2006-01-02T15:04:05Z")
		info.EndTime = &e
	}
	return info
}
