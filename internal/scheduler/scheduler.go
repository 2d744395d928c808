// Package scheduler drives the dispatch and supervise loops that move
// tasks Pending -> Running -> terminal, coordinating the task store,
// resource ledger, and executor.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/myqueue/myqueue/internal/executor"
	"github.com/myqueue/myqueue/internal/resource"
	"github.com/myqueue/myqueue/internal/task"
)

// StateChange is the payload of the scheduler's state-change callback,
// installed by an external collaborator (the IPC server, for `watch`).
type StateChange struct {
	TaskID uint64
	Old    task.Status
	New    task.Status
}

// Callback is invoked on every task state transition. It is never invoked
// under any Scheduler, Store, or Ledger lock.
type Callback func(StateChange)

// Archiver compresses a terminal task's log file at rest. It is optional;
// a nil Archiver disables archival.
type Archiver interface {
	Archive(taskID uint64, logPath string)
}

// Scheduler owns a task.Store, a resource.Ledger, and an executor.Executor,
// and runs the dispatch and supervise loops as two goroutines, coordinated
// by a context instead of the C++ original's atomic-flag-plus-thread-join.
type Scheduler struct {
	store    *task.Store
	ledger   *resource.Ledger
	exec     *executor.Executor
	archiver Archiver

	dispatchInterval  time.Duration
	superviseInterval time.Duration

	cbMu sync.RWMutex
	cb   Callback

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler. Call Start to begin its loops.
func New(store *task.Store, ledger *resource.Ledger, exec *executor.Executor, dispatchInterval, superviseInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:             store,
		ledger:            ledger,
		exec:              exec,
		dispatchInterval:  dispatchInterval,
		superviseInterval: superviseInterval,
	}
}

// SetArchiver installs the log archiver used on terminal transitions.
func (s *Scheduler) SetArchiver(a Archiver) { s.archiver = a }

// OnStateChange installs the callback invoked on every transition. Only one
// callback is supported at a time; installing a new one replaces the old.
func (s *Scheduler) OnStateChange(cb Callback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.cb = cb
}

func (s *Scheduler) notify(change StateChange) {
	s.cbMu.RLock()
	cb := s.cb
	s.cbMu.RUnlock()
	if cb != nil {
		cb(change)
	}
}

// Start performs startup recovery (§4.6.4) then launches the dispatch and
// supervise loops on their own goroutines.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.recover()

	s.wg.Add(2)
	go s.dispatchLoop(ctx)
	go s.superviseLoop(ctx)
}

// Stop cancels both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// recover re-probes every task the loaded store believes is Running: if its
// pid is still alive, its resources are re-marked reserved in the Ledger;
// otherwise it is transitioned to Failed with resources left free.
func (s *Scheduler) recover() {
	for _, t := range s.store.Running() {
		if s.exec.Probe(t.PID).Running {
			s.ledger.MarkReserved(t.AllocatedCPUs, t.AllocatedGPUs)
			continue
		}
		if s.store.SetFailed(t.ID) {
			s.notify(StateChange{TaskID: t.ID, Old: task.Running, New: task.Failed})
		}
	}
	s.store.Save()
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchTick()
		}
	}
}

// dispatchTick dispatches at most one task per call: strict FIFO means a
// head-of-line task with unavailable resources blocks the queue rather
// than letting a later task jump ahead.
func (s *Scheduler) dispatchTick() {
	pending := s.store.Pending()
	if len(pending) == 0 {
		return
	}
	t := pending[0]

	alloc, ok := s.ledger.Reserve(t.NCPU, t.NGPU, t.SpecificCPUs, t.SpecificGPUs)
	if !ok {
		return
	}

	pid, err := s.exec.Spawn(executor.Spec{
		ID:         t.ID,
		ScriptPath: t.ScriptPath,
		Workdir:    t.Workdir,
		LogFile:    t.LogFile,
		CPUs:       alloc.CPUs,
		GPUs:       alloc.GPUs,
	})
	if err != nil {
		s.ledger.Release(alloc.CPUs, alloc.GPUs)
		if s.store.SetFailed(t.ID) {
			s.notify(StateChange{TaskID: t.ID, Old: task.Pending, New: task.Failed})
		}
		s.store.Save()
		return
	}

	if s.store.SetRunning(t.ID, pid, alloc.CPUs, alloc.GPUs) {
		s.notify(StateChange{TaskID: t.ID, Old: task.Pending, New: task.Running})
	}
	s.store.Save()
}

func (s *Scheduler) superviseLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.superviseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.superviseTick()
		}
	}
}

func (s *Scheduler) superviseTick() {
	for _, t := range s.store.Running() {
		result := s.exec.Probe(t.PID)
		if result.Running {
			continue
		}

		s.ledger.Release(t.AllocatedCPUs, t.AllocatedGPUs)
		if s.store.SetCompleted(t.ID, result.ExitCode) {
			s.notify(StateChange{TaskID: t.ID, Old: task.Running, New: task.Completed})
			s.archiveIfConfigured(t.ID, t.Workdir, t.LogFile)
		}
		s.store.Save()
	}
}

func (s *Scheduler) archiveIfConfigured(id uint64, workdir, logFile string) {
	if s.archiver == nil || logFile == "" {
		return
	}
	s.archiver.Archive(id, workdir+"/"+logFile)
}

// Terminate sends SIGTERM (or SIGKILL when force), waits up to 2s, escalates
// to SIGKILL and waits up to 1s more, releases resources, and removes the
// task from the store (which transitions it to Cancelled for observers).
// It returns false if the task was not Running.
func (s *Scheduler) Terminate(id uint64, force bool) bool {
	t, ok := s.store.Get(id)
	if !ok || t.Status != task.Running {
		return false
	}

	s.exec.Signal(t.PID, force)
	if !s.exec.Await(t.PID, 2*time.Second) {
		s.exec.Signal(t.PID, true)
		s.exec.Await(t.PID, 1*time.Second)
	}

	s.ledger.Release(t.AllocatedCPUs, t.AllocatedGPUs)
	if s.store.Delete(id) {
		s.notify(StateChange{TaskID: id, Old: task.Running, New: task.Cancelled})
	}
	s.store.Save()
	return true
}
