package task

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// document is the on-disk shape of tasks.json: {"next_id": N, "tasks": [...]}.
type document struct {
	NextID uint64  `json:"next_id"`
	Tasks  []*Task `json:"tasks"`
}

// Store is the thread-safe, persistent, ordered collection of tasks. All
// public methods are total functions: invalid requests return a zero value
// or false, never an error, per the core's error-handling policy. Only
// Save/Load touch the filesystem and can fail.
type Store struct {
	mu     sync.Mutex
	path   string
	nextID uint64
	tasks  map[uint64]*Task
}

// NewStore creates an empty store that persists to path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		nextID: 1,
		tasks:  make(map[uint64]*Task),
	}
}

// Submit assigns a unique, monotonically increasing id, inserts the task in
// Pending status, and returns the id. Never rejects.
func (s *Store) Submit(req Request) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	s.tasks[id] = &Task{
		ID:           id,
		ScriptPath:   req.ScriptPath,
		Workdir:      req.Workdir,
		NCPU:         req.NCPU,
		NGPU:         req.NGPU,
		SpecificCPUs: req.SpecificCPUs,
		SpecificGPUs: req.SpecificGPUs,
		LogFile:      req.LogFile,
		Status:       Pending,
		SubmitTime:   time.Now().UTC(),
	}
	return id
}

// Get returns a copy of the task with the given id, if present.
func (s *Store) Get(id uint64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Pending returns all Pending tasks ordered by submit_time ascending, ties
// broken by id, matching the scheduler's strict-FIFO dispatch order.
func (s *Store) Pending() []Task {
	return s.byStatus(Pending)
}

// Running returns all Running tasks.
func (s *Store) Running() []Task {
	return s.byStatus(Running)
}

// All returns every task the store holds, in id order.
func (s *Store) All() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) byStatus(status Status) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0)
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmitTime.Equal(out[j].SubmitTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmitTime.Before(out[j].SubmitTime)
	})
	return out
}

// SetRunning transitions a Pending task to Running, recording its pid and
// allocated resources, and stamps start_time. Returns false if the task does
// not exist or is not Pending.
func (s *Store) SetRunning(id uint64, pid int, cpus, gpus []int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != Pending {
		return false
	}

	now := time.Now().UTC()
	t.Status = Running
	t.PID = pid
	t.AllocatedCPUs = cpus
	t.AllocatedGPUs = gpus
	t.StartTime = &now
	return true
}

// SetCompleted transitions a Running task to Completed, regardless of exit
// code (a non-zero exit_code is how a caller distinguishes job failure from
// launch failure; see the open question in DESIGN.md). Returns false if the
// task does not exist or is not Running.
func (s *Store) SetCompleted(id uint64, exitCode int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != Running {
		return false
	}

	now := time.Now().UTC()
	t.Status = Completed
	t.ExitCode = exitCode
	t.EndTime = &now
	return true
}

// SetFailed transitions a Pending or Running task to Failed: Pending on
// spawn failure, Running when a supervised process is observed to have
// vanished unexpectedly. Returns false otherwise.
func (s *Store) SetFailed(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || (t.Status != Pending && t.Status != Running) {
		return false
	}

	now := time.Now().UTC()
	t.Status = Failed
	t.EndTime = &now
	return true
}

// Delete removes a task from the store. If it is not already in a terminal
// state, it is first transitioned to Cancelled with end_time set, so that an
// observer reacting to the transition sees a valid, consistent record before
// the task disappears. Returns false if the task does not exist.
func (s *Store) Delete(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}

	if !t.IsTerminal() {
		now := time.Now().UTC()
		t.Status = Cancelled
		t.EndTime = &now
	}
	delete(s.tasks, id)
	return true
}

// Save rewrites the whole tasks.json document. Best-effort: an interrupted
// write may leave the file malformed, which Load tolerates by starting empty.
func (s *Store) Save() error {
	s.mu.Lock()
	doc := document{NextID: s.nextID, Tasks: make([]*Task, 0, len(s.tasks))}
	for _, t := range s.tasks {
		cp := *t
		doc.Tasks = append(doc.Tasks, &cp)
	}
	s.mu.Unlock()

	sort.Slice(doc.Tasks, func(i, j int) bool { return doc.Tasks[i].ID < doc.Tasks[j].ID })

	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load restores the store from its persisted document. A missing or
// malformed file yields an empty store rather than an error: a daemon that
// cannot recover its queue should still start up.
func (s *Store) Load() {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		s.reset()
		return
	}

	var doc document
	if err := json.Unmarshal(buf, &doc); err != nil {
		s.reset()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID = doc.NextID
	if s.nextID == 0 {
		s.nextID = 1
	}
	s.tasks = make(map[uint64]*Task, len(doc.Tasks))
	for _, t := range doc.Tasks {
		s.tasks[t.ID] = t
	}
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = 1
	s.tasks = make(map[uint64]*Task)
}
