package task

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager is the in-memory store for job status records. It is the only
// mutable state shared between connections and background jobs. Readers get
// deep copies, so a snapshot never reflects half of a mutation.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*TaskStatus
}

func NewManager() *Manager {
	return &Manager{tasks: make(map[string]*TaskStatus)}
}

// Create registers a new job in the downloading state and returns its snapshot.
func (m *Manager) Create(title string) TaskStatus {
	newTask := &TaskStatus{
		TaskID:   uuid.NewString(),
		Title:    title,
		Status:   StatusDownloading,
		Progress: ProgressStarted,
		Log:      []string{},
	}

	m.mu.Lock()
	m.tasks[newTask.TaskID] = newTask
	out := newTask.snapshot()
	m.mu.Unlock()

	log.Info().Str("task_id", out.TaskID).Str("title", title).Msg("task created")
	return out
}

// Get returns a copy of the task.
func (m *Manager) Get(taskID string) (TaskStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found, ok := m.tasks[taskID]
	if !ok {
		return TaskStatus{}, false
	}
	return found.snapshot(), true
}

// List returns copies of every known task in map order.
func (m *Manager) List() []TaskStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshot())
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// AppendLog adds one diagnostic line to the task log.
func (m *Manager) AppendLog(taskID, line string) error {
	return m.update(taskID, func(t *TaskStatus) {
		t.Log = append(t.Log, line)
	})
}

// Fail moves the task to failed and records the reason as the last log line.
func (m *Manager) Fail(taskID, marker string) error {
	err := m.update(taskID, func(t *TaskStatus) {
		t.Status = StatusFailed
		t.Log = append(t.Log, marker)
	})
	if err == nil {
		log.Warn().Str("task_id", taskID).Str("reason", marker).Msg("task failed")
	}
	return err
}

// Complete moves the task to done with full progress.
func (m *Manager) Complete(taskID string) error {
	err := m.update(taskID, func(t *TaskStatus) {
		t.Status = StatusDone
		t.Progress = ProgressComplete
	})
	if err == nil {
		log.Info().Str("task_id", taskID).Msg("task done")
	}
	return err
}

func (m *Manager) update(taskID string, mutate func(*TaskStatus)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	mutate(t)
	return nil
}
