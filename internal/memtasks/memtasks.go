// Package memtasks is an in-memory collab.AddTaskFunc/GetTasksFunc
// implementation used by the cmd/reflexcore tick driver when no external
// task store is wired in — mirroring store.MemoryStore's role as the
// standalone fallback in the teacher's main.go.
package memtasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conscious-bot/reflexcore/internal/collab"
)

// Store holds tasks in memory, keyed by ID.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*collab.Task
}

// New constructs an empty in-memory task store.
func New() *Store {
	return &Store{tasks: make(map[string]*collab.Task)}
}

// AddTask implements collab.AddTaskFunc.
func (s *Store) AddTask(ctx context.Context, data collab.TaskData, metadata collab.TaskMetadata) (*collab.Task, error) {
	now := time.Now()
	task := &collab.Task{
		ID:        uuid.New().String(),
		Status:    collab.TaskPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
		Steps:     data.Steps,
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	return task, nil
}

// GetTasks implements collab.GetTasksFunc.
func (s *Store) GetTasks(ctx context.Context, filter collab.TaskFilter) ([]collab.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[collab.TaskStatus]bool, len(filter.Status))
	for _, st := range filter.Status {
		allowed[st] = true
	}

	out := make([]collab.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if len(allowed) == 0 || allowed[t.Status] {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Complete marks a task completed, as the (out-of-scope) execution pipeline
// would after dispatching its steps.
func (s *Store) Complete(taskID string) (*collab.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	task.Status = collab.TaskCompleted
	task.UpdatedAt = time.Now()
	return task, true
}
