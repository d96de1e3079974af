// Package guard implements goal-key deduplication against outstanding
// tasks, with a staleness bypass so a stuck task cannot permanently block a
// reflex from ever firing again.
package guard

import (
	"context"
	"time"

	"github.com/conscious-bot/reflexcore/internal/collab"
)

// DefaultStaleMs is the default staleness window, per §4.4.
const DefaultStaleMs = 300_000 * time.Millisecond

// Outcome discriminates the guard's verdict.
type Outcome int

const (
	Clear Outcome = iota
	Blocked
)

// Result is the tagged outcome of a scan.
type Result struct {
	Kind           Outcome
	ExistingTaskID string
	TaskAge        time.Duration
}

// OnStaleEscape is invoked when a matching task is found but has aged past
// staleMs, so the scan reports Clear instead of Blocked.
type OnStaleEscape func(taskID string, age time.Duration)

// ScanForOutstandingGoalKey reports whether goalKey is already claimed by a
// pending/active task, per §4.4.
func ScanForOutstandingGoalKey(ctx context.Context, getTasks collab.GetTasksFunc, goalKey string, staleMs time.Duration, onStaleEscape OnStaleEscape) (Result, error) {
	if staleMs <= 0 {
		staleMs = DefaultStaleMs
	}

	tasks, err := getTasks(ctx, collab.TaskFilter{Status: []collab.TaskStatus{collab.TaskPending, collab.TaskActive}})
	if err != nil {
		return Result{}, err
	}

	now := time.Now()
	for _, task := range tasks {
		if task.Metadata.GoalKey == "" || task.Metadata.GoalKey != goalKey {
			continue
		}

		ref := task.UpdatedAt
		if ref.IsZero() {
			ref = task.CreatedAt
		}
		age := now.Sub(ref)

		if age < staleMs {
			return Result{Kind: Blocked, ExistingTaskID: task.ID, TaskAge: age}, nil
		}

		if onStaleEscape != nil {
			onStaleEscape(task.ID, age)
		}
		return Result{Kind: Clear}, nil
	}

	return Result{Kind: Clear}, nil
}
