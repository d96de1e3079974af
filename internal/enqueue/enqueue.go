// Package enqueue implements structural mutual exclusion over the task
// enqueue path: the result is a single tagged value, so callers cannot
// accidentally emit more than one terminal lifecycle event per attempt.
package enqueue

import (
	"context"
	"time"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/guard"
	"github.com/conscious-bot/reflexcore/internal/telemetry"
)

// Kind discriminates the enqueue outcome.
type Kind int

const (
	Enqueued Kind = iota
	Skipped
)

// SkipReason is the closed set of reasons an enqueue attempt is skipped.
type SkipReason string

const (
	DedupedExistingTask SkipReason = "DEDUPED_EXISTING_TASK"
	EnqueueFailed       SkipReason = "ENQUEUE_FAILED"
	EnqueueReturnedNull SkipReason = "ENQUEUE_RETURNED_NULL"
	RateLimited         SkipReason = "RATE_LIMITED"
)

// Result is the single tagged outcome of an enqueue attempt.
type Result struct {
	Kind           Kind
	TaskID         string // set when Kind == Enqueued
	Reason         SkipReason
	ExistingTaskID string // set when Reason == DedupedExistingTask
	Err            error  // set when Reason == EnqueueFailed
}

// Intent is everything a reflex controller hands the enqueue helper about
// the task it wants created.
type Intent struct {
	GoalKey          string
	ReflexInstanceID string
	BuilderName      string
	Source           string
	TaskData         collab.TaskData
}

// TryEnqueueReflexTask performs the dedup scan and, if clear, calls addTask.
// Per §4.5 exactly one of {Enqueued, Skipped} is ever returned.
func TryEnqueueReflexTask(ctx context.Context, addTask collab.AddTaskFunc, getTasks collab.GetTasksFunc, intent Intent, staleMs time.Duration, onStaleEscape guard.OnStaleEscape) Result {
	scan, err := guard.ScanForOutstandingGoalKey(ctx, getTasks, intent.GoalKey, staleMs, onStaleEscape)
	if err != nil {
		return RecordOutcome(Result{Kind: Skipped, Reason: EnqueueFailed, Err: err})
	}
	if scan.Kind == guard.Blocked {
		return RecordOutcome(Result{Kind: Skipped, Reason: DedupedExistingTask, ExistingTaskID: scan.ExistingTaskID})
	}

	metadata := collab.TaskMetadata{
		GoalKey:          intent.GoalKey,
		ReflexInstanceID: intent.ReflexInstanceID,
		TaskProvenance: collab.TaskProvenance{
			Builder: intent.BuilderName,
			Source:  intent.Source,
		},
	}

	task, err := addTask(ctx, intent.TaskData, metadata)
	if err != nil {
		return RecordOutcome(Result{Kind: Skipped, Reason: EnqueueFailed, Err: err})
	}
	if task == nil || task.ID == "" {
		return RecordOutcome(Result{Kind: Skipped, Reason: EnqueueReturnedNull})
	}

	return RecordOutcome(Result{Kind: Enqueued, TaskID: task.ID})
}

// RecordOutcome increments the enqueue outcome counter before returning
// result to the caller, so every code path that produces a Result — inside
// TryEnqueueReflexTask or a caller's own pre-enqueue short-circuit, such as
// the registry's rate-limiter denial — is observed exactly once.
func RecordOutcome(result Result) Result {
	kind := "enqueued"
	if result.Kind == Skipped {
		kind = "skipped"
	}
	telemetry.EnqueueOutcomes.WithLabelValues(kind, string(result.Reason)).Inc()
	return result
}
