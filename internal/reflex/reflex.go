// Package reflex defines the common controller contract shared by the
// hunger, exploration, and sleep reflexes, and the per-drive hysteresis
// state machines that implement it.
package reflex

import (
	"time"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

// IdleReason mirrors the scheduler's notion of what the agent is currently
// doing. Exploration and sleep fire only against "no_tasks"; hunger fires at
// critical food regardless of the idle reason.
type IdleReason string

const (
	IdleNoTasks   IdleReason = "no_tasks"
	IdleExecuting IdleReason = "executing"
)

// Result is what a controller's Evaluate returns when it fires. A nil
// *Result means the controller declined to fire this tick.
type Result struct {
	GoalKey          string
	GoalID           string
	ReflexInstanceID string
	BuilderName      string
	TaskData         collab.TaskData
	ProofAccumulator *proof.Accumulator // nil for reflexes that are not content-addressed
}

// Controller is the contract every reflex implements. A controller never
// emits task_enqueued / task_enqueue_skipped on its own — the registry
// drives those bridges after it learns the enqueue outcome.
type Controller interface {
	Name() string
	BuilderName() string
	Priority() int
	CanPreempt() bool
	Evaluate(sample *worldstate.Sample, idleReason IdleReason, dryRun bool) *Result
	OnEnqueued(reflexInstanceID, taskID, goalID string)
	OnSkipped(reflexInstanceID, goalID, reason, existingTaskID string)
	OnTaskTerminal(taskID string, reflexInstanceID string, execution proof.ExecutionReport, afterState *worldstate.Sample) (proof.Bundle, proof.Reason, bool)
}

func uuidPrefix(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}

func pendingTaskID(reflexInstanceID string) string {
	return "pending-" + uuidPrefix(reflexInstanceID)
}

// evictOlderThan removes accumulator entries whose TriggeredAt is more than
// maxAge before now. Callers hold the controller's lock.
func evictOlderThan(accumulators map[string]*proof.Accumulator, maxAge time.Duration, now time.Time) {
	for id, acc := range accumulators {
		if now.Sub(acc.TriggeredAt) > maxAge {
			delete(accumulators, id)
		}
	}
}
