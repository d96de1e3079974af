// Package registry implements the priority-ordered tick evaluator: each
// tick it pulls one world-state snapshot, walks the registered reflexes in
// priority order, and enforces the at-most-one-enqueue-per-tick invariant.
package registry

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/enqueue"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/reflex"
	"github.com/conscious-bot/reflexcore/internal/telemetry"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

// TickOutcome reports what a single evaluateTick call did, for callers that
// want to observe or test scheduling behavior without reaching into the
// registry's internals.
type TickOutcome struct {
	Fired      bool
	ReflexName string
	Enqueue    *enqueue.Result
}

// Registry holds the world-state cache and the ordered set of reflexes it
// drives each tick.
type Registry struct {
	cache   *worldstate.Cache
	staleMs time.Duration

	mu       sync.Mutex
	reflexes []reflex.Controller
	limiters map[string]*rate.Limiter
}

// New constructs an empty registry bound to cache. staleMs feeds the
// goal-key guard's staleness bypass.
func New(cache *worldstate.Cache, staleMs time.Duration) *Registry {
	return &Registry{
		cache:    cache,
		staleMs:  staleMs,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Register adds a reflex to the registry, keeping the reflex slice sorted by
// priority ascending (lower number = higher priority); ties keep insertion
// order. A single builder gets at most one request per second to addTask,
// guarding against a misbehaving reflex flooding it independently of the
// goal-key guard.
func (r *Registry) Register(c reflex.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reflexes = append(r.reflexes, c)
	sort.SliceStable(r.reflexes, func(i, j int) bool {
		return r.reflexes[i].Priority() < r.reflexes[j].Priority()
	})
	if _, ok := r.limiters[c.BuilderName()]; !ok {
		r.limiters[c.BuilderName()] = rate.NewLimiter(rate.Limit(1), 1)
	}
}

// GetRegistered returns the registered reflexes in evaluation order.
func (r *Registry) GetRegistered() []reflex.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reflex.Controller, len(r.reflexes))
	copy(out, r.reflexes)
	return out
}

// EvaluateTick runs one scheduling pass. Per §4.6: the cache is read once;
// reflexes are visited in priority order; any evaluate panic or a per-builder
// rate-limiter denial is isolated so it never aborts the tick; at most one
// enqueue attempt is made per tick.
func (r *Registry) EvaluateTick(ctx context.Context, idleReason reflex.IdleReason, addTask collab.AddTaskFunc, getTasks collab.GetTasksFunc, dryRun bool) TickOutcome {
	start := time.Now()
	defer func() {
		telemetry.TickDuration.Observe(time.Since(start).Seconds())
	}()

	sample := r.cache.Get(ctx)
	if sample == nil {
		return TickOutcome{Fired: false}
	}

	for _, c := range r.GetRegistered() {
		if idleReason != reflex.IdleNoTasks && !c.CanPreempt() {
			continue
		}

		result := r.safeEvaluate(c, sample, idleReason, dryRun)
		if result == nil {
			continue
		}

		telemetry.ReflexFires.WithLabelValues(c.Name()).Inc()

		if dryRun {
			return TickOutcome{Fired: true, ReflexName: c.Name()}
		}

		r.mu.Lock()
		limiter := r.limiters[c.BuilderName()]
		r.mu.Unlock()
		if limiter != nil && !limiter.Allow() {
			rateLimited := enqueue.RecordOutcome(enqueue.Result{Kind: enqueue.Skipped, Reason: enqueue.RateLimited})
			c.OnSkipped(result.ReflexInstanceID, result.GoalID, string(rateLimited.Reason), "")
			return TickOutcome{Fired: true, ReflexName: c.Name(), Enqueue: &rateLimited}
		}

		outcome := enqueue.TryEnqueueReflexTask(ctx, addTask, getTasks, enqueue.Intent{
			GoalKey:          result.GoalKey,
			ReflexInstanceID: result.ReflexInstanceID,
			BuilderName:      result.BuilderName,
			Source:           result.TaskData.Source,
			TaskData:         result.TaskData,
		}, r.staleMs, func(taskID string, age time.Duration) {
			log.Printf("reflex %s: stale task %s (age %s) escaped goal-key guard", c.Name(), taskID, age)
		})

		switch outcome.Kind {
		case enqueue.Enqueued:
			c.OnEnqueued(result.ReflexInstanceID, outcome.TaskID, result.GoalID)
		case enqueue.Skipped:
			c.OnSkipped(result.ReflexInstanceID, result.GoalID, string(outcome.Reason), outcome.ExistingTaskID)
		}

		return TickOutcome{Fired: true, ReflexName: c.Name(), Enqueue: &outcome}
	}

	return TickOutcome{Fired: false}
}

// safeEvaluate isolates a controller's Evaluate call: a panic is caught,
// logged, and counted so one misbehaving reflex cannot abort the tick loop.
func (r *Registry) safeEvaluate(c reflex.Controller, sample *worldstate.Sample, idleReason reflex.IdleReason, dryRun bool) (result *reflex.Result) {
	defer func() {
		if p := recover(); p != nil {
			telemetry.ReflexErrors.WithLabelValues(c.Name()).Inc()
			log.Printf("reflex %s: evaluate panicked: %v", c.Name(), p)
			result = nil
		}
	}()
	return c.Evaluate(sample, idleReason, dryRun)
}

// OnTaskTerminal dispatches by builder name, per §4.6's P4 invariant, and
// returns the built proof bundle when the matching reflex produced one.
func (r *Registry) OnTaskTerminal(task collab.Task, afterState *worldstate.Sample, execution proof.ExecutionReport) (proof.Bundle, proof.Reason, bool) {
	builder := task.Metadata.TaskProvenance.Builder
	for _, c := range r.GetRegistered() {
		if c.BuilderName() != builder {
			continue
		}
		return c.OnTaskTerminal(task.ID, task.Metadata.ReflexInstanceID, execution, afterState)
	}
	return proof.Bundle{}, "", false
}
