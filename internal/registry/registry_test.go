package registry

import (
	"context"
	"testing"
	"time"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/enqueue"
	"github.com/conscious-bot/reflexcore/internal/lifecycle"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/reflex"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func newTestCache(s *worldstate.Sample) *worldstate.Cache {
	return worldstate.NewCache(func(ctx context.Context) (*worldstate.Sample, error) {
		return s, nil
	}, time.Minute)
}

func noTasks(ctx context.Context, filter collab.TaskFilter) ([]collab.Task, error) {
	return nil, nil
}

func TestEvaluateTickUnavailableCacheNeverCallsReflex(t *testing.T) {
	cache := worldstate.NewCache(func(ctx context.Context) (*worldstate.Sample, error) {
		return nil, context.DeadlineExceeded
	}, time.Minute)

	reg := New(cache, 5*time.Minute)
	reg.Register(reflex.NewHungerController(reflex.DefaultHungerConfig(), lifecycle.NewEmitter(0)))

	addTask := func(ctx context.Context, data collab.TaskData, meta collab.TaskMetadata) (*collab.Task, error) {
		t.Fatalf("addTask must not be called when the cache is unavailable")
		return nil, nil
	}

	outcome := reg.EvaluateTick(context.Background(), reflex.IdleNoTasks, addTask, noTasks, false)
	if outcome.Fired {
		t.Fatalf("expected no fire on unavailable cache, got %+v", outcome)
	}
}

func TestEvaluateTickPriorityOrderAndSingleEnqueue(t *testing.T) {
	sample := &worldstate.Sample{
		Food:           intPtr(3),
		Inventory:      []collab.InventoryItem{{Name: "bread", Count: 2}},
		Position:       &worldstate.Position{X: 0, Y: 64, Z: 0},
		Health:         floatPtr(20),
		NearbyHostiles: intPtr(0),
	}
	cache := newTestCache(sample)
	reg := New(cache, 5*time.Minute)

	explorer := reflex.NewExplorationController(reflex.DefaultExplorationConfig(), lifecycle.NewEmitter(0))
	for i := 0; i < reflex.DefaultExplorationConfig().IdleTriggerTicks; i++ {
		explorer.Tick(true)
	}
	reg.Register(explorer)
	reg.Register(reflex.NewHungerController(reflex.DefaultHungerConfig(), lifecycle.NewEmitter(0)))

	var addTaskCalls int
	addTask := func(ctx context.Context, data collab.TaskData, meta collab.TaskMetadata) (*collab.Task, error) {
		addTaskCalls++
		if meta.TaskProvenance.Builder != reflex.HungerBuilderName {
			t.Fatalf("expected hunger (higher priority) to win the tick, got builder %s", meta.TaskProvenance.Builder)
		}
		return &collab.Task{ID: "task-1"}, nil
	}

	outcome := reg.EvaluateTick(context.Background(), reflex.IdleNoTasks, addTask, noTasks, false)
	if !outcome.Fired || outcome.ReflexName != "hunger" {
		t.Fatalf("expected hunger to fire first by priority, got %+v", outcome)
	}
	if addTaskCalls != 1 {
		t.Fatalf("expected exactly one addTask call per tick, got %d", addTaskCalls)
	}
}

func TestEvaluateTickNonPreemptibleReflexSkippedWhenBusy(t *testing.T) {
	sample := &worldstate.Sample{
		Position:       &worldstate.Position{X: 0, Y: 64, Z: 0},
		Health:         floatPtr(20),
		Food:           intPtr(20),
		NearbyHostiles: intPtr(0),
	}
	cache := newTestCache(sample)
	reg := New(cache, 5*time.Minute)

	explorer := reflex.NewExplorationController(reflex.DefaultExplorationConfig(), lifecycle.NewEmitter(0))
	for i := 0; i < reflex.DefaultExplorationConfig().IdleTriggerTicks; i++ {
		explorer.Tick(true)
	}
	reg.Register(explorer)

	addTask := func(ctx context.Context, data collab.TaskData, meta collab.TaskMetadata) (*collab.Task, error) {
		t.Fatalf("non-preemptible reflex must not fire while busy")
		return nil, nil
	}

	outcome := reg.EvaluateTick(context.Background(), reflex.IdleExecuting, addTask, noTasks, false)
	if outcome.Fired {
		t.Fatalf("expected no fire while busy with a non-preemptible reflex, got %+v", outcome)
	}
}

func TestEvaluateTickDryRunDoesNotEnqueue(t *testing.T) {
	sample := &worldstate.Sample{
		Food:      intPtr(3),
		Inventory: []collab.InventoryItem{{Name: "bread", Count: 2}},
	}
	cache := newTestCache(sample)
	reg := New(cache, 5*time.Minute)
	reg.Register(reflex.NewHungerController(reflex.DefaultHungerConfig(), lifecycle.NewEmitter(0)))

	addTask := func(ctx context.Context, data collab.TaskData, meta collab.TaskMetadata) (*collab.Task, error) {
		t.Fatalf("dry run must never call addTask")
		return nil, nil
	}

	outcome := reg.EvaluateTick(context.Background(), reflex.IdleNoTasks, addTask, noTasks, true)
	if !outcome.Fired || outcome.Enqueue != nil {
		t.Fatalf("expected dry run to report fired without an enqueue result, got %+v", outcome)
	}
}

func TestEvaluateTickRateLimitedFiresSkipBridgeNotEnqueue(t *testing.T) {
	sample := &worldstate.Sample{
		Food:      intPtr(3),
		Inventory: []collab.InventoryItem{{Name: "bread", Count: 2}},
	}
	cache := newTestCache(sample)
	reg := New(cache, 5*time.Minute)

	emitter := lifecycle.NewEmitter(0)
	reg.Register(reflex.NewHungerController(reflex.DefaultHungerConfig(), emitter))

	// Exhaust the hunger builder's one-per-second token before the tick, so
	// EvaluateTick's Allow() check denies this attempt.
	reg.limiters[reflex.HungerBuilderName].Allow()

	addTask := func(ctx context.Context, data collab.TaskData, meta collab.TaskMetadata) (*collab.Task, error) {
		t.Fatalf("rate-limited reflex must not reach addTask")
		return nil, nil
	}

	outcome := reg.EvaluateTick(context.Background(), reflex.IdleNoTasks, addTask, noTasks, false)
	if !outcome.Fired || outcome.ReflexName != "hunger" {
		t.Fatalf("expected hunger to still be reported as fired, got %+v", outcome)
	}
	if outcome.Enqueue == nil || outcome.Enqueue.Kind != enqueue.Skipped || outcome.Enqueue.Reason != enqueue.RateLimited {
		t.Fatalf("expected a RATE_LIMITED skip outcome, got %+v", outcome.Enqueue)
	}

	skips := emitter.ByType(lifecycle.TaskEnqueueSkipped)
	if len(skips) != 1 {
		t.Fatalf("expected exactly one task_enqueue_skipped event bridging the rate-limit denial, got %d", len(skips))
	}
}

func TestOnTaskTerminalDispatchesByBuilderName(t *testing.T) {
	cache := newTestCache(nil)
	reg := New(cache, 5*time.Minute)

	hunger := reflex.NewHungerController(reflex.DefaultHungerConfig(), lifecycle.NewEmitter(0))
	reg.Register(hunger)

	res := hunger.Evaluate(&worldstate.Sample{
		Food:      intPtr(5),
		Inventory: []collab.InventoryItem{{Name: "bread", Count: 2}},
	}, reflex.IdleNoTasks, false)
	if res == nil {
		t.Fatalf("expected hunger to fire to seed an accumulator")
	}

	task := collab.Task{
		ID: "task-1",
		Metadata: collab.TaskMetadata{
			ReflexInstanceID: res.ReflexInstanceID,
			TaskProvenance:   collab.TaskProvenance{Builder: reflex.HungerBuilderName},
		},
	}

	_, _, ok := reg.OnTaskTerminal(task, nil, proof.ExecutionReport{Result: proof.ExecOK})
	if !ok {
		t.Fatalf("expected matching builder to produce a bundle")
	}
}

func TestOnTaskTerminalUnknownBuilderIsNoop(t *testing.T) {
	cache := newTestCache(nil)
	reg := New(cache, 5*time.Minute)
	reg.Register(reflex.NewHungerController(reflex.DefaultHungerConfig(), lifecycle.NewEmitter(0)))

	task := collab.Task{ID: "task-1", Metadata: collab.TaskMetadata{TaskProvenance: collab.TaskProvenance{Builder: "unknown"}}}
	_, _, ok := reg.OnTaskTerminal(task, nil, proof.ExecutionReport{Result: proof.ExecOK})
	if ok {
		t.Fatalf("expected no bundle for an unregistered builder")
	}
}
