package reflex

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/lifecycle"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/telemetry"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

const (
	ExplorationGoalKey     = "explore:wander"
	ExplorationBuilderName = "exploration"

	explorationEvidenceTTL = 30 * time.Minute
	explorationEvidenceCap = 50
)

// ExplorationConfig tunes the wander reflex's idleness and safety gates.
type ExplorationConfig struct {
	IdleTriggerTicks int
	IdleResetTicks   int
	Cooldown         time.Duration
	MinHealth        float64
	MinFood          int
	MaxHostiles      int
	MinDisplacement  float64
	MaxDisplacement  float64
}

// DefaultExplorationConfig returns the thresholds named by the reflex's spec.
func DefaultExplorationConfig() ExplorationConfig {
	return ExplorationConfig{
		IdleTriggerTicks: 6,
		IdleResetTicks:   6,
		Cooldown:         2 * time.Minute,
		MinHealth:        10,
		MinFood:          10,
		MaxHostiles:      0,
		MinDisplacement:  8,
		MaxDisplacement:  24,
	}
}

// explorationEvidence is retained for post-execution recording. Exploration
// is not content-addressed — target positions are random — so this is keyed
// by reflex instance rather than hashed.
type explorationEvidence struct {
	goalID      string
	target      worldstate.Position
	triggeredAt time.Time
}

// ExplorationController wanders the bot to a random nearby point whenever
// it has been idle long enough and conditions are safe.
type ExplorationController struct {
	cfg     ExplorationConfig
	emitter *lifecycle.Emitter
	rng     *rand.Rand

	mu                      sync.Mutex
	armed                   bool
	lastFiredAt             time.Time
	consecutiveIdleTicks    int
	consecutiveNonIdleTicks int
	evidence                map[string]*explorationEvidence
}

// NewExplorationController constructs an initially-armed exploration reflex.
func NewExplorationController(cfg ExplorationConfig, emitter *lifecycle.Emitter) *ExplorationController {
	return &ExplorationController{
		cfg:      cfg,
		emitter:  emitter,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		armed:    true,
		evidence: make(map[string]*explorationEvidence),
	}
}

func (c *ExplorationController) Name() string        { return "exploration" }
func (c *ExplorationController) BuilderName() string { return ExplorationBuilderName }
func (c *ExplorationController) Priority() int       { return 10 }

// CanPreempt reports false: exploration only ever fires while genuinely
// idle.
func (c *ExplorationController) CanPreempt() bool { return false }

func (c *ExplorationController) OnEnqueued(reflexInstanceID, taskID, goalID string) {
	c.emitter.Emit(lifecycle.NewTaskEnqueued(reflexInstanceID, lifecycle.TaskEnqueuedPayload{
		GoalID: goalID,
		TaskID: taskID,
	}))
}

// reportEvidenceSizeLocked publishes the current evidence map occupancy.
// Callers hold c.mu.
func (c *ExplorationController) reportEvidenceSizeLocked() {
	telemetry.AccumulatorMapSize.WithLabelValues(c.Name()).Set(float64(len(c.evidence)))
}

func (c *ExplorationController) OnSkipped(reflexInstanceID, goalID, reason, existingTaskID string) {
	c.mu.Lock()
	delete(c.evidence, reflexInstanceID)
	c.reportEvidenceSizeLocked()
	c.mu.Unlock()

	c.emitter.Emit(lifecycle.NewTaskEnqueueSkipped(reflexInstanceID, lifecycle.TaskEnqueueSkippedPayload{
		GoalID:         goalID,
		Reason:         reason,
		ExistingTaskID: existingTaskID,
	}))
}

// Tick advances the idle/non-idle counters and the cooldown re-arm clock.
// The tick driver (cmd/reflexcore's tick loop) calls this once per tick
// regardless of whether exploration is the reflex selected to evaluate; the
// registry does not call it.
func (c *ExplorationController) Tick(isIdle bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isIdle {
		c.consecutiveIdleTicks++
		c.consecutiveNonIdleTicks = 0
	} else {
		c.consecutiveNonIdleTicks++
		if c.consecutiveNonIdleTicks >= c.cfg.IdleResetTicks {
			c.consecutiveIdleTicks = 0
		}
	}

	if !c.armed && time.Since(c.lastFiredAt) >= c.cfg.Cooldown {
		c.armed = true
	}
}

func (c *ExplorationController) Evaluate(sample *worldstate.Sample, idleReason IdleReason, dryRun bool) *Result {
	if sample == nil || sample.Position == nil || sample.Health == nil || sample.Food == nil {
		return nil
	}
	if idleReason != IdleNoTasks {
		return nil
	}

	c.mu.Lock()
	evictExplorationEvidence(c.evidence, explorationEvidenceTTL, time.Now())
	if len(c.evidence) > explorationEvidenceCap {
		evictOldestExplorationEvidence(c.evidence)
	}
	c.reportEvidenceSizeLocked()

	if !c.armed || c.consecutiveIdleTicks < c.cfg.IdleTriggerTicks {
		c.mu.Unlock()
		return nil
	}
	if *sample.Health < c.cfg.MinHealth || *sample.Food < c.cfg.MinFood {
		c.mu.Unlock()
		return nil
	}
	if sample.NearbyHostiles != nil && *sample.NearbyHostiles > c.cfg.MaxHostiles {
		c.mu.Unlock()
		return nil
	}

	target := c.randomTarget(*sample.Position)
	reflexInstanceID := uuid.New().String()
	goalID := uuid.New().String()

	taskData := collab.TaskData{
		Type:   "exploration",
		Source: "autonomous",
		Steps: []collab.Step{{
			ID:    "step-1",
			Label: "move to wander target",
			Order: 0,
			Meta: collab.StepMeta{
				Leaf: "move_to",
				Args: map[string]interface{}{
					"pos": map[string]float64{"x": target.X, "y": target.Y, "z": target.Z},
				},
				Executable: true,
			},
		}},
	}

	result := &Result{
		GoalKey:          ExplorationGoalKey,
		GoalID:           goalID,
		ReflexInstanceID: reflexInstanceID,
		BuilderName:      ExplorationBuilderName,
		TaskData:         taskData,
	}

	if dryRun {
		c.mu.Unlock()
		c.emitter.Emit(lifecycle.NewGoalFormulated(reflexInstanceID, lifecycle.GoalFormulatedPayload{
			GoalKey:     ExplorationGoalKey,
			GoalID:      goalID,
			BuilderName: ExplorationBuilderName,
		}))
		return result
	}

	c.armed = false
	c.lastFiredAt = time.Now()
	c.evidence[reflexInstanceID] = &explorationEvidence{
		goalID:      goalID,
		target:      target,
		triggeredAt: time.Now(),
	}
	c.reportEvidenceSizeLocked()
	c.mu.Unlock()

	c.emitter.Emit(lifecycle.NewGoalFormulated(reflexInstanceID, lifecycle.GoalFormulatedPayload{
		GoalKey:     ExplorationGoalKey,
		GoalID:      goalID,
		BuilderName: ExplorationBuilderName,
	}))
	c.emitter.Emit(lifecycle.NewTaskPlanned(reflexInstanceID, lifecycle.TaskPlannedPayload{
		GoalID:      goalID,
		TaskID:      pendingTaskID(reflexInstanceID),
		BuilderName: ExplorationBuilderName,
	}))

	return result
}

func (c *ExplorationController) randomTarget(from worldstate.Position) worldstate.Position {
	angle := c.rng.Float64() * 2 * math.Pi
	distance := c.cfg.MinDisplacement + c.rng.Float64()*(c.cfg.MaxDisplacement-c.cfg.MinDisplacement)
	return worldstate.Position{
		X: from.X + distance*math.Cos(angle),
		Y: from.Y,
		Z: from.Z + distance*math.Sin(angle),
	}
}

// OnTaskTerminal has nothing content-addressed to verify; exploration simply
// evicts its evidence and reports no bundle.
func (c *ExplorationController) OnTaskTerminal(taskID string, reflexInstanceID string, execution proof.ExecutionReport, afterState *worldstate.Sample) (proof.Bundle, proof.Reason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.evidence, reflexInstanceID)
	c.reportEvidenceSizeLocked()
	return proof.Bundle{}, "", false
}

func evictExplorationEvidence(m map[string]*explorationEvidence, maxAge time.Duration, now time.Time) {
	for id, ev := range m {
		if now.Sub(ev.triggeredAt) > maxAge {
			delete(m, id)
		}
	}
}

func evictOldestExplorationEvidence(m map[string]*explorationEvidence) {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, ev := range m {
		if first || ev.triggeredAt.Before(oldestAt) {
			oldestID = id
			oldestAt = ev.triggeredAt
			first = false
		}
	}
	if oldestID != "" {
		delete(m, oldestID)
	}
}
