package reflex

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/lifecycle"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

const (
	SleepGoalKey     = "survival:sleep"
	SleepBuilderName = "sleep"
)

// SleepConfig tunes the once-per-night sleep reflex's safety gate.
type SleepConfig struct {
	MaxHostiles  int
	SearchRadius int
}

// DefaultSleepConfig returns the thresholds named by the reflex's spec.
func DefaultSleepConfig() SleepConfig {
	return SleepConfig{
		MaxHostiles:  0,
		SearchRadius: 16,
	}
}

// SleepController fires once per night cycle: armed at dawn, fires the first
// qualifying night tick, then stays disarmed until a daytime tick is
// observed again.
type SleepController struct {
	cfg     SleepConfig
	emitter *lifecycle.Emitter

	mu             sync.Mutex
	armed          bool
	firedThisNight bool
	lastDawnSeen   bool
}

// NewSleepController constructs an initially-armed sleep reflex.
func NewSleepController(cfg SleepConfig, emitter *lifecycle.Emitter) *SleepController {
	return &SleepController{
		cfg:   cfg,
		armed: true,
		emitter: emitter,
	}
}

func (c *SleepController) Name() string        { return "sleep" }
func (c *SleepController) BuilderName() string { return SleepBuilderName }
func (c *SleepController) Priority() int       { return 20 }

// CanPreempt reports false: sleep only ever fires while genuinely idle.
func (c *SleepController) CanPreempt() bool { return false }

func (c *SleepController) OnEnqueued(reflexInstanceID, taskID, goalID string) {
	c.emitter.Emit(lifecycle.NewTaskEnqueued(reflexInstanceID, lifecycle.TaskEnqueuedPayload{
		GoalID: goalID,
		TaskID: taskID,
	}))
}

func (c *SleepController) OnSkipped(reflexInstanceID, goalID, reason, existingTaskID string) {
	c.emitter.Emit(lifecycle.NewTaskEnqueueSkipped(reflexInstanceID, lifecycle.TaskEnqueueSkippedPayload{
		GoalID:         goalID,
		Reason:         reason,
		ExistingTaskID: existingTaskID,
	}))
}

// Tick runs the day/night state machine described in §4.3.3, independent of
// whether Evaluate is called this tick.
func (c *SleepController) Tick(timeOfDay *int) {
	if timeOfDay == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !worldstate.IsNight(*timeOfDay) {
		if c.firedThisNight {
			c.firedThisNight = false
			c.armed = true
		}
		c.lastDawnSeen = true
		return
	}

	if c.lastDawnSeen {
		c.armed = true
		c.lastDawnSeen = false
	}
}

func (c *SleepController) Evaluate(sample *worldstate.Sample, idleReason IdleReason, dryRun bool) *Result {
	if sample == nil || sample.TimeOfDay == nil {
		return nil
	}
	if !worldstate.IsNight(*sample.TimeOfDay) {
		return nil
	}
	if idleReason != IdleNoTasks {
		return nil
	}
	if sample.NearbyHostiles != nil && *sample.NearbyHostiles > c.cfg.MaxHostiles {
		return nil
	}

	c.mu.Lock()
	if !c.armed || c.firedThisNight {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	reflexInstanceID := uuid.New().String()
	goalID := uuid.New().String()

	taskData := collab.TaskData{
		Type:   "survival",
		Source: "autonomous",
		Steps: []collab.Step{{
			ID:    "step-1",
			Label: "sleep",
			Order: 0,
			Meta: collab.StepMeta{
				Leaf:       "sleep",
				Args:       map[string]interface{}{"placeBed": false, "searchRadius": c.cfg.SearchRadius},
				Executable: true,
			},
		}},
	}

	result := &Result{
		GoalKey:          SleepGoalKey,
		GoalID:           goalID,
		ReflexInstanceID: reflexInstanceID,
		BuilderName:      SleepBuilderName,
		TaskData:         taskData,
	}

	if dryRun {
		c.emitter.Emit(lifecycle.NewGoalFormulated(reflexInstanceID, lifecycle.GoalFormulatedPayload{
			GoalKey:     SleepGoalKey,
			GoalID:      goalID,
			BuilderName: SleepBuilderName,
		}))
		return result
	}

	c.mu.Lock()
	c.armed = false
	c.firedThisNight = true
	c.mu.Unlock()

	c.emitter.Emit(lifecycle.NewGoalFormulated(reflexInstanceID, lifecycle.GoalFormulatedPayload{
		GoalKey:     SleepGoalKey,
		GoalID:      goalID,
		BuilderName: SleepBuilderName,
	}))
	c.emitter.Emit(lifecycle.NewTaskPlanned(reflexInstanceID, lifecycle.TaskPlannedPayload{
		GoalID:      goalID,
		TaskID:      pendingTaskID(reflexInstanceID),
		BuilderName: SleepBuilderName,
	}))

	return result
}

// OnTaskTerminal has nothing content-addressed to verify for sleep.
func (c *SleepController) OnTaskTerminal(taskID string, reflexInstanceID string, execution proof.ExecutionReport, afterState *worldstate.Sample) (proof.Bundle, proof.Reason, bool) {
	return proof.Bundle{}, "", false
}
