package reflex

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/food"
	"github.com/conscious-bot/reflexcore/internal/lifecycle"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/signal"
	"github.com/conscious-bot/reflexcore/internal/telemetry"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

const (
	HungerGoalKey     = "survival:eat"
	HungerBuilderName = "hunger"

	hungerAccumulatorTTL = 30 * time.Minute
	hungerAccumulatorCap = 50
)

// HungerConfig tunes the hunger reflex's hysteresis thresholds, in raw food
// units (0-20).
type HungerConfig struct {
	TriggerThreshold  int
	ResetThreshold    int
	CriticalThreshold int
}

// DefaultHungerConfig returns the thresholds named by the reflex's spec.
func DefaultHungerConfig() HungerConfig {
	return HungerConfig{
		TriggerThreshold:  12,
		ResetThreshold:    16,
		CriticalThreshold: 5,
	}
}

// HungerController is the content-addressed eat-when-hungry reflex: a
// disarm/re-arm hysteresis loop over the food level, gated by idleness
// unless food has dropped to critical.
type HungerController struct {
	cfg     HungerConfig
	emitter *lifecycle.Emitter

	mu           sync.Mutex
	armed        bool
	accumulators map[string]*proof.Accumulator
}

// NewHungerController constructs an initially-armed hunger reflex.
func NewHungerController(cfg HungerConfig, emitter *lifecycle.Emitter) *HungerController {
	return &HungerController{
		cfg:          cfg,
		emitter:      emitter,
		armed:        true,
		accumulators: make(map[string]*proof.Accumulator),
	}
}

func (c *HungerController) Name() string        { return "hunger" }
func (c *HungerController) BuilderName() string { return HungerBuilderName }
func (c *HungerController) Priority() int       { return 0 }

// CanPreempt reports true: critical hunger must be able to fire even while
// the agent is mid-task, per the hunger gate's critical bypass.
func (c *HungerController) CanPreempt() bool { return true }

func (c *HungerController) OnEnqueued(reflexInstanceID, taskID, goalID string) {
	c.emitter.Emit(lifecycle.NewTaskEnqueued(reflexInstanceID, lifecycle.TaskEnqueuedPayload{
		GoalID: goalID,
		TaskID: taskID,
	}))
}

// reportAccumulatorSizeLocked publishes the current accumulator map
// occupancy. Callers hold c.mu.
func (c *HungerController) reportAccumulatorSizeLocked() {
	telemetry.AccumulatorMapSize.WithLabelValues(c.Name()).Set(float64(len(c.accumulators)))
}

func (c *HungerController) OnSkipped(reflexInstanceID, goalID, reason, existingTaskID string) {
	c.mu.Lock()
	delete(c.accumulators, reflexInstanceID)
	c.reportAccumulatorSizeLocked()
	c.mu.Unlock()

	c.emitter.Emit(lifecycle.NewTaskEnqueueSkipped(reflexInstanceID, lifecycle.TaskEnqueueSkippedPayload{
		GoalID:         goalID,
		Reason:         reason,
		ExistingTaskID: existingTaskID,
	}))
}

func (c *HungerController) pickFoodItem(inventory []collab.InventoryItem) string {
	for _, item := range inventory {
		if item.Count > 0 && food.IsFood(item.Name) {
			return item.Name
		}
	}
	return ""
}

// Evaluate implements the hunger decision rule. Per §4.3.1 it never fires on
// a sample missing food or inventory, hysteresis-gates on armed state, and
// only fires when hunger_urgency exceeds the eat_immediate template's
// threshold.
func (c *HungerController) Evaluate(sample *worldstate.Sample, idleReason IdleReason, dryRun bool) *Result {
	if sample == nil || sample.Food == nil || sample.Inventory == nil {
		return nil
	}

	foodLevel := *sample.Food

	c.mu.Lock()
	defer c.mu.Unlock()

	evictOlderThan(c.accumulators, hungerAccumulatorTTL, time.Now())
	if len(c.accumulators) > hungerAccumulatorCap {
		c.evictOldestLocked()
	}
	c.reportAccumulatorSizeLocked()

	if !c.armed {
		if foodLevel >= c.cfg.ResetThreshold {
			c.armed = true
		}
		return nil
	}

	critical := foodLevel <= c.cfg.CriticalThreshold
	triggerIdle := foodLevel <= c.cfg.TriggerThreshold && idleReason == IdleNoTasks
	if !critical && !triggerIdle {
		return nil
	}

	foodItem := c.pickFoodItem(sample.Inventory)
	if foodItem == "" {
		return nil
	}

	vec := signal.Translate(sample)
	if vec.Hunger == nil || *vec.Hunger <= 0.7 {
		return nil
	}

	reflexInstanceID := uuid.New().String()
	goalID := uuid.New().String()

	taskData := collab.TaskData{
		Type:   "survival",
		Source: "autonomous",
		Steps: []collab.Step{{
			ID:    "step-1",
			Label: "consume food",
			Order: 0,
			Meta: collab.StepMeta{
				Leaf:       "consume_food",
				Args:       map[string]interface{}{"food_type": "any", "amount": 1},
				Executable: true,
			},
		}},
	}

	accumulator := &proof.Accumulator{
		GoalID:          goalID,
		FoodItem:        foodItem,
		TemplateName:    "eat_immediate",
		TriggeredAt:     time.Now(),
		FoodBefore:      foodLevel,
		InventoryBefore: append([]collab.InventoryItem(nil), sample.Inventory...),
		HungerValue:     *vec.Hunger,
		Threshold:       c.cfg.TriggerThreshold,
	}

	result := &Result{
		GoalKey:          HungerGoalKey,
		GoalID:           goalID,
		ReflexInstanceID: reflexInstanceID,
		BuilderName:      HungerBuilderName,
		TaskData:         taskData,
		ProofAccumulator: accumulator,
	}

	if dryRun {
		c.emitter.Emit(lifecycle.NewGoalFormulated(reflexInstanceID, lifecycle.GoalFormulatedPayload{
			GoalKey:     HungerGoalKey,
			GoalID:      goalID,
			BuilderName: HungerBuilderName,
		}))
		return result
	}

	c.armed = false
	c.accumulators[reflexInstanceID] = accumulator
	c.reportAccumulatorSizeLocked()

	c.emitter.Emit(lifecycle.NewGoalFormulated(reflexInstanceID, lifecycle.GoalFormulatedPayload{
		GoalKey:     HungerGoalKey,
		GoalID:      goalID,
		BuilderName: HungerBuilderName,
	}))
	c.emitter.Emit(lifecycle.NewTaskPlanned(reflexInstanceID, lifecycle.TaskPlannedPayload{
		GoalID:      goalID,
		TaskID:      pendingTaskID(reflexInstanceID),
		BuilderName: HungerBuilderName,
	}))

	return result
}

// evictOldestLocked drops the single oldest accumulator by TriggeredAt.
// Callers hold c.mu.
func (c *HungerController) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, acc := range c.accumulators {
		if first || acc.TriggeredAt.Before(oldestAt) {
			oldestID = id
			oldestAt = acc.TriggeredAt
			first = false
		}
	}
	if oldestID != "" {
		delete(c.accumulators, oldestID)
	}
}

// OnTaskTerminal builds and hashes the proof bundle for reflexInstanceID,
// emits goal_verified then goal_closed, and evicts the accumulator.
func (c *HungerController) OnTaskTerminal(taskID string, reflexInstanceID string, execution proof.ExecutionReport, afterState *worldstate.Sample) (proof.Bundle, proof.Reason, bool) {
	c.mu.Lock()
	acc, ok := c.accumulators[reflexInstanceID]
	if ok {
		delete(c.accumulators, reflexInstanceID)
		c.reportAccumulatorSizeLocked()
	}
	c.mu.Unlock()

	if !ok {
		return proof.Bundle{}, "", false
	}

	execution.TaskID = taskID
	bundle, reason, err := proof.Build(proof.BuildInput{
		Accumulator: acc,
		Execution:   execution,
		AfterState:  afterState,
		TaskSteps: []proof.TaskStep{{
			Leaf: "consume_food",
			Args: map[string]interface{}{"food_type": "any", "amount": 1},
		}},
		NeedType:      "survival",
		Description:   "eat to restore food",
		ProofID:       uuid.New().String(),
		TriggerToGoal: 0,
		GoalToTask:    0,
		TaskToExec:    time.Since(acc.TriggeredAt),
	})
	if err != nil {
		return proof.Bundle{}, reason, false
	}

	c.emitter.Emit(lifecycle.NewGoalVerified(reflexInstanceID, lifecycle.GoalVerifiedPayload{
		GoalID: acc.GoalID,
		Reason: string(reason),
	}))
	c.emitter.Emit(lifecycle.NewGoalClosed(reflexInstanceID, lifecycle.GoalClosedPayload{
		GoalID:  acc.GoalID,
		Success: reason.Verified(),
		Reason:  string(reason),
	}))

	return bundle, reason, true
}
