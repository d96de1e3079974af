package lifecycle

import "testing"

func TestEmitterBoundedOldestFirstEviction(t *testing.T) {
	e := NewEmitter(3)
	ids := []string{"r0", "r1", "r2", "r3", "r4"}
	for _, id := range ids {
		e.Emit(NewGoalFormulated(id, GoalFormulatedPayload{GoalKey: "survival:eat"}))
	}
	events := e.Events()
	if len(events) != 3 {
		t.Fatalf("expected bounded log of 3, got %d", len(events))
	}
	if events[0].ReflexInstanceID != "r2" || events[2].ReflexInstanceID != "r4" {
		t.Fatalf("expected oldest events evicted first, got %s..%s", events[0].ReflexInstanceID, events[2].ReflexInstanceID)
	}
}

func TestEmitterByTypeAndReflexInstance(t *testing.T) {
	e := NewEmitter(DefaultCap)
	e.Emit(NewGoalFormulated("r1", GoalFormulatedPayload{GoalKey: "survival:eat"}))
	e.Emit(NewTaskPlanned("r1", TaskPlannedPayload{TaskID: "pending-r1"}))
	e.Emit(NewGoalFormulated("r2", GoalFormulatedPayload{GoalKey: "explore:wander"}))

	formulated := e.ByType(GoalFormulated)
	if len(formulated) != 2 {
		t.Fatalf("expected 2 goal_formulated events, got %d", len(formulated))
	}

	r1events := e.ByReflexInstance("r1")
	if len(r1events) != 2 {
		t.Fatalf("expected 2 events for r1, got %d", len(r1events))
	}
}

func TestEmitterSnapshotIsCopy(t *testing.T) {
	e := NewEmitter(DefaultCap)
	e.Emit(NewGoalFormulated("r1", GoalFormulatedPayload{GoalKey: "survival:eat"}))
	snap := e.Events()
	snap[0].ReflexInstanceID = "mutated"

	fresh := e.Events()
	if fresh[0].ReflexInstanceID != "r1" {
		t.Fatalf("expected internal log unaffected by mutation of snapshot")
	}
}
