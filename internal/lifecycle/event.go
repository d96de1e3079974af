// Package lifecycle defines the reflex lifecycle event taxonomy and a
// bounded, correlation-keyed event log, modelled on the timeline store the
// scheduler uses to record reconcile events.
package lifecycle

import "time"

// EventType is the closed set of lifecycle event variants.
type EventType string

const (
	GoalFormulated     EventType = "goal_formulated"
	TaskPlanned        EventType = "task_planned"
	TaskEnqueued       EventType = "task_enqueued"
	TaskEnqueueSkipped EventType = "task_enqueue_skipped"
	StepCompleted      EventType = "step_completed"
	GoalVerified       EventType = "goal_verified"
	GoalClosed         EventType = "goal_closed"
)

// GoalFormulatedPayload carries the data for a goal_formulated event.
type GoalFormulatedPayload struct {
	GoalKey     string
	GoalID      string
	BuilderName string
}

// TaskPlannedPayload carries the data for a task_planned event.
type TaskPlannedPayload struct {
	GoalID      string
	TaskID      string
	BuilderName string
}

// TaskEnqueuedPayload carries the data for a task_enqueued event.
type TaskEnqueuedPayload struct {
	GoalID string
	TaskID string
}

// TaskEnqueueSkippedPayload carries the data for a task_enqueue_skipped event.
type TaskEnqueueSkippedPayload struct {
	GoalID         string
	Reason         string
	ExistingTaskID string
}

// StepCompletedPayload carries the data for a step_completed event.
type StepCompletedPayload struct {
	TaskID string
	StepID string
}

// GoalVerifiedPayload carries the data for a goal_verified event.
type GoalVerifiedPayload struct {
	GoalID string
	Reason string
}

// GoalClosedPayload carries the data for a goal_closed event.
type GoalClosedPayload struct {
	GoalID  string
	Success bool
	Reason  string
}

// Event is a single tagged lifecycle event. Payload holds the concrete
// *XxxPayload matching Type; callers type-switch on it.
type Event struct {
	Type             EventType
	ReflexInstanceID string
	Timestamp        time.Time
	Payload          interface{}
}

func newEvent(t EventType, reflexInstanceID string, payload interface{}) Event {
	return Event{
		Type:             t,
		ReflexInstanceID: reflexInstanceID,
		Timestamp:        time.Now(),
		Payload:          payload,
	}
}

func NewGoalFormulated(reflexInstanceID string, p GoalFormulatedPayload) Event {
	return newEvent(GoalFormulated, reflexInstanceID, p)
}

func NewTaskPlanned(reflexInstanceID string, p TaskPlannedPayload) Event {
	return newEvent(TaskPlanned, reflexInstanceID, p)
}

func NewTaskEnqueued(reflexInstanceID string, p TaskEnqueuedPayload) Event {
	return newEvent(TaskEnqueued, reflexInstanceID, p)
}

func NewTaskEnqueueSkipped(reflexInstanceID string, p TaskEnqueueSkippedPayload) Event {
	return newEvent(TaskEnqueueSkipped, reflexInstanceID, p)
}

func NewStepCompleted(reflexInstanceID string, p StepCompletedPayload) Event {
	return newEvent(StepCompleted, reflexInstanceID, p)
}

func NewGoalVerified(reflexInstanceID string, p GoalVerifiedPayload) Event {
	return newEvent(GoalVerified, reflexInstanceID, p)
}

func NewGoalClosed(reflexInstanceID string, p GoalClosedPayload) Event {
	return newEvent(GoalClosed, reflexInstanceID, p)
}
