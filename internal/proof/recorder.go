package proof

import (
	"context"
	"errors"
	"sync"
)

var errNotABundle = errors.New("proof: RecordReflexProof requires a Bundle")

// Recorder is the default, in-memory proof-bundle sink: a bounded ring
// buffer keyed by run ID. It satisfies collab.ProofRecorder without
// introducing a dependency on any durable store.
type Recorder struct {
	mu    sync.Mutex
	cap   int
	order []string
	byRun map[string]Bundle
}

// DefaultRecorderCap bounds the in-memory recorder so a long-running
// process doesn't grow it unboundedly.
const DefaultRecorderCap = 500

// NewRecorder constructs an in-memory recorder with the given capacity. A
// cap <= 0 falls back to DefaultRecorderCap.
func NewRecorder(cap int) *Recorder {
	if cap <= 0 {
		cap = DefaultRecorderCap
	}
	return &Recorder{
		cap:   cap,
		byRun: make(map[string]Bundle),
	}
}

// RecordReflexProof stores bundle under runID, evicting the oldest entry if
// at capacity. bundle must be a Bundle; any other type is rejected.
func (r *Recorder) RecordReflexProof(ctx context.Context, runID string, bundle interface{}) error {
	b, ok := bundle.(Bundle)
	if !ok {
		return errNotABundle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRun[runID]; !exists {
		if len(r.order) >= r.cap {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.byRun, oldest)
		}
		r.order = append(r.order, runID)
	}
	r.byRun[runID] = b
	return nil
}

// Get returns the bundle recorded for runID, if any.
func (r *Recorder) Get(runID string) (Bundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byRun[runID]
	return b, ok
}
