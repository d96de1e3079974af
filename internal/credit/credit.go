// Package credit implements execution-only prior adjustment: rule priors
// move only in response to a recorded execution outcome, never from plan
// discovery alone. Modelled on the idempotency store's backend-or-memory
// fallback shape so a durable store can be swapped in without touching
// callers.
package credit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/conscious-bot/reflexcore/internal/telemetry"
)

const (
	defaultPrior = 1.0
	minPrior     = 0.01
	maxPrior     = 10.0

	successAdjustment = 0.1
	failureAdjustment = -0.2
)

// Backend is the durable storage contract a Store may delegate to; a nil
// Backend falls back to an in-memory map.
type Backend interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// OutcomeReport is one rule's result from a single execution batch.
type OutcomeReport struct {
	RuleID        string
	Success       bool
	FailureReason string
}

// AuditEntry records a single prior adjustment for later inspection.
type AuditEntry struct {
	RequestHash string
	RuleID      string
	Adjustment  float64
	PriorBefore float64
	PriorAfter  float64
	Timestamp   time.Time
}

// Store holds per-rule priors and an append-only audit log. Priors are
// modified only through ReportExecutionOutcome.
type Store struct {
	backend Backend
	ttl     time.Duration

	mu       sync.Mutex
	priors   map[string]float64
	auditLog []AuditEntry
}

// NewStore constructs a Store. A nil backend keeps everything in memory for
// the life of the process.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		ttl:     0, // priors are not TTL'd, and the optional durable mirror is written without expiry
		priors:  make(map[string]float64),
	}
}

func priorKey(ruleID string) string {
	return "reflexcore:prior:" + ruleID
}

// GetPrior returns the current prior for ruleID, defaulting to 1.0 for a
// rule that has never had an outcome reported.
func (s *Store) GetPrior(ctx context.Context, ruleID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPriorLocked(ctx, ruleID)
}

func (s *Store) getPriorLocked(ctx context.Context, ruleID string) float64 {
	if v, ok := s.priors[ruleID]; ok {
		return v
	}
	if s.backend != nil {
		if raw, err := s.backend.Get(ctx, priorKey(ruleID)); err == nil && raw != "" {
			var v float64
			if jsonErr := json.Unmarshal([]byte(raw), &v); jsonErr == nil {
				s.priors[ruleID] = v
				return v
			}
		}
	}
	return defaultPrior
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReportExecutionOutcome is the only path that moves a prior: for each
// report it applies a clamped adjustment and appends an audit entry.
func (s *Store) ReportExecutionOutcome(ctx context.Context, requestHash string, reports []OutcomeReport) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]AuditEntry, 0, len(reports))
	for _, report := range reports {
		before := s.getPriorLocked(ctx, report.RuleID)

		adjustment := failureAdjustment
		if report.Success {
			adjustment = successAdjustment
		}
		after := clamp(before+adjustment, minPrior, maxPrior)

		s.priors[report.RuleID] = after
		s.persistLocked(ctx, report.RuleID, after)

		entry := AuditEntry{
			RequestHash: requestHash,
			RuleID:      report.RuleID,
			Adjustment:  adjustment,
			PriorBefore: before,
			PriorAfter:  after,
			Timestamp:   time.Now(),
		}
		s.auditLog = append(s.auditLog, entry)
		entries = append(entries, entry)

		telemetry.PriorValue.WithLabelValues(report.RuleID).Set(after)
	}
	return entries
}

func (s *Store) persistLocked(ctx context.Context, ruleID string, value float64) {
	if s.backend == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.backend.Set(ctx, priorKey(ruleID), string(raw), s.ttl); err != nil {
		log.Printf("credit: failed to persist prior for rule %s: %v", ruleID, err)
	}
}

// AuditLog returns a snapshot copy of every adjustment recorded so far.
func (s *Store) AuditLog() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.auditLog))
	copy(out, s.auditLog)
	return out
}
