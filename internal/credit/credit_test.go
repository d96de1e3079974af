package credit

import (
	"context"
	"testing"
)

func TestGetPriorDefaultsToOne(t *testing.T) {
	s := NewStore(nil)
	if got := s.GetPrior(context.Background(), "rule-1"); got != 1.0 {
		t.Fatalf("expected default prior 1.0, got %v", got)
	}
}

func TestReportExecutionOutcomeAdjustsAndClamps(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	entries := s.ReportExecutionOutcome(ctx, "req-1", []OutcomeReport{{RuleID: "rule-1", Success: true}})
	if len(entries) != 1 || entries[0].PriorBefore != 1.0 || entries[0].PriorAfter != 1.1 {
		t.Fatalf("expected prior 1.0 -> 1.1 on success, got %+v", entries)
	}

	for i := 0; i < 100; i++ {
		s.ReportExecutionOutcome(ctx, "req-n", []OutcomeReport{{RuleID: "rule-1", Success: true}})
	}
	if got := s.GetPrior(ctx, "rule-1"); got != 10.0 {
		t.Fatalf("expected prior clamped at 10.0, got %v", got)
	}
}

func TestReportExecutionOutcomeClampsAtFloor(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		s.ReportExecutionOutcome(ctx, "req-n", []OutcomeReport{{RuleID: "rule-1", Success: false}})
	}
	if got := s.GetPrior(ctx, "rule-1"); got != 0.01 {
		t.Fatalf("expected prior clamped at 0.01, got %v", got)
	}
}

func TestAuditLogAppendOnly(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	s.ReportExecutionOutcome(ctx, "req-1", []OutcomeReport{{RuleID: "rule-1", Success: true}})
	s.ReportExecutionOutcome(ctx, "req-2", []OutcomeReport{{RuleID: "rule-1", Success: false}})

	log := s.AuditLog()
	if len(log) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(log))
	}
	if log[0].RequestHash != "req-1" || log[1].RequestHash != "req-2" {
		t.Fatalf("expected audit entries in order, got %+v", log)
	}
}

func TestPriorsUnaffectedByDiscoveryAlone(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	first := s.GetPrior(ctx, "rule-1")
	second := s.GetPrior(ctx, "rule-1")
	if first != second {
		t.Fatalf("expected repeated reads with no reported outcome to be stable, got %v then %v", first, second)
	}
	if len(s.AuditLog()) != 0 {
		t.Fatalf("expected no audit entries from reads alone")
	}
}
