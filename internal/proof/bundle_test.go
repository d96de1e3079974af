package proof

import (
	"testing"
	"time"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

func baseAccumulator() *Accumulator {
	return &Accumulator{
		GoalID:            "goal-1",
		FoodItem:          "bread",
		TemplateName:      "eat_immediate",
		HomeostasisDigest: "digest-1",
		CandidatesDigest:  "cand-1",
		TriggeredAt:       time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		FoodBefore:        4,
		InventoryBefore:   []collab.InventoryItem{{Name: "bread", Count: 2}},
		HungerValue:       0.82,
		Threshold:         12,
	}
}

func baseInput(proofID string) BuildInput {
	foodAfter := 8
	return BuildInput{
		Accumulator: baseAccumulator(),
		Execution: ExecutionReport{
			Result:  ExecOK,
			Receipt: Receipt{ItemsConsumed: 1},
			TaskID:  "task-1",
		},
		AfterState: &worldstate.Sample{
			Food:      &foodAfter,
			Inventory: []collab.InventoryItem{{Name: "bread", Count: 1}},
		},
		TaskSteps:     []TaskStep{{Leaf: "eat", Args: map[string]interface{}{"item": "bread"}}},
		NeedType:      "survival",
		Description:   "eat bread",
		ProofID:       proofID,
		TriggerToGoal: 10 * time.Millisecond,
		GoalToTask:    20 * time.Millisecond,
		TaskToExec:    500 * time.Millisecond,
	}
}

func TestBuildHashStableAcrossIdenticalIdentity(t *testing.T) {
	b1, r1, err := Build(baseInput("proof-a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, r2, err := Build(baseInput("proof-b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b1.BundleHash != b2.BundleHash {
		t.Fatalf("expected equal hashes across differing evidence/proof IDs, got %s vs %s", b1.BundleHash, b2.BundleHash)
	}
	if r1 != ReceiptConfirmsConsumption || r2 != ReceiptConfirmsConsumption {
		t.Fatalf("expected receipt-confirmed verification, got %v / %v", r1, r2)
	}
}

func TestBuildHashUnaffectedByEvidenceOnlyDifferences(t *testing.T) {
	in1 := baseInput("proof-a")
	in1.TriggerToGoal = time.Second

	in2 := baseInput("proof-z")
	in2.TriggerToGoal = 5 * time.Second

	b1, _, err := Build(in1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, _, err := Build(in2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b1.BundleHash != b2.BundleHash {
		t.Fatalf("expected hash unaffected by timing/proof ID, got %s vs %s", b1.BundleHash, b2.BundleHash)
	}
}

func TestBuildHashDiffersOnItemsConsumed(t *testing.T) {
	in1 := baseInput("proof-a")

	in2 := baseInput("proof-a")
	in2.Accumulator.InventoryBefore = []collab.InventoryItem{{Name: "carrot", Count: 2}}
	in2.AfterState.Inventory = []collab.InventoryItem{{Name: "carrot", Count: 2}}

	b1, _, err := Build(in1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, _, err := Build(in2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b1.BundleHash == b2.BundleHash {
		t.Fatalf("expected differing hash when items_consumed differs, got equal %s", b1.BundleHash)
	}
}

func TestBuildHashDiffersOnExecutionResult(t *testing.T) {
	in1 := baseInput("proof-a")

	in2 := baseInput("proof-a")
	in2.Execution.Result = ExecSkipped
	in2.Execution.Receipt = Receipt{}
	in2.AfterState = nil

	b1, _, err := Build(in1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, r2, err := Build(in2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b1.BundleHash == b2.BundleHash {
		t.Fatalf("expected differing hash when execution.result differs, got equal %s", b1.BundleHash)
	}
	if r2 != AfterStateUnavailable || !r2.Verified() {
		t.Fatalf("expected after-state-unavailable to be verified, got %v", r2)
	}
}

func TestBuildAfterStateUnavailable(t *testing.T) {
	in := baseInput("proof-a")
	in.AfterState = nil

	bundle, reason, err := Build(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != AfterStateUnavailable {
		t.Fatalf("expected AfterStateUnavailable, got %v", reason)
	}
	if bundle.Identity.Verification.FoodAfter != nil || bundle.Identity.Verification.Delta != nil {
		t.Fatalf("expected nil food_after/delta when after-state unavailable, got %+v", bundle.Identity.Verification)
	}
	if bundle.Identity.Execution.Result != ExecOK {
		t.Fatalf("expected execution.result preserved for a verified reason, got %v", bundle.Identity.Execution.Result)
	}
}

func TestBuildFoodIncreaseWithoutConsumptionEvidenceOverridesResult(t *testing.T) {
	foodAfter := 8
	in := baseInput("proof-a")
	in.Execution.Receipt = Receipt{}
	in.AfterState = &worldstate.Sample{
		Food:      &foodAfter,
		Inventory: []collab.InventoryItem{{Name: "bread", Count: 2}}, // unchanged: no consumption evidence
	}

	bundle, reason, err := Build(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != FoodIncreasedButNoConsumptionEvidence {
		t.Fatalf("expected FoodIncreasedButNoConsumptionEvidence, got %v", reason)
	}
	if reason.Verified() {
		t.Fatalf("expected this reason to not be verified")
	}
	if bundle.Identity.Execution.Result != ExecError {
		t.Fatalf("expected execution.result overridden to error on failed verification, got %v", bundle.Identity.Execution.Result)
	}
}

func TestBuildNoFoodIncreaseOrEvidence(t *testing.T) {
	foodAfter := 4
	in := baseInput("proof-a")
	in.Execution.Receipt = Receipt{}
	in.AfterState = &worldstate.Sample{
		Food:      &foodAfter,
		Inventory: []collab.InventoryItem{{Name: "bread", Count: 2}},
	}

	_, reason, err := Build(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != NoFoodIncreaseOrConsumptionEvidence {
		t.Fatalf("expected NoFoodIncreaseOrConsumptionEvidence, got %v", reason)
	}
}

func TestBuildDifferingHungerValueChangesHash(t *testing.T) {
	in1 := baseInput("proof-a")

	in2 := baseInput("proof-a")
	in2.Accumulator.HungerValue = 0.95

	b1, _, err := Build(in1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b2, _, err := Build(in2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b1.BundleHash == b2.BundleHash {
		t.Fatalf("expected differing hash when trigger.hunger_value differs, got equal %s", b1.BundleHash)
	}
}
