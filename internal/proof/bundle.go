// Package proof assembles and verifies content-addressed proof bundles for
// the hunger reflex: an identity/evidence split where semantically
// equivalent outcomes share a stable hash regardless of timing or UUIDs.
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/food"
	"github.com/conscious-bot/reflexcore/internal/telemetry"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

// SchemaVersion is embedded as the leading identity field. The hash
// function choice is fixed for the life of a schema version, per §6.
const SchemaVersion = "v1"

// ExecResult is the closed set of outcomes identity.execution.result can
// take.
type ExecResult string

const (
	ExecOK      ExecResult = "ok"
	ExecError   ExecResult = "error"
	ExecSkipped ExecResult = "skipped"
)

// Reason is the closed verification-reason enum, per §4.3.1b.
type Reason string

const (
	AfterStateUnavailable                 Reason = "AFTER_STATE_UNAVAILABLE"
	ReceiptConfirmsConsumption            Reason = "RECEIPT_CONFIRMS_CONSUMPTION"
	FoodIncreasedAndConsumed              Reason = "FOOD_INCREASED_AND_CONSUMED"
	FoodIncreasedButNoConsumptionEvidence Reason = "FOOD_INCREASED_BUT_NO_CONSUMPTION_EVIDENCE"
	FoodIncreasedButInventoryUnavailable  Reason = "FOOD_INCREASED_BUT_INVENTORY_UNAVAILABLE"
	NoFoodIncreaseOrConsumptionEvidence   Reason = "NO_FOOD_INCREASE_OR_CONSUMPTION_EVIDENCE"
)

// Verified reports whether reason counts as a successful verification. Per
// §4.3.1b the first three enumerated reasons are verified; the rest are
// failures.
func (r Reason) Verified() bool {
	switch r {
	case AfterStateUnavailable, ReceiptConfirmsConsumption, FoodIncreasedAndConsumed:
		return true
	default:
		return false
	}
}

// Accumulator is the per-instance mutable state a hunger evaluate() that
// fires stores, keyed by reflexInstanceId, until the task reaches terminal.
type Accumulator struct {
	GoalID            string
	FoodItem          string
	TemplateName      string
	HomeostasisDigest string
	CandidatesDigest  string
	TriggeredAt       time.Time
	FoodBefore        int
	InventoryBefore   []collab.InventoryItem
	HungerValue       float64
	Threshold         int
}

// Trigger is the identity.trigger block.
type Trigger struct {
	HungerValue float64 `json:"hunger_value"`
	Threshold   int     `json:"threshold"`
	FoodLevel   int     `json:"food_level"`
}

// Preconditions is the identity.preconditions block.
type Preconditions struct {
	FoodAvailable bool `json:"food_available"`
}

// Goal is the identity.goal block.
type Goal struct {
	NeedType     string `json:"need_type"`
	TemplateName string `json:"template_name"`
	Description  string `json:"description"`
}

// TaskStep is one entry of identity.task.steps.
type TaskStep struct {
	Leaf string                 `json:"leaf"`
	Args map[string]interface{} `json:"args"`
}

// TaskBlock is the identity.task block.
type TaskBlock struct {
	Steps []TaskStep `json:"steps"`
}

// Execution is the identity.execution block.
type Execution struct {
	Result ExecResult `json:"result"`
}

// Verification is the identity.verification block.
type Verification struct {
	FoodBefore    int      `json:"food_before"`
	FoodAfter     *int     `json:"food_after"`
	Delta         *int     `json:"delta"`
	ItemsConsumed []string `json:"items_consumed"`
}

// Identity is the hashed half of a proof bundle. Field order here is the
// canonicalisation: json.Marshal emits struct fields in declaration order
// and sorts map keys, so two Identity values with equal content always
// marshal to identical bytes.
type Identity struct {
	SchemaVersion string        `json:"schema_version"`
	Trigger       Trigger       `json:"trigger"`
	Preconditions Preconditions `json:"preconditions"`
	Goal          Goal          `json:"goal"`
	Task          TaskBlock     `json:"task"`
	Execution     Execution     `json:"execution"`
	Verification  Verification  `json:"verification"`
}

// Timing is the evidence.timing block.
type Timing struct {
	TriggerToGoalMs   int64 `json:"trigger_to_goal_ms"`
	GoalToTaskMs      int64 `json:"goal_to_task_ms"`
	TaskToExecutionMs int64 `json:"task_to_execution_ms"`
	TotalMs           int64 `json:"total_ms"`
}

// Evidence is the non-hashed half of a proof bundle: correlation data only,
// never read by the hasher.
type Evidence struct {
	ProofID                 string      `json:"proof_id"`
	GoalID                  string      `json:"goal_id"`
	TaskID                  string      `json:"task_id"`
	HomeostasisSampleDigest string      `json:"homeostasis_sample_digest"`
	CandidatesDigest        string      `json:"candidates_digest"`
	ExecutionReceipt        interface{} `json:"execution_receipt"`
	CandidateFoodItem       string      `json:"candidate_food_item"`
	CandidateFoodCount      int         `json:"candidate_food_count"`
	Timing                  Timing      `json:"timing"`
	TriggeredAt             time.Time   `json:"triggered_at"`
}

// Bundle is the immutable, content-addressed record of one hunger goal's
// trigger -> goal -> task -> execution -> verification chain.
type Bundle struct {
	Identity   Identity `json:"identity"`
	Evidence   Evidence `json:"evidence"`
	BundleHash string   `json:"bundle_hash"`
}

// Receipt is the execution pipeline's report of what actually happened.
type Receipt struct {
	ItemsConsumed int   `json:"items_consumed"`
	FoodConsumed  *bool `json:"food_consumed,omitempty"`
}

// ExecutionReport is what the registry hands Build on terminal.
type ExecutionReport struct {
	Result  ExecResult
	Receipt Receipt
	TaskID  string
}

// hashIdentity computes the content hash of identity: a 16-hex-character
// (8-byte) prefix of its SHA-256 digest over canonical JSON.
func hashIdentity(identity Identity) (string, error) {
	b, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8]), nil
}

// itemsConsumedBetween returns the lexicographically sorted list of item
// names whose count decreased from before to after.
func itemsConsumedBetween(before, after []collab.InventoryItem) []string {
	beforeCounts := make(map[string]int, len(before))
	for _, it := range before {
		beforeCounts[it.Name] += it.Count
	}
	afterCounts := make(map[string]int, len(after))
	for _, it := range after {
		afterCounts[it.Name] += it.Count
	}

	out := []string{}
	for name, b := range beforeCounts {
		if afterCounts[name] < b {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func anyFoodTracked(items []collab.InventoryItem) bool {
	for _, it := range items {
		if food.IsFood(it.Name) {
			return true
		}
	}
	return false
}

// BuildInput bundles everything Build needs beyond the accumulator.
type BuildInput struct {
	Accumulator   *Accumulator
	Execution     ExecutionReport
	AfterState    *worldstate.Sample // nil if unavailable
	TaskSteps     []TaskStep
	NeedType      string
	Description   string
	ProofID       string
	TriggerToGoal time.Duration
	GoalToTask    time.Duration
	TaskToExec    time.Duration
}

// Build assembles and hashes a proof bundle, per §4.3.1b. It returns the
// bundle along with the verification reason — callers use the reason to
// drive goal_verified / goal_closed lifecycle events.
func Build(in BuildInput) (Bundle, Reason, error) {
	acc := in.Accumulator

	foodBefore := acc.FoodBefore
	var foodAfter *int
	var delta *int
	var inventoryAfter []collab.InventoryItem
	itemsConsumed := []string{}

	if in.AfterState != nil {
		inventoryAfter = in.AfterState.Inventory
		if in.AfterState.Food != nil {
			f := *in.AfterState.Food
			foodAfter = &f
			d := f - foodBefore
			delta = &d
		}
		itemsConsumed = itemsConsumedBetween(acc.InventoryBefore, inventoryAfter)
	}

	var reason Reason
	switch {
	case in.AfterState == nil:
		reason = AfterStateUnavailable
	case in.Execution.Receipt.ItemsConsumed > 0 || in.Execution.Receipt.FoodConsumed != nil:
		reason = ReceiptConfirmsConsumption
	case delta != nil && *delta > 0 && len(itemsConsumed) > 0:
		reason = FoodIncreasedAndConsumed
	case delta != nil && *delta > 0 && (anyFoodTracked(acc.InventoryBefore) || anyFoodTracked(inventoryAfter)):
		reason = FoodIncreasedButNoConsumptionEvidence
	case delta != nil && *delta > 0:
		reason = FoodIncreasedButInventoryUnavailable
	default:
		reason = NoFoodIncreaseOrConsumptionEvidence
	}

	execResult := in.Execution.Result
	if !reason.Verified() {
		execResult = ExecError
	}

	telemetry.ProofVerifications.WithLabelValues(string(reason), strconv.FormatBool(reason.Verified())).Inc()

	identity := Identity{
		SchemaVersion: SchemaVersion,
		Trigger: Trigger{
			HungerValue: acc.HungerValue,
			Threshold:   acc.Threshold,
			FoodLevel:   foodBefore,
		},
		Preconditions: Preconditions{FoodAvailable: acc.FoodItem != ""},
		Goal: Goal{
			NeedType:     in.NeedType,
			TemplateName: acc.TemplateName,
			Description:  in.Description,
		},
		Task:      TaskBlock{Steps: in.TaskSteps},
		Execution: Execution{Result: execResult},
		Verification: Verification{
			FoodBefore:    foodBefore,
			FoodAfter:     foodAfter,
			Delta:         delta,
			ItemsConsumed: itemsConsumed,
		},
	}

	hash, err := hashIdentity(identity)
	if err != nil {
		return Bundle{}, reason, err
	}

	bundle := Bundle{
		Identity: identity,
		Evidence: Evidence{
			ProofID:                 in.ProofID,
			GoalID:                  acc.GoalID,
			TaskID:                  in.Execution.TaskID,
			HomeostasisSampleDigest: acc.HomeostasisDigest,
			CandidatesDigest:        acc.CandidatesDigest,
			ExecutionReceipt:        in.Execution.Receipt,
			CandidateFoodItem:       acc.FoodItem,
			CandidateFoodCount:      1,
			Timing: Timing{
				TriggerToGoalMs:   in.TriggerToGoal.Milliseconds(),
				GoalToTaskMs:      in.GoalToTask.Milliseconds(),
				TaskToExecutionMs: in.TaskToExec.Milliseconds(),
				TotalMs:           (in.TriggerToGoal + in.GoalToTask + in.TaskToExec).Milliseconds(),
			},
			TriggeredAt: acc.TriggeredAt,
		},
		BundleHash: hash,
	}

	return bundle, reason, nil
}
