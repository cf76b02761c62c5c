package engine

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Impacts is the pure output of CalculateImpacts: computed values
// keyed by name (gross/net amounts, eligible shares, price deltas).
// Calculation must not mutate the equity.
type Impacts map[string]decimal.Decimal

// Transition reports the equity mutation applied by ExecuteAction.
type Transition struct {
	OriginalState      json.RawMessage `json:"original_state"`
	NewState           json.RawMessage `json:"new_state"`
	AdjustmentsApplied []string        `json:"adjustments_applied"`
}

// ExecutionData bundles the computation artifacts for the caller.
type ExecutionData struct {
	Impacts      Impacts     `json:"impacts"`
	ActionResult *Transition `json:"action_result"`
	LogID        uuid.UUID   `json:"log_id"`
}

// Result is the outcome of one engine run over one corporate action.
type Result struct {
	Success           bool           `json:"success"`
	TaskID            uuid.UUID      `json:"task_id"`
	CorporateActionID uuid.UUID      `json:"corporate_action_id"`
	EquityID          uuid.UUID      `json:"equity_id"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	Errors            []string       `json:"errors"`
	Warnings          []string       `json:"warnings"`
	ExecutionData     *ExecutionData `json:"execution_data"`
}

// BatchResult aggregates one scheduler run over all due actions.
type BatchResult struct {
	Total      int           `json:"total_actions"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Errors     []string      `json:"errors"`
	TaskIDs    []uuid.UUID   `json:"task_ids"`
	Duration   time.Duration `json:"-"`
}

// MarshalJSON reports the duration in seconds to match the key name.
func (r *BatchResult) MarshalJSON() ([]byte, error) {
	type batchResult BatchResult
	return json.Marshal(&struct {
		*batchResult
		DurationSeconds float64 `json:"duration_seconds"`
	}{
		batchResult:     (*batchResult)(r),
		DurationSeconds: r.Duration.Seconds(),
	})
}
