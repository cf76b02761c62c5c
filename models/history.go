package models

import (
	"encoding/json"
	"time"

	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
)

// HistoryLogEntry is the append-only before/after record written for
// every successful execution. Entries are never mutated except to
// flip IsRolledBack, which is write-once.
type HistoryLogEntry struct {
	ID         string          `json:"id" gorm:"primary_key" sql:"type:uuid;"`
	CreatedAt  time.Time       `json:"-"`
	EquityID   string          `json:"equity_id" gorm:"index:idx_history_equity" sql:"type:uuid references equities(id);"`
	ActionID   string          `json:"action_id" sql:"type:uuid references corporate_actions(id);"`
	ActionType enum.ActionType `json:"action_type" sql:"type:text"`

	ExecutedAt    time.Time `json:"executed_at"`
	EffectiveDate date.Date `json:"effective_date" sql:"type:date"`

	StateBefore      json.RawMessage `json:"state_before" sql:"type:jsonb"`
	StateAfter       json.RawMessage `json:"state_after" sql:"type:jsonb"`
	ActionParameters json.RawMessage `json:"action_parameters" sql:"type:jsonb"`

	IsRolledBack   bool       `json:"is_rolled_back" sql:"default:false"`
	RolledBackBy   *string    `json:"rolled_back_by" sql:"type:text"`
	RolledBackAt   *time.Time `json:"rolled_back_at"`
	RollbackReason *string    `json:"rollback_reason" sql:"type:text"`
}

func (h *HistoryLogEntry) BeforeCreate(scope *gorm.Scope) error {
	if h.ID == "" {
		h.ID = uuid.Must(uuid.NewV4()).String()
	}
	return scope.SetColumn("id", h.ID)
}

func (h *HistoryLogEntry) IDAsUUID() uuid.UUID {
	id, _ := uuid.FromString(h.ID)
	return id
}
