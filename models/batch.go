package models

import (
	"encoding/json"
)

// BatchError is used to store errors encountered during batch
// processing of due corporate actions. Each error is defined as
// unique by its composite key: the processing date, the action id
// and the equity symbol. For example:
// 2026-03-02|7f9c.../STOCK_SPLIT|UVXY. This keeps the records
// human readable and idempotent between batch runs.
type BatchError struct {
	ProcessDate               string          `gorm:"primary_key" sql:"type:date NOT NULL"`
	PrimaryRecordIdentifier   string          `gorm:"primary_key" sql:"type:text NOT NULL"`
	SecondaryRecordIdentifier string          `gorm:"primary_key" sql:"type:text;default:''"`
	Error                     json.RawMessage `sql:"type:json"`
}

// BatchMetric stores metrics related to each batch run: the
// duration the run took, and the number of processed and failed
// actions, keyed on date.
type BatchMetric struct {
	ProcessDate     string `json:"date" gorm:"primary_key" sql:"type:date NOT NULL"`
	ProcessDuration int    `json:"duration" sql:"type:integer NOT NULL"`
	RecordCount     uint   `json:"successes" gorm:"not null"`
	ErrorCount      uint   `json:"failures" gorm:"not null"`
}
