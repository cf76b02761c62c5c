package models

import (
	"encoding/json"
	"time"

	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// ActionError is the structured failure record persisted on a
// corporate action when execution fails.
type ActionError struct {
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id,omitempty"`
}

// CorporateAction is one pending or processed action against an
// equity. The Type discriminates which of the family-specific
// columns are meaningful.
type CorporateAction struct {
	ID        string    `json:"id" gorm:"primary_key" sql:"type:uuid;"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	EquityID string              `json:"equity_id" gorm:"index:idx_action_equity" sql:"type:uuid references equities(id);"`
	Type     enum.ActionType     `json:"type" sql:"type:text"`
	Currency string              `json:"currency" sql:"type:varchar(3);default:'USD'"`
	Status   enum.ActionStatus   `json:"status" gorm:"index:idx_action_status" sql:"type:text;default:'PENDING'"`
	Priority enum.ActionPriority `json:"priority" sql:"type:text;default:'NORMAL'"`
	Mode     enum.ProcessingMode `json:"processing_mode" sql:"type:text;default:'AUTOMATIC'"`

	AnnouncementDate *date.Date `json:"announcement_date" sql:"type:date"`
	ExDate           *date.Date `json:"ex_date" sql:"type:date"`
	RecordDate       *date.Date `json:"record_date" sql:"type:date"`
	PaymentDate      *date.Date `json:"payment_date" sql:"type:date"`
	ExecutionDate    date.Date  `json:"execution_date" gorm:"index:idx_action_execution_date" sql:"type:date"`
	EffectiveDate    *date.Date `json:"effective_date" sql:"type:date"`
	ExpirationDate   *date.Date `json:"expiration_date" sql:"type:date"`

	IsMandatory    bool `json:"is_mandatory" sql:"default:true"`
	IsTaxable      bool `json:"is_taxable" sql:"default:false"`
	GrossIndicator bool `json:"gross_indicator" sql:"default:true"`

	// cash distributions
	DividendAmount *decimal.Decimal `json:"dividend_amount" gorm:"type:decimal"`
	EligibleShares *decimal.Decimal `json:"eligible_shares" gorm:"type:decimal"`
	TaxRate        *decimal.Decimal `json:"tax_rate" gorm:"type:decimal"`

	// stock changes
	SplitRatioFrom            *decimal.Decimal `json:"split_ratio_from" gorm:"type:decimal"`
	SplitRatioTo              *decimal.Decimal `json:"split_ratio_to" gorm:"type:decimal"`
	DistributionRatio         *decimal.Decimal `json:"distribution_ratio" gorm:"type:decimal"`
	SpinOffFairValue          *decimal.Decimal `json:"spinoff_fair_value" gorm:"type:decimal"`
	ParentCostBasisAllocation *decimal.Decimal `json:"parent_cost_basis_allocation" gorm:"type:decimal"`
	SpinOffCostBasisAllocation *decimal.Decimal `json:"spinoff_cost_basis_allocation" gorm:"type:decimal"`

	// rights & warrants
	SubscriptionPrice *decimal.Decimal `json:"subscription_price" gorm:"type:decimal"`
	SubscriptionRatio *decimal.Decimal `json:"subscription_ratio" gorm:"type:decimal"`
	SharesAllotted    *decimal.Decimal `json:"shares_allotted" gorm:"type:decimal"`
	ExercisePrice     *decimal.Decimal `json:"exercise_price" gorm:"type:decimal"`
	ExerciseRatio     *decimal.Decimal `json:"exercise_ratio" gorm:"type:decimal"`

	// restructurings
	TargetEquityID      *string                `json:"target_equity_id" sql:"type:uuid"`
	AcquirerEquityID    *string                `json:"acquirer_equity_id" sql:"type:uuid"`
	Method              enum.AcquisitionMethod `json:"acquisition_method" sql:"type:text"`
	OfferPrice          *decimal.Decimal       `json:"offer_price" gorm:"type:decimal"`
	ExchangeRatio       *decimal.Decimal       `json:"exchange_ratio" gorm:"type:decimal"`
	MaximumSharesSought *decimal.Decimal       `json:"maximum_shares_sought" gorm:"type:decimal"`
	SharesTendered      *decimal.Decimal       `json:"shares_tendered" gorm:"type:decimal"`

	// distress / delisting
	Chapter          enum.BankruptcyChapter `json:"bankruptcy_chapter" sql:"type:text"`
	RecoveryRate     *decimal.Decimal       `json:"recovery_rate" gorm:"type:decimal"`
	ProceedsPerShare *decimal.Decimal       `json:"proceeds_per_share" gorm:"type:decimal"`
	ConversionRatio  *decimal.Decimal       `json:"conversion_ratio" gorm:"type:decimal"`
	SuspendTrading   bool                   `json:"suspend_trading" sql:"default:false"`

	RetryCount int             `json:"retry_count" sql:"default:0"`
	MaxRetries int             `json:"max_retries" sql:"default:2"`
	LastError  json.RawMessage `json:"last_error" sql:"type:jsonb"`
	TaskID     *string         `json:"task_id" sql:"type:uuid"`
}

func (a *CorporateAction) BeforeCreate(scope *gorm.Scope) error {
	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV4()).String()
	}
	return scope.SetColumn("id", a.ID)
}

func (a *CorporateAction) IDAsUUID() uuid.UUID {
	id, _ := uuid.FromString(a.ID)
	return id
}

func (a *CorporateAction) EquityIDAsUUID() uuid.UUID {
	id, _ := uuid.FromString(a.EquityID)
	return id
}

// retryableErrorTypes are the failure classes eligible for another
// attempt. Validation and not-found failures stay FAILED until an
// operator rolls back or corrects the input.
var retryableErrorTypes = map[string]bool{
	string(caerrors.TransientInfra): true,
	string(caerrors.LockConflict):   true,
}

// LastErrorType returns the failure class persisted with the last
// structured error, or "" if the action has never failed.
func (a *CorporateAction) LastErrorType() string {
	if len(a.LastError) == 0 {
		return ""
	}

	aerr := &ActionError{}
	if err := json.Unmarshal(a.LastError, aerr); err != nil {
		return ""
	}
	return aerr.ErrorType
}

// Retryable reports whether a failed action is still eligible for
// another attempt: retry budget remaining and a retryable failure
// class on record.
func (a *CorporateAction) Retryable() bool {
	return a.Status == enum.ActionFailed &&
		a.RetryCount < a.MaxRetries &&
		retryableErrorTypes[a.LastErrorType()]
}

// Claimable reports whether the action can be picked up: PENDING, or
// FAILED with retry budget left so a later attempt can reclaim it.
// Once PROCESSING begins it runs to completion.
func (a *CorporateAction) Claimable() bool {
	return a.Status == enum.ActionPending || a.Retryable()
}

// Expired reports whether a voluntary action has passed its
// expiration date without being executed.
func (a *CorporateAction) Expired(asOf date.Date) bool {
	return !a.IsMandatory &&
		a.ExpirationDate != nil &&
		a.ExpirationDate.Before(asOf) &&
		a.Status == enum.ActionPending
}

// Parameters serializes the type-specific inputs for the history log.
func (a *CorporateAction) Parameters() json.RawMessage {
	buf, _ := json.Marshal(a)
	return buf
}

func (e *ActionError) Raw() json.RawMessage {
	buf, _ := json.Marshal(e)
	return buf
}
