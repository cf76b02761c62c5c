package engine

import (
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/utils/bizday"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Context carries everything an executor needs for one run: the
// action with every type-specific date rolled onto a business day
// per the equity's convention, the loaded equity, the optional
// counterparty equity for restructurings, and the FX rate between
// the action's currency and the equity's currency.
type Context struct {
	Action   *models.CorporateAction
	Equity   *models.Equity
	Acquirer *models.Equity
	FXRate   decimal.Decimal
	TaskID   uuid.UUID

	// human-readable prerequisite failures, populated by
	// ValidatePrerequisites
	ValidationErrors []string
	Warnings         []string
}

// NewContext business-day-adjusts the action's dates against the
// equity's calendar convention before any validation sees them.
// The action is copied; the caller's record is left untouched.
func NewContext(a *models.CorporateAction, e *models.Equity, taskID uuid.UUID, fxRate decimal.Decimal) *Context {
	adjusted := *a
	conv := e.Convention

	adjusted.AnnouncementDate = bizday.AdjustPtr(a.AnnouncementDate, conv)
	adjusted.ExDate = bizday.AdjustPtr(a.ExDate, conv)
	adjusted.RecordDate = bizday.AdjustPtr(a.RecordDate, conv)
	adjusted.PaymentDate = bizday.AdjustPtr(a.PaymentDate, conv)
	adjusted.ExecutionDate = bizday.Adjust(a.ExecutionDate, conv)
	adjusted.EffectiveDate = bizday.AdjustPtr(a.EffectiveDate, conv)
	adjusted.ExpirationDate = bizday.AdjustPtr(a.ExpirationDate, conv)

	return &Context{
		Action: &adjusted,
		Equity: e,
		FXRate: fxRate,
		TaskID: taskID,
	}
}

func (c *Context) Invalidate(msg string) {
	c.ValidationErrors = append(c.ValidationErrors, msg)
}

func (c *Context) Valid() bool {
	return len(c.ValidationErrors) == 0
}
