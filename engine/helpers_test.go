package engine

import (
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(s string) date.Date {
	d, err := date.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dayp(s string) *date.Date {
	d := day(s)
	return &d
}

func testEquity(price, shares string) *models.Equity {
	p := dec(price)
	sh := dec(shares)

	return &models.Equity{
		ID:                uuid.Must(uuid.NewV4()).String(),
		Symbol:            "ACME",
		Currency:          "USD",
		MarketPrice:       p,
		SharesOutstanding: sh,
		FloatShares:       sh,
		MarketCap:         p.Mul(sh),
		Convention:        enum.Unadjusted,
		IsActive:          true,
	}
}

func testAction(t enum.ActionType, equityID string) *models.CorporateAction {
	return &models.CorporateAction{
		ID:            uuid.Must(uuid.NewV4()).String(),
		EquityID:      equityID,
		Type:          t,
		Currency:      "USD",
		Status:        enum.ActionPending,
		Priority:      enum.Normal,
		Mode:          enum.Automatic,
		ExecutionDate: day("2018-10-01"),
		IsMandatory:   true,
		MaxRetries:    2,
	}
}

func testContext(a *models.CorporateAction, e *models.Equity) *Context {
	return NewContext(a, e, uuid.Must(uuid.NewV4()), one)
}

// runExecutor drives the four lifecycle stages directly, failing on
// the first error, so math tests can assert on impacts and state.
func runExecutor(x Executor, ctx *Context) (Impacts, error) {
	if err := x.ValidatePrerequisites(ctx); err != nil {
		return nil, err
	}
	impacts, err := x.CalculateImpacts(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := x.ExecuteAction(ctx, impacts); err != nil {
		return impacts, err
	}
	return impacts, x.PostExecutionValidation(ctx, impacts)
}
