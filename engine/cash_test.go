package engine

import (
	"testing"

	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDividendGrossWithTax(t *testing.T) {
	eq := testEquity("100", "1000000")

	a := testAction(enum.Dividend, eq.ID)
	a.DividendAmount = decp("5")
	a.EligibleShares = decp("1000000")
	a.IsTaxable = true
	a.TaxRate = decp("0.2")
	a.GrossIndicator = true
	a.ExDate = dayp("2018-09-26")
	a.RecordDate = dayp("2018-09-27")
	a.PaymentDate = dayp("2018-10-01")

	ctx := testContext(a, eq)
	x := &cashExecutor{kind: enum.Dividend}

	impacts, err := runExecutor(x, ctx)
	require.Nil(t, err)
	require.True(t, ctx.Valid())

	assert.True(t, impacts["net_amount"].Equal(dec("4")))
	assert.True(t, impacts["total_payout"].Equal(dec("4000000")))
	assert.True(t, impacts["price_adjustment"].Equal(dec("4")))
	assert.True(t, impacts["new_price"].Equal(dec("96")))

	assert.True(t, eq.MarketPrice.Equal(dec("96")))
	assert.True(t, eq.MarketCap.Equal(dec("96000000")))
	assert.True(t, eq.SharesOutstanding.Equal(dec("1000000")))
}

func TestDividendNetQuotedSkipsTax(t *testing.T) {
	eq := testEquity("100", "1000000")

	a := testAction(enum.Dividend, eq.ID)
	a.DividendAmount = decp("4")
	a.EligibleShares = decp("1000000")
	a.IsTaxable = true
	a.TaxRate = decp("0.2")
	a.GrossIndicator = false

	ctx := testContext(a, eq)
	impacts, err := runExecutor(&cashExecutor{kind: enum.Dividend}, ctx)
	require.Nil(t, err)

	// the quoted amount is already net; no second tax haircut
	assert.True(t, impacts["net_amount"].Equal(dec("4")))
	assert.True(t, eq.MarketPrice.Equal(dec("96")))
}

func TestDividendPriceFlooredAtMinTick(t *testing.T) {
	eq := testEquity("3", "1000")

	a := testAction(enum.SpecialDividend, eq.ID)
	a.DividendAmount = decp("10")
	a.EligibleShares = decp("1000")

	ctx := testContext(a, eq)
	_, err := runExecutor(&cashExecutor{kind: enum.SpecialDividend}, ctx)
	require.Nil(t, err)

	assert.True(t, eq.MarketPrice.Equal(models.MinTick))
	assert.True(t, eq.ConsistentMarketCap())
}

func TestDividendValidationFailures(t *testing.T) {
	eq := testEquity("100", "1000000")

	for name, mutate := range map[string]func(a *models.CorporateAction){
		"missing amount":  func(a *models.CorporateAction) { a.DividendAmount = nil },
		"negative amount": func(a *models.CorporateAction) { a.DividendAmount = decp("-1") },
		"missing shares":  func(a *models.CorporateAction) { a.EligibleShares = nil },
		"tax above one": func(a *models.CorporateAction) {
			a.IsTaxable = true
			a.TaxRate = decp("1.5")
		},
		"currency mismatch": func(a *models.CorporateAction) { a.Currency = "EUR" },
		"ex after record": func(a *models.CorporateAction) {
			a.ExDate = dayp("2018-10-01")
			a.RecordDate = dayp("2018-09-26")
		},
	} {
		a := testAction(enum.Dividend, eq.ID)
		a.DividendAmount = decp("5")
		a.EligibleShares = decp("1000000")
		mutate(a)

		ctx := testContext(a, eq)
		err := (&cashExecutor{kind: enum.Dividend}).ValidatePrerequisites(ctx)
		assert.Nil(t, err, name)
		assert.False(t, ctx.Valid(), name)
	}
}

func TestDividendInactiveEquityRejected(t *testing.T) {
	eq := testEquity("100", "1000000")
	eq.IsActive = false

	a := testAction(enum.Dividend, eq.ID)
	a.DividendAmount = decp("5")
	a.EligibleShares = decp("1000000")

	ctx := testContext(a, eq)
	require.Nil(t, (&cashExecutor{kind: enum.Dividend}).ValidatePrerequisites(ctx))
	assert.False(t, ctx.Valid())
}
