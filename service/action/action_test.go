package action

import (
	"testing"

	"github.com/alpacahq/gopaca/db"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/dbtest"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ActionTestSuite struct {
	dbtest.Suite
	equity *models.Equity
}

func TestActionTestSuite(t *testing.T) {
	suite.Run(t, new(ActionTestSuite))
}

func (s *ActionTestSuite) SetupSuite() {
	s.SetupDB()

	price := decimal.New(100, 0)
	shares := decimal.New(1000000, 0)

	s.equity = &models.Equity{
		Symbol:            "ACME",
		Currency:          "USD",
		MarketPrice:       price,
		SharesOutstanding: shares,
		FloatShares:       shares,
		MarketCap:         price.Mul(shares),
		IsActive:          true,
	}

	if err := db.DB().Create(s.equity).Error; err != nil {
		assert.FailNow(s.T(), err.Error())
	}
}

func (s *ActionTestSuite) TearDownSuite() {
	s.TeardownDB()
}

func (s *ActionTestSuite) newAction(t enum.ActionType, execution string) *models.CorporateAction {
	execDate, err := date.ParseDate(execution)
	if err != nil {
		assert.FailNow(s.T(), err.Error())
	}

	amount := decimal.New(5, 0)

	return &models.CorporateAction{
		EquityID:       s.equity.ID,
		Type:           t,
		Currency:       "USD",
		ExecutionDate:  execDate,
		IsMandatory:    true,
		DividendAmount: &amount,
		MaxRetries:     2,
	}
}

func (s *ActionTestSuite) TestCreateDefaults() {
	srv := Service().WithTx(db.DB())

	a := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(a))
	assert.Equal(s.T(), enum.ActionPending, a.Status)
	assert.Equal(s.T(), enum.Normal, a.Priority)
	assert.Equal(s.T(), enum.Automatic, a.Mode)

	bogus := s.newAction(enum.ActionType("SCRIP_DIVIDEND"), "2018-10-01")
	err := srv.Create(bogus)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), caerrors.UnsupportedActionType, caerrors.ClassOf(err))
}

func (s *ActionTestSuite) TestClaimTransition() {
	srv := Service().WithTx(db.DB())

	a := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(a))

	taskID := uuid.Must(uuid.NewV4())

	claimed, err := srv.Claim(a.IDAsUUID(), taskID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), enum.ActionProcessing, claimed.Status)
	assert.Equal(s.T(), taskID.String(), *claimed.TaskID)

	// a second claim loses
	_, err = srv.Claim(a.IDAsUUID(), uuid.Must(uuid.NewV4()))
	assert.NotNil(s.T(), err)
	assert.True(s.T(), caerrors.IsNotFound(err))
}

func (s *ActionTestSuite) TestClaimRetryableFailure() {
	srv := Service().WithTx(db.DB())

	a := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(a))

	_, err := srv.Claim(a.IDAsUUID(), uuid.Must(uuid.NewV4()))
	assert.Nil(s.T(), err)

	aerr := &models.ActionError{
		ErrorType: string(caerrors.LockConflict),
		Message:   "equity is locked by another execution",
	}
	assert.Nil(s.T(), srv.MarkFailed(a.IDAsUUID(), aerr))

	// a lock-conflict failure with budget left can be reclaimed
	claimed, err := srv.Claim(a.IDAsUUID(), uuid.Must(uuid.NewV4()))
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), enum.ActionProcessing, claimed.Status)

	// budget exhausted: no further claims
	assert.Nil(s.T(), srv.MarkFailed(a.IDAsUUID(), aerr))

	_, err = srv.Claim(a.IDAsUUID(), uuid.Must(uuid.NewV4()))
	assert.NotNil(s.T(), err)
	assert.True(s.T(), caerrors.IsNotFound(err))

	// a validation failure is never reclaimable
	b := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(b))
	assert.Nil(s.T(), srv.MarkFailed(b.IDAsUUID(), &models.ActionError{
		ErrorType: string(caerrors.Validation),
		Message:   "dividend amount must be positive",
	}))

	_, err = srv.Claim(b.IDAsUUID(), uuid.Must(uuid.NewV4()))
	assert.NotNil(s.T(), err)
	assert.True(s.T(), caerrors.IsNotFound(err))
}

func (s *ActionTestSuite) TestListRetryableFiltersClass() {
	srv := Service().WithTx(db.DB())

	lockConflict := s.newAction(enum.Dividend, "2018-10-09")
	validation := s.newAction(enum.Dividend, "2018-10-09")
	assert.Nil(s.T(), srv.Create(lockConflict))
	assert.Nil(s.T(), srv.Create(validation))

	assert.Nil(s.T(), srv.MarkFailed(lockConflict.IDAsUUID(), &models.ActionError{
		ErrorType: string(caerrors.LockConflict),
		Message:   "equity is locked by another execution",
	}))
	assert.Nil(s.T(), srv.MarkFailed(validation.IDAsUUID(), &models.ActionError{
		ErrorType: string(caerrors.Validation),
		Message:   "dividend amount must be positive",
	}))

	retryable, err := srv.ListRetryable()
	assert.Nil(s.T(), err)

	var sawLockConflict, sawValidation bool
	for _, a := range retryable {
		switch a.ID {
		case lockConflict.ID:
			sawLockConflict = true
		case validation.ID:
			sawValidation = true
		}
	}

	assert.True(s.T(), sawLockConflict)
	assert.False(s.T(), sawValidation)
}

func (s *ActionTestSuite) TestFailAndReset() {
	srv := Service().WithTx(db.DB())

	a := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(a))

	aerr := &models.ActionError{
		ErrorType: string(caerrors.Validation),
		Message:   "dividend amount must be positive",
	}
	assert.Nil(s.T(), srv.MarkFailed(a.IDAsUUID(), aerr))

	failed, err := srv.Get(a.IDAsUUID())
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), enum.ActionFailed, failed.Status)
	assert.Equal(s.T(), 1, failed.RetryCount)
	assert.NotEmpty(s.T(), failed.LastError)

	assert.Nil(s.T(), srv.Reset(a.IDAsUUID()))

	reset, err := srv.Get(a.IDAsUUID())
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), enum.ActionPending, reset.Status)
	assert.Equal(s.T(), 0, reset.RetryCount)
	assert.Empty(s.T(), reset.LastError)
	assert.Nil(s.T(), reset.TaskID)
}

func (s *ActionTestSuite) TestCancelOnlyBeforeClaim() {
	srv := Service().WithTx(db.DB())

	a := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(a))

	_, err := srv.Claim(a.IDAsUUID(), uuid.Must(uuid.NewV4()))
	assert.Nil(s.T(), err)

	// once processing begins the action runs to completion
	assert.NotNil(s.T(), srv.Cancel(a.IDAsUUID()))

	b := s.newAction(enum.Dividend, "2018-10-01")
	assert.Nil(s.T(), srv.Create(b))
	assert.Nil(s.T(), srv.Cancel(b.IDAsUUID()))

	cancelled, err := srv.Get(b.IDAsUUID())
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), enum.ActionCancelled, cancelled.Status)
}

func (s *ActionTestSuite) TestListDueOrdering() {
	srv := Service().WithTx(db.DB())

	later := s.newAction(enum.StockSplit, "2018-11-02")
	earlier := s.newAction(enum.Dividend, "2018-11-01")

	assert.Nil(s.T(), srv.Create(later))
	assert.Nil(s.T(), srv.Create(earlier))

	asOf, _ := date.ParseDate("2018-11-02")

	due, err := srv.ListDue(asOf)
	assert.Nil(s.T(), err)

	var idxEarlier, idxLater = -1, -1
	for i, a := range due {
		switch a.ID {
		case earlier.ID:
			idxEarlier = i
		case later.ID:
			idxLater = i
		}
	}

	assert.True(s.T(), idxEarlier >= 0)
	assert.True(s.T(), idxLater >= 0)
	assert.True(s.T(), idxEarlier < idxLater)

	// nothing due before its execution date
	before, _ := date.ParseDate("2018-10-31")
	due, err = srv.ListDue(before)
	assert.Nil(s.T(), err)
	for _, a := range due {
		assert.NotEqual(s.T(), later.ID, a.ID)
		assert.NotEqual(s.T(), earlier.ID, a.ID)
	}
}

func (s *ActionTestSuite) TestExpireStale() {
	srv := Service().WithTx(db.DB())

	exp, _ := date.ParseDate("2018-09-28")

	a := s.newAction(enum.TenderOffer, "2018-09-20")
	a.IsMandatory = false
	a.ExpirationDate = &exp
	assert.Nil(s.T(), srv.Create(a))

	asOf, _ := date.ParseDate("2018-10-01")

	n, err := srv.ExpireStale(asOf)
	assert.Nil(s.T(), err)
	assert.True(s.T(), n >= 1)

	expired, err := srv.Get(a.IDAsUUID())
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), enum.ActionExpired, expired.Status)
}
