package equity

import (
	"github.com/alpacahq/gopaca/db"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
)

// EquityService is the equity store collaborator. Save performs an
// optimistic version check; Lock/Unlock implement the non-reentrant
// exclusive execution lock.
type EquityService interface {
	Get(id uuid.UUID) (*models.Equity, error)
	GetBySymbol(symbol string) (*models.Equity, error)
	Save(e *models.Equity) error
	Lock(id uuid.UUID) error
	Unlock(id uuid.UUID) error
	WithTx(tx *gorm.DB) EquityService
	ForUpdate() EquityService
}

func Service() EquityService {
	return &equityService{}
}

type equityService struct {
	tx          *gorm.DB
	queryOption *string
}

func (s *equityService) WithTx(tx *gorm.DB) EquityService {
	s.tx = tx
	return s
}

func (s *equityService) ForUpdate() EquityService {
	forUpdate := db.ForUpdate
	s.queryOption = &forUpdate
	return s
}

func (s *equityService) Get(id uuid.UUID) (*models.Equity, error) {
	e := &models.Equity{}

	q := s.tx
	if s.queryOption != nil {
		q = q.Set("gorm:query_option", *s.queryOption)
	}

	q = q.Where("id = ?", id.String()).First(e)

	if q.RecordNotFound() {
		return nil, caerrors.RecordNotFound.WithMsg("equity not found")
	}

	if q.Error != nil {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return e, nil
}

func (s *equityService) GetBySymbol(symbol string) (*models.Equity, error) {
	e := &models.Equity{}

	q := s.tx.Where("symbol = ?", symbol).First(e)

	if q.RecordNotFound() {
		return nil, caerrors.RecordNotFound.WithMsg("equity not found")
	}

	if q.Error != nil {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return e, nil
}

// Save commits the equity state, guarded by a compare-and-swap on the
// version column. A concurrent commit in between loads surfaces as a
// version conflict and is retried by the caller's policy.
func (s *equityService) Save(e *models.Equity) error {
	q := s.tx.Model(&models.Equity{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		Updates(map[string]interface{}{
			"market_price":         e.MarketPrice,
			"shares_outstanding":   e.SharesOutstanding,
			"float_shares":         e.FloatShares,
			"market_cap":           e.MarketCap,
			"is_active":            e.IsActive,
			"is_trading_suspended": e.IsTradingSuspended,
			"last_processed_at":    e.LastProcessedAt,
			"version":              e.Version + 1,
		})

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if q.RowsAffected == 0 {
		return caerrors.VersionConflict
	}

	e.Version++

	return nil
}

// Lock acquires the equity's exclusive execution lock. The lock is
// non-reentrant; a second concurrent acquisition fails fast with a
// lock-conflict error rather than queuing.
func (s *equityService) Lock(id uuid.UUID) error {
	q := s.tx.Model(&models.Equity{}).
		Where("id = ? AND is_locked = ?", id.String(), false).
		Update("is_locked", true)

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if q.RowsAffected == 0 {
		if _, err := s.Get(id); err != nil {
			return err
		}
		return caerrors.EquityLocked
	}

	return nil
}

func (s *equityService) Unlock(id uuid.UUID) error {
	q := s.tx.Model(&models.Equity{}).
		Where("id = ?", id.String()).
		Update("is_locked", false)

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	return nil
}
