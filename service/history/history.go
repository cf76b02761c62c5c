package history

import (
	"github.com/alpacahq/gopaca/clock"
	"github.com/alpacahq/gopaca/db"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
)

// HistoryService is the append-only audit log store. Entries are
// never mutated except by MarkRolledBack, which is write-once.
type HistoryService interface {
	Append(entry *models.HistoryLogEntry) (uuid.UUID, error)
	Get(logID uuid.UUID) (*models.HistoryLogEntry, error)
	Query(equityID uuid.UUID, from, to *date.Date) ([]models.HistoryLogEntry, error)
	MarkRolledBack(logID uuid.UUID, by, reason string) error
	WithTx(tx *gorm.DB) HistoryService
}

func Service() HistoryService {
	return &historyService{}
}

type historyService struct {
	tx *gorm.DB
}

func (s *historyService) WithTx(tx *gorm.DB) HistoryService {
	s.tx = tx
	return s
}

func (s *historyService) Append(entry *models.HistoryLogEntry) (uuid.UUID, error) {
	if err := s.tx.Create(entry).Error; err != nil {
		return uuid.Nil, caerrors.StorageUnavailable.WithError(err)
	}
	return entry.IDAsUUID(), nil
}

func (s *historyService) Get(logID uuid.UUID) (*models.HistoryLogEntry, error) {
	entry := &models.HistoryLogEntry{}

	q := s.tx.Where("id = ?", logID.String()).First(entry)

	if q.RecordNotFound() {
		return nil, caerrors.LogNotFound
	}

	if q.Error != nil {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return entry, nil
}

func (s *historyService) Query(equityID uuid.UUID, from, to *date.Date) ([]models.HistoryLogEntry, error) {
	entries := []models.HistoryLogEntry{}

	q := s.tx.Where("equity_id = ?", equityID.String())

	if from != nil {
		q = q.Where("effective_date >= ?", from.String())
	}
	if to != nil {
		q = q.Where("effective_date <= ?", to.String())
	}

	q = q.Order("effective_date ASC, created_at ASC").Find(&entries)

	if q.Error != nil && q.Error != gorm.ErrRecordNotFound {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return entries, nil
}

// MarkRolledBack flips is_rolled_back exactly once. A second rollback
// of the same entry is refused.
func (s *historyService) MarkRolledBack(logID uuid.UUID, by, reason string) error {
	entry := &models.HistoryLogEntry{}

	q := s.tx.
		Set("gorm:query_option", db.ForUpdate).
		Where("id = ?", logID.String()).
		First(entry)

	if q.RecordNotFound() {
		return caerrors.LogNotFound
	}

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if entry.IsRolledBack {
		return caerrors.AlreadyRolledBack
	}

	now := clock.Now()

	if err := s.tx.Model(entry).Updates(map[string]interface{}{
		"is_rolled_back":  true,
		"rolled_back_by":  by,
		"rolled_back_at":  now,
		"rollback_reason": reason,
	}).Error; err != nil {
		return caerrors.StorageUnavailable.WithError(err)
	}

	return nil
}
