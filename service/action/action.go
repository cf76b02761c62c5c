package action

import (
	"time"

	"github.com/alpacahq/gopaca/clock"
	"github.com/alpacahq/gopaca/db"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
)

// CorporateActionService is the action store. Claim performs the
// pessimistic row lock that guards the PENDING -> PROCESSING
// transition, so two workers can never execute the same action.
type CorporateActionService interface {
	Get(id uuid.UUID) (*models.CorporateAction, error)
	Create(a *models.CorporateAction) error
	Claim(id uuid.UUID, taskID uuid.UUID) (*models.CorporateAction, error)
	MarkClosed(id uuid.UUID) error
	MarkFailed(id uuid.UUID, aerr *models.ActionError) error
	Reset(id uuid.UUID) error
	Cancel(id uuid.UUID) error
	ListDue(asOf date.Date) ([]models.CorporateAction, error)
	ListRetryable() ([]models.CorporateAction, error)
	ExpireStale(asOf date.Date) (uint, error)
	ListClosedSince(equityID uuid.UUID, since date.Date) ([]models.CorporateAction, error)
	WithTx(tx *gorm.DB) CorporateActionService
}

func Service() CorporateActionService {
	return &corporateActionService{}
}

type corporateActionService struct {
	tx *gorm.DB
}

func (s *corporateActionService) WithTx(tx *gorm.DB) CorporateActionService {
	s.tx = tx
	return s
}

func (s *corporateActionService) Get(id uuid.UUID) (*models.CorporateAction, error) {
	a := &models.CorporateAction{}

	q := s.tx.Where("id = ?", id.String()).First(a)

	if q.RecordNotFound() {
		return nil, caerrors.RecordNotFound.WithMsg("corporate action not found")
	}

	if q.Error != nil {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return a, nil
}

func (s *corporateActionService) Create(a *models.CorporateAction) error {
	if !enum.ValidActionType(a.Type) {
		return caerrors.UnsupportedType.WithMsg("invalid action type: " + string(a.Type))
	}

	if a.Status == "" {
		a.Status = enum.ActionPending
	}
	if a.Priority == "" {
		a.Priority = enum.Normal
	}
	if a.Mode == "" {
		a.Mode = enum.Automatic
	}

	if err := s.tx.Create(a).Error; err != nil {
		return caerrors.StorageUnavailable.WithError(err)
	}

	return nil
}

// Claim moves a claimable action (PENDING, or FAILED with retry
// budget left) to PROCESSING under a FOR UPDATE row lock, recording
// the task id of the claiming worker. A claim lost to another worker
// surfaces as a not-found style conflict the scheduler counts as
// skipped.
func (s *corporateActionService) Claim(id uuid.UUID, taskID uuid.UUID) (*models.CorporateAction, error) {
	a := &models.CorporateAction{}

	q := s.tx.
		Set("gorm:query_option", db.ForUpdate).
		Where("id = ?", id.String()).
		First(a)

	if q.RecordNotFound() {
		return nil, caerrors.RecordNotFound.WithMsg("corporate action not found")
	}

	if q.Error != nil {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	if !a.Claimable() {
		return nil, caerrors.RecordNotFound.WithMsg(
			"corporate action is not claimable (status = " + string(a.Status) + ")")
	}

	tid := taskID.String()
	a.Status = enum.ActionProcessing
	a.TaskID = &tid

	if err := s.tx.Model(a).Updates(map[string]interface{}{
		"status":  enum.ActionProcessing,
		"task_id": tid,
	}).Error; err != nil {
		return nil, caerrors.StorageUnavailable.WithError(err)
	}

	return a, nil
}

func (s *corporateActionService) MarkClosed(id uuid.UUID) error {
	return s.updateStatus(id, enum.ActionClosed, nil)
}

// MarkFailed persists the structured error and bumps the retry count.
func (s *corporateActionService) MarkFailed(id uuid.UUID, aerr *models.ActionError) error {
	q := s.tx.Model(&models.CorporateAction{}).
		Where("id = ?", id.String()).
		Updates(map[string]interface{}{
			"status":      enum.ActionFailed,
			"last_error":  aerr.Raw(),
			"retry_count": gorm.Expr("retry_count + 1"),
		})

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if q.RowsAffected == 0 {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}

	return nil
}

// Reset requeues an action to PENDING (used by rollback). The retry
// count and last error are cleared so the rerun starts fresh.
func (s *corporateActionService) Reset(id uuid.UUID) error {
	q := s.tx.Model(&models.CorporateAction{}).
		Where("id = ?", id.String()).
		Updates(map[string]interface{}{
			"status":      enum.ActionPending,
			"retry_count": 0,
			"last_error":  nil,
			"task_id":     nil,
		})

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if q.RowsAffected == 0 {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}

	return nil
}

// Cancel aborts an action that has not been claimed yet. Once
// PROCESSING begins the action runs to completion.
func (s *corporateActionService) Cancel(id uuid.UUID) error {
	a := &models.CorporateAction{}

	q := s.tx.
		Set("gorm:query_option", db.ForUpdate).
		Where("id = ?", id.String()).
		First(a)

	if q.RecordNotFound() {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if !a.Claimable() {
		return caerrors.InternalError.WithMsg(
			"corporate action can no longer be cancelled (status = " + string(a.Status) + ")")
	}

	return s.updateStatus(id, enum.ActionCancelled, nil)
}

// ListDue returns PENDING actions with execution_date <= asOf, in
// (execution_date, created_at) order. The ordering is load-bearing:
// each action's formulas read the equity's current state, so later
// actions must observe the effects of earlier ones.
func (s *corporateActionService) ListDue(asOf date.Date) ([]models.CorporateAction, error) {
	actions := []models.CorporateAction{}

	q := s.tx.
		Where("status = ?", enum.ActionPending).
		Where("execution_date <= ?", asOf.String()).
		Order("execution_date ASC, created_at ASC").
		Find(&actions)

	if q.Error != nil && q.Error != gorm.ErrRecordNotFound {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return actions, nil
}

// ListRetryable returns FAILED actions still under their retry
// budget whose persisted failure class is retryable. Validation
// failures never come back through the sweep.
func (s *corporateActionService) ListRetryable() ([]models.CorporateAction, error) {
	actions := []models.CorporateAction{}

	q := s.tx.
		Where("status = ?", enum.ActionFailed).
		Where("retry_count < max_retries").
		Where("last_error->>'error_type' IN (?)", []string{
			string(caerrors.TransientInfra),
			string(caerrors.LockConflict),
		}).
		Order("execution_date ASC, created_at ASC").
		Find(&actions)

	if q.Error != nil && q.Error != gorm.ErrRecordNotFound {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return actions, nil
}

// ExpireStale moves voluntary PENDING actions past their expiration
// date to EXPIRED, returning the number of rows touched.
func (s *corporateActionService) ExpireStale(asOf date.Date) (uint, error) {
	q := s.tx.Model(&models.CorporateAction{}).
		Where("status = ?", enum.ActionPending).
		Where("is_mandatory = ?", false).
		Where("expiration_date IS NOT NULL AND expiration_date < ?", asOf.String()).
		Update("status", enum.ActionExpired)

	if q.Error != nil {
		return 0, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return uint(q.RowsAffected), nil
}

// ListClosedSince returns CLOSED actions for the equity with
// execution_date >= since, oldest first. Used by the rollback
// cascade to requeue everything computed against now-stale state.
func (s *corporateActionService) ListClosedSince(equityID uuid.UUID, since date.Date) ([]models.CorporateAction, error) {
	actions := []models.CorporateAction{}

	q := s.tx.
		Where("equity_id = ?", equityID.String()).
		Where("status = ?", enum.ActionClosed).
		Where("execution_date >= ?", since.String()).
		Order("execution_date ASC, created_at ASC").
		Find(&actions)

	if q.Error != nil && q.Error != gorm.ErrRecordNotFound {
		return nil, caerrors.StorageUnavailable.WithError(q.Error)
	}

	return actions, nil
}

func (s *corporateActionService) updateStatus(id uuid.UUID, status enum.ActionStatus, at *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if at == nil {
		now := clock.Now()
		at = &now
	}
	updates["updated_at"] = *at

	q := s.tx.Model(&models.CorporateAction{}).
		Where("id = ?", id.String()).
		Updates(updates)

	if q.Error != nil {
		return caerrors.StorageUnavailable.WithError(q.Error)
	}

	if q.RowsAffected == 0 {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}

	return nil
}
