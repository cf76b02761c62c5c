package engine

import (
	"github.com/alpacahq/gopaca/log"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/utils/txlevel"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
)

// RollbackResult reports what a rollback touched: the restored equity
// and the closed actions requeued because they were computed against
// state that no longer exists.
type RollbackResult struct {
	LogID    uuid.UUID   `json:"log_id"`
	EquityID uuid.UUID   `json:"equity_id"`
	ActionID uuid.UUID   `json:"action_id"`
	Requeued []uuid.UUID `json:"requeued"`
}

// Rollback reverses a previously executed corporate action by
// restoring the equity to the entry's state-before snapshot. The log
// entry itself is never deleted; it is flagged rolled-back exactly
// once, so a second rollback of the same entry is refused. Every
// CLOSED action on the equity executed on or after the rolled-back
// effective date is requeued to PENDING, oldest first, because its
// results were derived from the state being undone.
//
// The flag flip, the state restore and the cascade requeue commit as
// one transaction.
func (e *Engine) Rollback(logID uuid.UUID, by, reason string) (*RollbackResult, error) {
	tx := e.begin()

	res, err := e.rollback(tx, logID, by, reason)
	if err != nil {
		rollbackTx(tx)
		return nil, err
	}

	if err := commit(tx); err != nil {
		return nil, caerrors.StorageUnavailable.WithError(err)
	}

	log.Info(
		"corporate action rolled back",
		"log_id", logID,
		"equity_id", res.EquityID,
		"action_id", res.ActionID,
		"requeued", len(res.Requeued),
		"reason", reason)

	return res, nil
}

func (e *Engine) rollback(tx *gorm.DB, logID uuid.UUID, by, reason string) (*RollbackResult, error) {
	// the restore and the cascade must observe one consistent snapshot
	if tx != nil {
		ok, err := txlevel.Repeatable(tx)
		if err != nil {
			return nil, caerrors.StorageUnavailable.WithError(err)
		}
		if !ok {
			return nil, caerrors.InternalError.WithMsg("rollback requires a repeatable read transaction")
		}
	}

	hist := e.history.WithTx(tx)

	entry, err := hist.Get(logID)
	if err != nil {
		return nil, err
	}

	// write-once guard; also takes the row lock
	if err := hist.MarkRolledBack(logID, by, reason); err != nil {
		return nil, err
	}

	equityID, err := uuid.FromString(entry.EquityID)
	if err != nil {
		return nil, caerrors.InternalError.WithMsg("history entry equity id is malformed")
	}
	actionID, err := uuid.FromString(entry.ActionID)
	if err != nil {
		return nil, caerrors.InternalError.WithMsg("history entry action id is malformed")
	}

	equities := e.equities.WithTx(tx)

	eq, err := equities.ForUpdate().Get(equityID)
	if err != nil {
		return nil, err
	}

	if err := eq.RestoreSnapshot(entry.StateBefore); err != nil {
		return nil, caerrors.InternalError.WithError(err)
	}

	// the restore still bumps the version so in-flight optimistic
	// commits against the undone state lose their CAS
	if err := equities.Save(eq); err != nil {
		return nil, err
	}

	actions := e.actions.WithTx(tx)

	if err := actions.Reset(actionID); err != nil {
		return nil, err
	}

	res := &RollbackResult{
		LogID:    logID,
		EquityID: equityID,
		ActionID: actionID,
		Requeued: []uuid.UUID{actionID},
	}

	// cascade: everything closed on or after the undone effective date
	// was computed downstream of it
	closed, err := actions.ListClosedSince(equityID, entry.EffectiveDate)
	if err != nil {
		return nil, err
	}

	for _, a := range closed {
		if err := actions.Reset(a.IDAsUUID()); err != nil {
			return nil, err
		}
		res.Requeued = append(res.Requeued, a.IDAsUUID())
	}

	return res, nil
}
