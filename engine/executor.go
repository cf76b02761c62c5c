package engine

import (
	"strings"
	"time"

	"github.com/alpacahq/gopaca/clock"
	"github.com/alpacahq/gopaca/db"
	"github.com/alpacahq/gopaca/log"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/service/action"
	"github.com/equitylab/gocax/service/equity"
	"github.com/equitylab/gocax/service/history"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
	try "gopkg.in/matryer/try.v1"
)

// Executor is the per-action-type lifecycle contract. Implementations
// encode one family's valuation formulas; the engine composes the
// stages around them.
type Executor interface {
	// ValidatePrerequisites checks the action's inputs against the
	// equity state, populating ctx.ValidationErrors with
	// human-readable failures. Failing here is terminal.
	ValidatePrerequisites(ctx *Context) error
	// CalculateImpacts is pure: it derives the computed values
	// (gross/net amounts, eligible shares, price deltas) without
	// touching the equity.
	CalculateImpacts(ctx *Context) (Impacts, error)
	// ExecuteAction applies the mutation to the in-memory equity and
	// reports the transition.
	ExecuteAction(ctx *Context, impacts Impacts) (*Transition, error)
	// PostExecutionValidation sanity-checks the mutated state, e.g.
	// market-cap consistency within tolerance.
	PostExecutionValidation(ctx *Context, impacts Impacts) error
}

const equityFetchAttempts = 3

// Engine orchestrates the validate -> calculate -> apply -> verify
// pipeline around every executor invocation, with timing, logging
// and the equity lock handled in exactly one place.
type Engine struct {
	equities equity.EquityService
	actions  action.CorporateActionService
	history  history.HistoryService
	rates    RateSource

	// per-task transaction handle factory; everything the engine
	// persists goes through a handle acquired here and released on
	// every exit path
	begin func() *gorm.DB
}

func New(
	equities equity.EquityService,
	actions action.CorporateActionService,
	hist history.HistoryService,
	rates RateSource) *Engine {

	return &Engine{
		equities: equities,
		actions:  actions,
		history:  hist,
		rates:    rates,
		begin:    db.RepeatableRead,
	}
}

// WithBegin overrides the transaction factory (used by tests with
// store fakes that ignore the handle).
func (e *Engine) WithBegin(begin func() *gorm.DB) *Engine {
	e.begin = begin
	return e
}

func commit(tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.Commit().Error
}

func rollbackTx(tx *gorm.DB) {
	if tx != nil {
		tx.Rollback()
	}
}

// Execute runs one corporate action end to end. The equity mutation
// is committed only after post-execution validation passes, so a
// failed verify never leaves a half-applied state behind. Any error
// marks the action FAILED with a structured error and is returned
// for the caller's retry policy.
func (e *Engine) Execute(actionID uuid.UUID) (res *Result, err error) {
	taskID := uuid.Must(uuid.NewV4())

	res = &Result{
		TaskID:            taskID,
		CorporateActionID: actionID,
		StartTime:         clock.Now(),
	}

	claimed := false

	defer func() {
		res.EndTime = clock.Now()

		if err != nil {
			res.Errors = append(res.Errors, caerrors.Format(err))

			// a lost claim marks nothing: the action belongs to
			// another worker or is already terminal
			if claimed {
				e.failAction(actionID, taskID, err)
			}

			log.Error(
				"corporate action execution failed",
				"action_id", actionID,
				"task_id", taskID,
				"class", caerrors.ClassOf(err),
				"elapsed", res.EndTime.Sub(res.StartTime),
				"error", err)
			return
		}

		log.Info(
			"corporate action executed",
			"action_id", actionID,
			"task_id", taskID,
			"elapsed", res.EndTime.Sub(res.StartTime))
	}()

	// claim the row so no other worker can pick it up
	tx := e.begin()
	act, err := e.actions.WithTx(tx).Claim(actionID, taskID)
	if err != nil {
		rollbackTx(tx)
		return res, err
	}
	if err = commit(tx); err != nil {
		return res, caerrors.StorageUnavailable.WithError(err)
	}
	claimed = true

	exec, err := Dispatch(act.Type)
	if err != nil {
		return res, err
	}

	equityID := act.EquityIDAsUUID()
	res.EquityID = equityID

	// exclusive, non-reentrant lock; released on every exit path. Held
	// before the equity is read so a concurrent execution cannot commit
	// between fetch and lock and leave this run computing on stale state.
	ltx := e.begin()
	if err = e.equities.WithTx(ltx).Lock(equityID); err != nil {
		rollbackTx(ltx)
		return res, err
	}
	if err = commit(ltx); err != nil {
		return res, caerrors.StorageUnavailable.WithError(err)
	}

	defer func() {
		utx := e.begin()
		if uerr := e.equities.WithTx(utx).Unlock(equityID); uerr != nil {
			rollbackTx(utx)
			log.Error("failed to release equity lock", "equity_id", equityID, "error", uerr)
			return
		}
		if cerr := commit(utx); cerr != nil {
			log.Error("failed to release equity lock", "equity_id", equityID, "error", cerr)
		}
	}()

	eq, err := e.fetchEquity(equityID)
	if err != nil {
		return res, err
	}

	rate, err := e.rates.Rate(act.Currency, eq.Currency)
	if err != nil {
		return res, caerrors.InternalError.WithError(err)
	}

	ctx := NewContext(act, eq, taskID, rate)

	if act.AcquirerEquityID != nil {
		acquirerID, perr := uuid.FromString(*act.AcquirerEquityID)
		if perr != nil {
			return res, caerrors.PrerequisiteFailed.WithMsg("acquirer equity id is malformed")
		}
		if ctx.Acquirer, err = e.fetchEquity(acquirerID); err != nil {
			return res, err
		}
	}

	if err = exec.ValidatePrerequisites(ctx); err != nil {
		return res, err
	}

	if !ctx.Valid() {
		res.Errors = append(res.Errors, ctx.ValidationErrors...)
		err = caerrors.PrerequisiteFailed.WithMsg(strings.Join(ctx.ValidationErrors, "; "))
		return res, err
	}

	impacts, err := exec.CalculateImpacts(ctx)
	if err != nil {
		return res, err
	}

	before := eq.Snapshot()

	transition, err := exec.ExecuteAction(ctx, impacts)
	if err != nil {
		return res, err
	}

	if err = exec.PostExecutionValidation(ctx, impacts); err != nil {
		// nothing has been persisted yet; drop the in-memory
		// mutation so the run is one atomic unit
		if rerr := eq.RestoreSnapshot(before); rerr != nil {
			log.Error("failed to restore equity snapshot", "equity_id", eq.ID, "error", rerr)
		}
		return res, err
	}

	now := clock.Now()
	eq.LastProcessedAt = &now

	effective := ctx.Action.ExecutionDate
	if ctx.Action.EffectiveDate != nil {
		effective = *ctx.Action.EffectiveDate
	}

	entry := &models.HistoryLogEntry{
		EquityID:         eq.ID,
		ActionID:         act.ID,
		ActionType:       act.Type,
		ExecutedAt:       now,
		EffectiveDate:    effective,
		StateBefore:      before,
		StateAfter:       eq.Snapshot(),
		ActionParameters: ctx.Action.Parameters(),
	}

	// commit point: state, audit entry and status move together
	ctx2 := e.begin()
	if err = e.equities.WithTx(ctx2).Save(eq); err != nil {
		rollbackTx(ctx2)
		return res, err
	}

	logID, err := e.history.WithTx(ctx2).Append(entry)
	if err != nil {
		rollbackTx(ctx2)
		return res, err
	}

	if err = e.actions.WithTx(ctx2).MarkClosed(actionID); err != nil {
		rollbackTx(ctx2)
		return res, err
	}

	if err = commit(ctx2); err != nil {
		return res, caerrors.StorageUnavailable.WithError(err)
	}

	res.Success = true
	res.Warnings = ctx.Warnings
	res.ExecutionData = &ExecutionData{
		Impacts:      impacts,
		ActionResult: transition,
		LogID:        logID,
	}

	return res, nil
}

// fetchEquity retries transient store failures a few times before
// giving up; a missing equity fails immediately.
func (e *Engine) fetchEquity(id uuid.UUID) (eq *models.Equity, err error) {
	err = try.Do(func(attempt int) (bool, error) {
		tx := e.begin()
		defer rollbackTx(tx)

		var ferr error
		eq, ferr = e.equities.WithTx(tx).Get(id)
		if ferr == nil {
			return false, nil
		}

		if caerrors.ClassOf(ferr) != caerrors.TransientInfra {
			return false, ferr
		}

		if attempt < equityFetchAttempts {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}

		return attempt < equityFetchAttempts, ferr
	})

	return eq, err
}

func (e *Engine) failAction(actionID, taskID uuid.UUID, cause error) {
	aerr := &models.ActionError{
		ErrorType: string(caerrors.ClassOf(cause)),
		Message:   caerrors.Format(cause),
		Timestamp: clock.Now(),
		TaskID:    taskID.String(),
	}

	tx := e.begin()
	if err := e.actions.WithTx(tx).MarkFailed(actionID, aerr); err != nil {
		rollbackTx(tx)
		log.Error("failed to persist action failure", "action_id", actionID, "error", err)
		return
	}

	if err := commit(tx); err != nil {
		log.Error("failed to persist action failure", "action_id", actionID, "error", err)
	}
}
