package caproc

import (
	"strconv"
	"sync"
	"time"

	"github.com/alpacahq/gopaca/clock"
	"github.com/alpacahq/gopaca/db"
	"github.com/alpacahq/gopaca/env"
	"github.com/alpacahq/gopaca/log"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/careg"
	"github.com/equitylab/gocax/engine"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/service/action"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	try "gopkg.in/matryer/try.v1"
)

// Scheduler drains the due corporate actions for a processing date.
// Actions are grouped by equity so each equity's actions run in
// (execution_date, created_at) order on a single goroutine. Groups
// containing a blocking-priority action run sequentially before the
// rest are fanned out to the bounded pool.
type Scheduler struct {
	execute      func(actionID uuid.UUID) (*engine.Result, error)
	actions      action.CorporateActionService
	parallelism  int
	persistError func(asOf date.Date, a models.CorporateAction, cause error)
	sleep        func(d time.Duration)

	mu     sync.Mutex
	result *engine.BatchResult
}

func NewScheduler(
	execute func(actionID uuid.UUID) (*engine.Result, error),
	actions action.CorporateActionService,
	parallelism int) *Scheduler {

	if parallelism < 1 {
		parallelism = 1
	}

	return &Scheduler{
		execute:      execute,
		actions:      actions,
		parallelism:  parallelism,
		persistError: storeError,
		sleep:        time.Sleep,
	}
}

// Work runs the daily batch with the default wiring.
func Work(asOf date.Date) {
	parallelism, err := strconv.Atoi(env.GetVar("CAPROC_PARALLELISM"))
	if err != nil {
		parallelism = 4
	}

	s := NewScheduler(
		careg.Engine().Execute,
		careg.Services.CorporateAction().WithTx(db.DB()),
		parallelism,
	)

	res := s.Work(asOf)

	storeMetric(asOf, res)
}

// WorkRetries requeues FAILED actions still under their retry budget
// and runs them through the same scheduler.
func WorkRetries(asOf date.Date) {
	retryable, err := careg.Services.CorporateAction().WithTx(db.DB()).ListRetryable()
	if err != nil {
		log.Error("retry sweep failed to list retryable actions", "error", err)
		return
	}

	if len(retryable) == 0 {
		return
	}

	log.Info("retry sweep requeuing failed actions", "count", len(retryable))

	for _, a := range retryable {
		if err := careg.Services.CorporateAction().WithTx(db.DB()).Reset(a.IDAsUUID()); err != nil {
			log.Error("retry sweep failed to requeue action", "action_id", a.ID, "error", err)
		}
	}

	Work(asOf)
}

func (s *Scheduler) Work(asOf date.Date) *engine.BatchResult {
	start := clock.Now()

	s.result = &engine.BatchResult{}

	expired, err := s.actions.ExpireStale(asOf)
	if err != nil {
		log.Error("batch failed to expire stale actions", "asOf", asOf, "error", err)
	} else if expired > 0 {
		log.Info("expired stale voluntary actions", "asOf", asOf, "count", expired)
	}

	due, err := s.actions.ListDue(asOf)
	if err != nil {
		log.Error("batch failed to list due actions", "asOf", asOf, "error", err)
		s.result.Errors = append(s.result.Errors, caerrors.Format(err))
		return s.result
	}

	s.result.Total = len(due)

	if len(due) == 0 {
		s.result.Duration = clock.Now().Sub(start)
		return s.result
	}

	blocking, normal := s.group(due)

	log.Info(
		"batch processing due corporate actions",
		"asOf", asOf,
		"total", len(due),
		"blocking_groups", len(blocking),
		"groups", len(normal),
		"parallelism", s.parallelism)

	// blocking groups drain first so urgent actions never wait behind
	// routine ones
	for _, group := range blocking {
		s.runGroup(asOf, group)
	}

	sem := make(chan struct{}, s.parallelism)
	wg := sync.WaitGroup{}

	for _, group := range normal {
		wg.Add(1)
		sem <- struct{}{}

		go func(group []models.CorporateAction) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runGroup(asOf, group)
		}(group)
	}

	wg.Wait()

	s.result.Duration = clock.Now().Sub(start)

	log.Info(
		"batch run complete",
		"asOf", asOf,
		"total", s.result.Total,
		"successful", s.result.Successful,
		"failed", s.result.Failed,
		"skipped", s.result.Skipped,
		"elapsed", s.result.Duration)

	return s.result
}

// group partitions the due actions by equity, preserving the list
// order inside each group. A group containing any blocking-priority
// action is promoted to the sequential phase.
func (s *Scheduler) group(due []models.CorporateAction) (blocking, normal [][]models.CorporateAction) {
	order := []string{}
	groups := map[string][]models.CorporateAction{}

	for _, a := range due {
		if _, ok := groups[a.EquityID]; !ok {
			order = append(order, a.EquityID)
		}
		groups[a.EquityID] = append(groups[a.EquityID], a)
	}

	for _, equityID := range order {
		group := groups[equityID]

		promoted := false
		for _, a := range group {
			if a.Priority.Blocking() {
				promoted = true
				break
			}
		}

		if promoted {
			blocking = append(blocking, group)
		} else {
			normal = append(normal, group)
		}
	}

	return blocking, normal
}

// runGroup executes one equity's actions strictly in order. A
// non-skip failure aborts the remainder of the group, since each
// action's formulas read state the failed one should have produced.
func (s *Scheduler) runGroup(asOf date.Date, group []models.CorporateAction) {
	for i, a := range group {
		res, err := s.runOne(a)
		if err == nil {
			s.record(res, nil, a)
			continue
		}

		if caerrors.IsNotFound(err) {
			// claimed by another worker or cancelled in between
			s.mu.Lock()
			s.result.Skipped++
			s.mu.Unlock()
			continue
		}

		s.record(res, err, a)
		s.persistError(asOf, a, err)

		for _, rest := range group[i+1:] {
			s.mu.Lock()
			s.result.Skipped++
			s.mu.Unlock()
			log.Warn(
				"skipping corporate action behind failed predecessor",
				"action_id", rest.ID,
				"failed_action_id", a.ID,
				"equity_id", a.EquityID)
		}
		return
	}
}

// runOne executes a single action with the class-specific retry
// policy. The policy's delay is the total window, spread evenly
// across the remaining attempts.
func (s *Scheduler) runOne(a models.CorporateAction) (res *engine.Result, err error) {
	err = try.Do(func(attempt int) (bool, error) {
		r, rerr := s.execute(a.IDAsUUID())
		res = r
		if rerr == nil {
			return false, nil
		}

		attempts, window := caerrors.ClassOf(rerr).RetryPolicy()
		if attempt >= attempts {
			return false, rerr
		}

		s.sleep(window / time.Duration(attempts))
		return true, rerr
	})

	return res, err
}

func (s *Scheduler) record(res *engine.Result, err error, a models.CorporateAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res != nil {
		s.result.TaskIDs = append(s.result.TaskIDs, res.TaskID)
	}

	if err == nil {
		s.result.Successful++
		return
	}

	s.result.Failed++
	s.result.Errors = append(s.result.Errors, caerrors.Format(err))

	log.Error(
		"batch corporate action failed",
		"action_id", a.ID,
		"equity_id", a.EquityID,
		"type", a.Type,
		"class", caerrors.ClassOf(err),
		"error", err)
}

// storeError records a batch failure keyed on (date, action, symbol)
// so reruns of the same day stay idempotent.
func storeError(asOf date.Date, a models.CorporateAction, cause error) {
	aerr := &models.ActionError{
		ErrorType: string(caerrors.ClassOf(cause)),
		Message:   caerrors.Format(cause),
		Timestamp: clock.Now(),
	}

	batchError := &models.BatchError{
		ProcessDate:               asOf.String(),
		PrimaryRecordIdentifier:   a.ID + "/" + string(a.Type),
		SecondaryRecordIdentifier: a.EquityID,
		Error:                     aerr.Raw(),
	}

	tx := db.Begin()
	if err := tx.Where(&models.BatchError{
		ProcessDate:               batchError.ProcessDate,
		PrimaryRecordIdentifier:   batchError.PrimaryRecordIdentifier,
		SecondaryRecordIdentifier: batchError.SecondaryRecordIdentifier}).
		Attrs(batchError).
		FirstOrCreate(&batchError).Error; err != nil {
		tx.Rollback()
		log.Error("failed to store batch error", "action_id", a.ID, "error", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("failed to store batch error", "action_id", a.ID, "error", err)
	}
}

func storeMetric(asOf date.Date, res *engine.BatchResult) {
	metric := &models.BatchMetric{
		ProcessDate:     asOf.String(),
		ProcessDuration: int(res.Duration.Seconds()),
		RecordCount:     uint(res.Successful),
		ErrorCount:      uint(res.Failed),
	}

	tx := db.Begin()
	if err := tx.Where(&models.BatchMetric{ProcessDate: metric.ProcessDate}).
		Assign(metric).
		FirstOrCreate(&metric).Error; err != nil {
		tx.Rollback()
		log.Error("failed to store batch metrics", "asOf", asOf, "error", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("failed to store batch metrics", "asOf", asOf, "error", err)
	}
}
