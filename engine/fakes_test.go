package engine

import (
	"sync"
	"time"

	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/service/action"
	"github.com/equitylab/gocax/service/equity"
	"github.com/equitylab/gocax/service/history"
	"github.com/equitylab/gocax/utils/date"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
)

// in-memory stores implementing the service interfaces, so the engine
// lifecycle can be exercised without postgres. WithTx is a no-op and
// the engine runs with a nil transaction factory.

func nilBegin() *gorm.DB { return nil }

type fakeEquityStore struct {
	mu       sync.Mutex
	equities map[string]*models.Equity
	getFails int
	ops      []string
}

func newFakeEquityStore(equities ...*models.Equity) *fakeEquityStore {
	s := &fakeEquityStore{equities: map[string]*models.Equity{}}
	for _, e := range equities {
		cp := *e
		s.equities[e.ID] = &cp
	}
	return s
}

func (s *fakeEquityStore) WithTx(tx *gorm.DB) equity.EquityService { return s }
func (s *fakeEquityStore) ForUpdate() equity.EquityService         { return s }

func (s *fakeEquityStore) Get(id uuid.UUID) (*models.Equity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, "get")

	if s.getFails > 0 {
		s.getFails--
		return nil, caerrors.StorageUnavailable
	}

	e, ok := s.equities[id.String()]
	if !ok {
		return nil, caerrors.RecordNotFound.WithMsg("equity not found")
	}

	cp := *e
	return &cp, nil
}

func (s *fakeEquityStore) GetBySymbol(symbol string) (*models.Equity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.equities {
		if e.Symbol == symbol {
			cp := *e
			return &cp, nil
		}
	}
	return nil, caerrors.RecordNotFound.WithMsg("equity not found")
}

func (s *fakeEquityStore) Save(e *models.Equity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, "save")

	stored, ok := s.equities[e.ID]
	if !ok {
		return caerrors.RecordNotFound.WithMsg("equity not found")
	}

	if stored.Version != e.Version {
		return caerrors.VersionConflict
	}

	cp := *e
	cp.Version++
	cp.IsLocked = stored.IsLocked
	s.equities[e.ID] = &cp
	e.Version++

	return nil
}

func (s *fakeEquityStore) Lock(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, "lock")

	e, ok := s.equities[id.String()]
	if !ok {
		return caerrors.RecordNotFound.WithMsg("equity not found")
	}
	if e.IsLocked {
		return caerrors.EquityLocked
	}
	e.IsLocked = true
	return nil
}

func (s *fakeEquityStore) Unlock(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops = append(s.ops, "unlock")

	if e, ok := s.equities[id.String()]; ok {
		e.IsLocked = false
	}
	return nil
}

type fakeActionStore struct {
	mu      sync.Mutex
	actions map[string]*models.CorporateAction
	order   []string
}

func newFakeActionStore(actions ...*models.CorporateAction) *fakeActionStore {
	s := &fakeActionStore{actions: map[string]*models.CorporateAction{}}
	for _, a := range actions {
		cp := *a
		s.actions[a.ID] = &cp
		s.order = append(s.order, a.ID)
	}
	return s
}

func (s *fakeActionStore) WithTx(tx *gorm.DB) action.CorporateActionService { return s }

func (s *fakeActionStore) Get(id uuid.UUID) (*models.CorporateAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id.String()]
	if !ok {
		return nil, caerrors.RecordNotFound.WithMsg("corporate action not found")
	}
	cp := *a
	return &cp, nil
}

func (s *fakeActionStore) Create(a *models.CorporateAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV4()).String()
	}
	if a.Status == "" {
		a.Status = enum.ActionPending
	}
	cp := *a
	s.actions[a.ID] = &cp
	s.order = append(s.order, a.ID)
	return nil
}

func (s *fakeActionStore) Claim(id uuid.UUID, taskID uuid.UUID) (*models.CorporateAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id.String()]
	if !ok {
		return nil, caerrors.RecordNotFound.WithMsg("corporate action not found")
	}
	if !a.Claimable() {
		return nil, caerrors.RecordNotFound.WithMsg(
			"corporate action is not claimable (status = " + string(a.Status) + ")")
	}

	tid := taskID.String()
	a.Status = enum.ActionProcessing
	a.TaskID = &tid

	cp := *a
	return &cp, nil
}

func (s *fakeActionStore) MarkClosed(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id.String()]
	if !ok {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}
	a.Status = enum.ActionClosed
	return nil
}

func (s *fakeActionStore) MarkFailed(id uuid.UUID, aerr *models.ActionError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id.String()]
	if !ok {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}
	a.Status = enum.ActionFailed
	a.LastError = aerr.Raw()
	a.RetryCount++
	return nil
}

func (s *fakeActionStore) Reset(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id.String()]
	if !ok {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}
	a.Status = enum.ActionPending
	a.RetryCount = 0
	a.LastError = nil
	a.TaskID = nil
	return nil
}

func (s *fakeActionStore) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[id.String()]
	if !ok {
		return caerrors.RecordNotFound.WithMsg("corporate action not found")
	}
	if !a.Claimable() {
		return caerrors.InternalError.WithMsg("corporate action can no longer be cancelled")
	}
	a.Status = enum.ActionCancelled
	return nil
}

func (s *fakeActionStore) ListDue(asOf date.Date) ([]models.CorporateAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := []models.CorporateAction{}
	for _, id := range s.order {
		a := s.actions[id]
		if a.Status == enum.ActionPending && !a.ExecutionDate.After(asOf) {
			due = append(due, *a)
		}
	}
	return due, nil
}

func (s *fakeActionStore) ListRetryable() ([]models.CorporateAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.CorporateAction{}
	for _, id := range s.order {
		if a := s.actions[id]; a.Retryable() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeActionStore) ExpireStale(asOf date.Date) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n uint
	for _, a := range s.actions {
		if a.Expired(asOf) {
			a.Status = enum.ActionExpired
			n++
		}
	}
	return n, nil
}

func (s *fakeActionStore) ListClosedSince(equityID uuid.UUID, since date.Date) ([]models.CorporateAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.CorporateAction{}
	for _, id := range s.order {
		a := s.actions[id]
		if a.EquityID == equityID.String() &&
			a.Status == enum.ActionClosed &&
			!a.ExecutionDate.Before(since) {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.HistoryLogEntry
	order   []string
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{entries: map[string]*models.HistoryLogEntry{}}
}

func (s *fakeHistoryStore) WithTx(tx *gorm.DB) history.HistoryService { return s }

func (s *fakeHistoryStore) Append(entry *models.HistoryLogEntry) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.Must(uuid.NewV4()).String()
	}
	cp := *entry
	s.entries[entry.ID] = &cp
	s.order = append(s.order, entry.ID)
	return entry.IDAsUUID(), nil
}

func (s *fakeHistoryStore) Get(logID uuid.UUID) (*models.HistoryLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[logID.String()]
	if !ok {
		return nil, caerrors.LogNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeHistoryStore) Query(equityID uuid.UUID, from, to *date.Date) ([]models.HistoryLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.HistoryLogEntry{}
	for _, id := range s.order {
		e := s.entries[id]
		if e.EquityID != equityID.String() {
			continue
		}
		if from != nil && e.EffectiveDate.Before(*from) {
			continue
		}
		if to != nil && e.EffectiveDate.After(*to) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeHistoryStore) MarkRolledBack(logID uuid.UUID, by, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[logID.String()]
	if !ok {
		return caerrors.LogNotFound
	}
	if e.IsRolledBack {
		return caerrors.AlreadyRolledBack
	}

	now := time.Now()
	e.IsRolledBack = true
	e.RolledBackBy = &by
	e.RolledBackAt = &now
	e.RollbackReason = &reason
	return nil
}
