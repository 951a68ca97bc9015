package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
	"github.com/Shivanand-hulikatti/event-rsvp/internal/repository"
)

// ErrEventNotLocked is returned when a reservation is written or deleted by a
// transaction that has not locked the reservation's event.
var ErrEventNotLocked = errors.New("memstore: event not locked by this transaction")

// MemStore is an in-memory stand-in for repository.Store. Transactions are
// serialised by one mutex and rolled back on error. Because that mutex alone
// would hide a missing event lock, reservation inserts and deletes also require
// the transaction to have called LockEvent for the reservation's event, the
// same contract the PostgreSQL row lock enforces. Real lock contention is only
// exercised by the repository integration tests.
type MemStore struct {
	mu    sync.Mutex
	state memState
}

type blockKey struct{ eventID, userID string }

type memState struct {
	events       map[string]model.Event
	reservations map[string]model.Reservation
	blocks       map[blockKey]model.BlockRecord
	archive      map[string]model.ArchiveEntry
	payments     map[string]model.Payment
	webhooks     map[string]string
}

type memTxKey struct{}

type memTx struct {
	owner  *MemStore
	locked map[string]struct{}
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{state: memState{
		events:       map[string]model.Event{},
		reservations: map[string]model.Reservation{},
		blocks:       map[blockKey]model.BlockRecord{},
		archive:      map[string]model.ArchiveEntry{},
		payments:     map[string]model.Payment{},
		webhooks:     map[string]string{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		events:       make(map[string]model.Event, len(s.events)),
		reservations: make(map[string]model.Reservation, len(s.reservations)),
		blocks:       make(map[blockKey]model.BlockRecord, len(s.blocks)),
		archive:      make(map[string]model.ArchiveEntry, len(s.archive)),
		payments:     make(map[string]model.Payment, len(s.payments)),
		webhooks:     make(map[string]string, len(s.webhooks)),
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.archive {
		c.archive[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.webhooks {
		c.webhooks[k] = v
	}
	return c
}

func (m *MemStore) tx(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	if tx == nil || tx.owner != m {
		return nil
	}
	return tx
}

func (m *MemStore) inTx(ctx context.Context) bool {
	return m.tx(ctx) != nil
}

func (m *MemStore) requireEventLock(ctx context.Context, eventID string) error {
	tx := m.tx(ctx)
	if tx == nil {
		return ErrEventNotLocked
	}
	if _, ok := tx.locked[eventID]; !ok {
		return ErrEventNotLocked
	}
	return nil
}

// with runs fn against the state, taking the lock unless ctx already holds it.
func (m *MemStore) with(ctx context.Context, fn func(s *memState) error) error {
	if m.inTx(ctx) {
		return fn(&m.state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&m.state)
}

// WithTx runs fn with the store locked. Nested calls reuse the outer transaction.
func (m *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	tx := &memTx{owner: m, locked: map[string]struct{}{}}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *MemStore) CreateEvent(ctx context.Context, e *model.Event) error {
	return m.with(ctx, func(s *memState) error {
		if _, ok := s.events[e.ID]; ok {
			return repository.ErrDuplicate
		}
		s.events[e.ID] = copyEvent(*e)
		return nil
	})
}

func (m *MemStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var out *model.Event
	err := m.with(ctx, func(s *memState) error {
		e, ok := s.events[id]
		if !ok {
			return model.ErrNotFound
		}
		c := copyEvent(e)
		out = &c
		return nil
	})
	return out, err
}

func (m *MemStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	if !m.inTx(ctx) {
		return nil, errors.New("lock event: no transaction in context")
	}
	e, err := m.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	m.tx(ctx).locked[id] = struct{}{}
	return e, nil
}

func (m *MemStore) DeleteEvent(ctx context.Context, id string) error {
	return m.with(ctx, func(s *memState) error {
		if _, ok := s.events[id]; !ok {
			return model.ErrNotFound
		}
		for _, r := range s.reservations {
			if r.EventID == id {
				return errors.New("delete event: reservations still reference it")
			}
		}
		for k := range s.blocks {
			if k.eventID == id {
				delete(s.blocks, k)
			}
		}
		delete(s.events, id)
		return nil
	})
}

func (m *MemStore) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if err := m.requireEventLock(ctx, r.EventID); err != nil {
		return err
	}
	return m.with(ctx, func(s *memState) error {
		if _, ok := s.events[r.EventID]; !ok {
			return errors.New("insert reservation: unknown event")
		}
		for _, other := range s.reservations {
			if other.EventID == r.EventID && other.UserID == r.UserID {
				return model.ErrAlreadyReserved
			}
		}
		s.reservations[r.ID] = copyReservation(*r)
		return nil
	})
}

func (m *MemStore) FindReservation(ctx context.Context, eventID, userID string) (*model.Reservation, error) {
	var out *model.Reservation
	err := m.with(ctx, func(s *memState) error {
		for _, r := range s.reservations {
			if r.EventID == eventID && r.UserID == userID {
				c := copyReservation(r)
				out = &c
				return nil
			}
		}
		return model.ErrNotFound
	})
	return out, err
}

func (m *MemStore) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	if !m.inTx(ctx) {
		return nil, errors.New("lock reservation: no transaction in context")
	}
	var out *model.Reservation
	err := m.with(ctx, func(s *memState) error {
		r, ok := s.reservations[id]
		if !ok {
			return model.ErrNotFound
		}
		c := copyReservation(r)
		out = &c
		return nil
	})
	return out, err
}

func (m *MemStore) CountReservations(ctx context.Context, eventID string) (int, error) {
	var n int
	err := m.with(ctx, func(s *memState) error {
		for _, r := range s.reservations {
			if r.EventID == eventID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *MemStore) ListReservations(ctx context.Context, eventID string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := m.with(ctx, func(s *memState) error {
		for _, r := range s.reservations {
			if r.EventID == eventID {
				out = append(out, copyReservation(r))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (m *MemStore) UpdateReservationPayment(ctx context.Context, r *model.Reservation) error {
	return m.with(ctx, func(s *memState) error {
		cur, ok := s.reservations[r.ID]
		if !ok {
			return model.ErrNotFound
		}
		cur.PaymentStatus = r.PaymentStatus
		cur.PaymentIntentID = copyString(r.PaymentIntentID)
		cur.AmountPaid = copyMoney(r.AmountPaid)
		s.reservations[r.ID] = cur
		return nil
	})
}

func (m *MemStore) DeleteReservation(ctx context.Context, id string) error {
	return m.with(ctx, func(s *memState) error {
		r, ok := s.reservations[id]
		if !ok {
			return model.ErrNotFound
		}
		if err := m.requireEventLock(ctx, r.EventID); err != nil {
			return err
		}
		for pid, p := range s.payments {
			if p.ReservationID == id {
				delete(s.payments, pid)
			}
		}
		delete(s.reservations, id)
		return nil
	})
}

func (m *MemStore) IsBlocked(ctx context.Context, eventID, userID string) (bool, error) {
	var blocked bool
	err := m.with(ctx, func(s *memState) error {
		_, blocked = s.blocks[blockKey{eventID, userID}]
		return nil
	})
	return blocked, err
}

func (m *MemStore) InsertBlock(ctx context.Context, b *model.BlockRecord) error {
	return m.with(ctx, func(s *memState) error {
		k := blockKey{b.EventID, b.UserID}
		if _, ok := s.blocks[k]; ok {
			return model.ErrAlreadyBlocked
		}
		s.blocks[k] = *b
		return nil
	})
}

func (m *MemStore) DeleteBlock(ctx context.Context, eventID, userID string) error {
	return m.with(ctx, func(s *memState) error {
		k := blockKey{eventID, userID}
		if _, ok := s.blocks[k]; !ok {
			return model.ErrNotFound
		}
		delete(s.blocks, k)
		return nil
	})
}

func (m *MemStore) ListBlocks(ctx context.Context, eventID string) ([]model.BlockRecord, error) {
	var out []model.BlockRecord
	err := m.with(ctx, func(s *memState) error {
		for k, b := range s.blocks {
			if k.eventID == eventID {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (m *MemStore) InsertArchiveEntry(ctx context.Context, a *model.ArchiveEntry) error {
	return m.with(ctx, func(s *memState) error {
		if _, ok := s.archive[a.ID]; ok {
			return repository.ErrDuplicate
		}
		s.archive[a.ID] = copyArchive(*a)
		return nil
	})
}

func (m *MemStore) GetArchiveEntry(ctx context.Context, id string) (*model.ArchiveEntry, error) {
	var out *model.ArchiveEntry
	err := m.with(ctx, func(s *memState) error {
		a, ok := s.archive[id]
		if !ok {
			return model.ErrNotFound
		}
		c := copyArchive(a)
		out = &c
		return nil
	})
	return out, err
}

func (m *MemStore) LockArchiveEntry(ctx context.Context, id string) (*model.ArchiveEntry, error) {
	if !m.inTx(ctx) {
		return nil, errors.New("lock archive entry: no transaction in context")
	}
	return m.GetArchiveEntry(ctx, id)
}

func (m *MemStore) UpdateArchiveRefund(ctx context.Context, a *model.ArchiveEntry) error {
	return m.with(ctx, func(s *memState) error {
		cur, ok := s.archive[a.ID]
		if !ok {
			return model.ErrNotFound
		}
		cur.RefundStatus = a.RefundStatus
		cur.RefundID = copyString(a.RefundID)
		cur.RefundedBy = copyString(a.RefundedBy)
		if a.RefundedAt != nil {
			t := *a.RefundedAt
			cur.RefundedAt = &t
		} else {
			cur.RefundedAt = nil
		}
		cur.RefundAttempts = a.RefundAttempts
		cur.RefundError = copyString(a.RefundError)
		s.archive[a.ID] = cur
		return nil
	})
}

func (m *MemStore) ListArchiveEntries(ctx context.Context, eventID string) ([]model.ArchiveEntry, error) {
	var out []model.ArchiveEntry
	err := m.with(ctx, func(s *memState) error {
		for _, a := range s.archive {
			if a.EventID == eventID {
				out = append(out, copyArchive(a))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CancelledAt.Equal(out[j].CancelledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CancelledAt.After(out[j].CancelledAt)
	})
	return out, err
}

func (m *MemStore) InsertPayment(ctx context.Context, p *model.Payment) error {
	return m.with(ctx, func(s *memState) error {
		for _, other := range s.payments {
			if other.PaymentIntentID == p.PaymentIntentID {
				return repository.ErrDuplicate
			}
		}
		if _, ok := s.reservations[p.ReservationID]; !ok {
			return errors.New("insert payment: unknown reservation")
		}
		s.payments[p.ID] = *p
		return nil
	})
}

func (m *MemStore) PaymentExists(ctx context.Context, paymentIntentID string) (bool, error) {
	var exists bool
	err := m.with(ctx, func(s *memState) error {
		for _, p := range s.payments {
			if p.PaymentIntentID == paymentIntentID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (m *MemStore) DeleteReservationPayments(ctx context.Context, reservationID string) (int64, error) {
	var n int64
	err := m.with(ctx, func(s *memState) error {
		for id, p := range s.payments {
			if p.ReservationID == reservationID {
				delete(s.payments, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (m *MemStore) ClaimWebhookEvent(ctx context.Context, id, eventType string) (bool, error) {
	var claimed bool
	err := m.with(ctx, func(s *memState) error {
		if _, ok := s.webhooks[id]; ok {
			return nil
		}
		s.webhooks[id] = eventType
		claimed = true
		return nil
	})
	return claimed, err
}

// Payments returns every settled payment, for assertions.
func (m *MemStore) Payments() []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Payment, 0, len(m.state.payments))
	for _, p := range m.state.payments {
		out = append(out, p)
	}
	return out
}

// ArchiveEntries returns every archive entry, for assertions.
func (m *MemStore) ArchiveEntries() []model.ArchiveEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ArchiveEntry, 0, len(m.state.archive))
	for _, a := range m.state.archive {
		out = append(out, copyArchive(a))
	}
	return out
}

func copyEvent(e model.Event) model.Event {
	if e.Capacity != nil {
		c := *e.Capacity
		e.Capacity = &c
	}
	return e
}

func copyReservation(r model.Reservation) model.Reservation {
	r.PaymentIntentID = copyString(r.PaymentIntentID)
	r.AmountPaid = copyMoney(r.AmountPaid)
	return r
}

func copyArchive(a model.ArchiveEntry) model.ArchiveEntry {
	a.RefundID = copyString(a.RefundID)
	a.RefundedBy = copyString(a.RefundedBy)
	a.RefundError = copyString(a.RefundError)
	if a.RefundedAt != nil {
		t := *a.RefundedAt
		a.RefundedAt = &t
	}
	return a
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyMoney(m *model.Money) *model.Money {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
