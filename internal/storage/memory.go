package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthcareplus/clinic-scheduler/internal/domain"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
)

// MemoryLedger is a process-local Ledger used for local development and
// tests. A single mutex guards all dates; the commit path holds it across
// the overlap check and the append, which gives the same all-or-nothing
// guarantee the Postgres ledger gets from a transaction.
type MemoryLedger struct {
	mu        sync.RWMutex
	bufferMin int
	byDate    map[string][]*booking.Appointment
	byID      map[uuid.UUID]*booking.Appointment
}

func NewMemoryLedger(bufferMin int) *MemoryLedger {
	return &MemoryLedger{
		bufferMin: bufferMin,
		byDate:    make(map[string][]*booking.Appointment),
		byID:      make(map[uuid.UUID]*booking.Appointment),
	}
}

func (m *MemoryLedger) AppendIfNoOverlap(ctx context.Context, a *booking.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byDate[a.Date] {
		if existing.BlocksWindow(a.StartMin, a.EndMin, m.bufferMin) {
			return booking.ErrSlotTaken
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := cloneAppointment(a)
	m.byID[stored.ID] = stored
	m.byDate[a.Date] = append(m.byDate[a.Date], stored)
	sort.Slice(m.byDate[a.Date], func(i, j int) bool {
		return m.byDate[a.Date][i].StartMin < m.byDate[a.Date][j].StartMin
	})
	return nil
}

func (m *MemoryLedger) ListByDate(ctx context.Context, date string) ([]*booking.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.byDate[date]
	out := make([]*booking.Appointment, 0, len(rows))
	for _, a := range rows {
		out = append(out, cloneAppointment(a))
	}
	return out, nil
}

func (m *MemoryLedger) GetByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneAppointment(a), nil
}

func (m *MemoryLedger) MarkCancelled(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	if err := a.Cancel(); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now()
	return cloneAppointment(a), nil
}

// cloneAppointment keeps callers on snapshots; the ledger owns the records.
func cloneAppointment(a *booking.Appointment) *booking.Appointment {
	cp := *a
	if a.CancelledAt != nil {
		t := *a.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

// MemoryAuditLog collects audit entries in memory. Development-mode
// counterpart of the Postgres audit table.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (m *MemoryAuditLog) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a snapshot of everything logged so far.
func (m *MemoryAuditLog) Entries() []*domain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.AuditLog, len(m.entries))
	copy(out, m.entries)
	return out
}
