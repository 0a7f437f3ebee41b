package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/healthcareplus/clinic-scheduler/internal/domain"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/pkg/metrics"
)

// GormLedger is the Postgres-backed Ledger. The commit path runs inside a
// transaction holding a per-date advisory lock, so the overlap check and
// the insert are one indivisible unit per date across every replica.
type GormLedger struct {
	db        *gorm.DB
	bufferMin int
	collector *metrics.Collector
}

func NewGormLedger(db *gorm.DB, bufferMin int, collector *metrics.Collector) *GormLedger {
	return &GormLedger{db: db, bufferMin: bufferMin, collector: collector}
}

func (g *GormLedger) AppendIfNoOverlap(ctx context.Context, a *booking.Appointment) error {
	defer g.observe("insert", "appointments", time.Now())

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize the date before scanning. A FOR UPDATE scan locks
		// nothing when the date has no rows yet, so without this two
		// transactions could both pass the check and both insert.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", a.Date).Error; err != nil {
			return fmt.Errorf("locking date %s: %w", a.Date, err)
		}

		var existing []*booking.Appointment
		err := tx.Where("date = ? AND status = ?", a.Date, booking.StatusConfirmed).
			Find(&existing).Error
		if err != nil {
			return fmt.Errorf("reading appointments for %s: %w", a.Date, err)
		}

		for _, row := range existing {
			if row.BlocksWindow(a.StartMin, a.EndMin, g.bufferMin) {
				return booking.ErrSlotTaken
			}
		}

		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("inserting appointment: %w", err)
		}
		return nil
	})
}

func (g *GormLedger) ListByDate(ctx context.Context, date string) ([]*booking.Appointment, error) {
	defer g.observe("select", "appointments", time.Now())

	var rows []*booking.Appointment
	err := g.db.WithContext(ctx).
		Where("date = ?", date).
		Order("start_min ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments for %s: %w", date, err)
	}
	return rows, nil
}

func (g *GormLedger) GetByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	defer g.observe("select", "appointments", time.Now())

	var a booking.Appointment
	err := g.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading appointment %s: %w", id, err)
	}
	return &a, nil
}

func (g *GormLedger) MarkCancelled(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	defer g.observe("update", "appointments", time.Now())

	var a booking.Appointment
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&a, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("loading appointment %s: %w", id, err)
		}

		if err := a.Cancel(); err != nil {
			return err
		}
		return tx.Model(&a).
			Select("status", "cancelled_at").
			Updates(map[string]any{"status": a.Status, "cancelled_at": a.CancelledAt}).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (g *GormLedger) observe(operation, table string, start time.Time) {
	if g.collector != nil {
		g.collector.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// GormAuditLog persists audit entries to the audit schema.
type GormAuditLog struct {
	db *gorm.DB
}

func NewGormAuditLog(db *gorm.DB) *GormAuditLog {
	return &GormAuditLog{db: db}
}

func (g *GormAuditLog) Create(ctx context.Context, entry *domain.AuditLog) error {
	return g.db.WithContext(ctx).Create(entry).Error
}
