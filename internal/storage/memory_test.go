package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
)

func newAppointment(date string, startMin, endMin int) *booking.Appointment {
	return &booking.Appointment{
		Date:         date,
		StartMin:     startMin,
		EndMin:       endMin,
		Type:         schedule.TypeConsultation,
		Status:       booking.StatusConfirmed,
		PatientName:  "Asha Verma",
		PatientEmail: "asha@example.com",
		PatientPhone: "9876543210",
	}
}

func TestAppendAssignsIDAndSorts(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(5)

	late := newAppointment("2026-09-07", 900, 930)
	early := newAppointment("2026-09-07", 540, 570)
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, late))
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, early))
	assert.NotEqual(t, uuid.Nil, late.ID)

	rows, err := ledger.ListByDate(ctx, "2026-09-07")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 540, rows[0].StartMin)
	assert.Equal(t, 900, rows[1].StartMin)
}

func TestAppendRejectsBufferedOverlap(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(5)

	require.NoError(t, ledger.AppendIfNoOverlap(ctx, newAppointment("2026-09-07", 600, 630)))

	// 10:30-11:00 sits inside the 5-minute trailing buffer of 10:00-10:30.
	err := ledger.AppendIfNoOverlap(ctx, newAppointment("2026-09-07", 630, 660))
	assert.ErrorIs(t, err, booking.ErrSlotTaken)

	// 10:35 clears the buffer.
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, newAppointment("2026-09-07", 635, 665)))

	// Same window on another date never conflicts.
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, newAppointment("2026-09-08", 600, 630)))
}

func TestCancelledRowsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(5)

	a := newAppointment("2026-09-07", 600, 630)
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, a))

	_, err := ledger.MarkCancelled(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, ledger.AppendIfNoOverlap(ctx, newAppointment("2026-09-07", 600, 630)))

	rows, err := ledger.ListByDate(ctx, "2026-09-07")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "cancelled row is retained for history")
}

func TestMarkCancelledErrors(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(5)

	_, err := ledger.MarkCancelled(ctx, uuid.New())
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)

	a := newAppointment("2026-09-07", 600, 630)
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, a))
	_, err = ledger.MarkCancelled(ctx, a.ID)
	require.NoError(t, err)
	_, err = ledger.MarkCancelled(ctx, a.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyCancelled)
}

func TestListReturnsSnapshots(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(5)

	a := newAppointment("2026-09-07", 600, 630)
	require.NoError(t, ledger.AppendIfNoOverlap(ctx, a))

	rows, err := ledger.ListByDate(ctx, "2026-09-07")
	require.NoError(t, err)
	rows[0].Status = booking.StatusCancelled

	fresh, err := ledger.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, fresh.Status, "mutating a snapshot must not touch the ledger")
}
