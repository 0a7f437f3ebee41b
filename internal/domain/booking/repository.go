package booking

import (
	"context"

	"github.com/google/uuid"
)

// Ledger is the authoritative store of appointment records. It is the only
// mutable shared state in the scheduling core; implementations must make
// AppendIfNoOverlap atomic so two concurrent bookings on the same date can
// never both commit overlapping windows.
type Ledger interface {
	// AppendIfNoOverlap persists the appointment unless its buffered window
	// intersects an existing confirmed appointment on the same date, in
	// which case it returns ErrSlotTaken and writes nothing.
	AppendIfNoOverlap(ctx context.Context, a *Appointment) error

	// ListByDate returns every appointment on the date, any status,
	// ascending by start time. The result is a snapshot.
	ListByDate(ctx context.Context, date string) ([]*Appointment, error)

	// GetByID returns the appointment or ErrBookingNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// MarkCancelled flips the appointment to cancelled and returns the
	// updated record. ErrBookingNotFound if absent, ErrAlreadyCancelled if
	// it was cancelled before. The row is retained for audit history.
	MarkCancelled(ctx context.Context, id uuid.UUID) (*Appointment, error)
}
