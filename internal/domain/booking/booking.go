package booking

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
)

// State transitions possibilities:
//
//	confirmed → cancelled (terminal)
//
// A confirmed appointment's window is immutable; a reschedule is modelled
// as cancel + new booking.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Appointment is a committed booking occupying a time window on one date.
// Owned by the Ledger; everything else works on snapshots.
type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// Clinic-local calendar date, YYYY-MM-DD. Times are minutes since
	// midnight on that date; the clinic runs in a single timezone.
	Date     string                   `gorm:"column:date;type:varchar(10);not null;index:idx_appointments_date_start,priority:1"`
	StartMin int                      `gorm:"column:start_min;not null;index:idx_appointments_date_start,priority:2"`
	EndMin   int                      `gorm:"column:end_min;not null"`
	Type     schedule.AppointmentType `gorm:"column:type;type:varchar(30);not null"`
	Status   Status                   `gorm:"column:status;type:varchar(20);not null;default:'confirmed';index"`

	PatientName  string `gorm:"column:patient_name;type:varchar(100);not null"`
	PatientEmail string `gorm:"column:patient_email;type:varchar(255);not null"`
	PatientPhone string `gorm:"column:patient_phone;type:varchar(30);not null"`
	Reason       string `gorm:"column:reason;type:text"`

	ConfirmationCode string     `gorm:"column:confirmation_code;type:varchar(10);not null"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

func (a *Appointment) StartClock() string {
	return schedule.FormatClock(a.StartMin)
}

func (a *Appointment) EndClock() string {
	return schedule.FormatClock(a.EndMin)
}

// Window returns the appointment's occupied interval.
func (a *Appointment) Window() schedule.Window {
	return schedule.Window{StartMin: a.StartMin, EndMin: a.EndMin}
}

// BlocksWindow reports whether this appointment makes [startMin, endMin)
// unbookable given the buffer. A cancelled appointment never blocks; the
// buffer expands the existing appointment on both sides, not the candidate.
func (a *Appointment) BlocksWindow(startMin, endMin, bufferMin int) bool {
	if a.Status != StatusConfirmed {
		return false
	}
	padded := schedule.Window{StartMin: a.StartMin - bufferMin, EndMin: a.EndMin + bufferMin}
	return padded.Overlaps(schedule.Window{StartMin: startMin, EndMin: endMin})
}

// Cancel moves the appointment to its terminal state.
func (a *Appointment) Cancel() error {
	if a.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	now := time.Now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	return nil
}

// Slot is a candidate, uncommitted time window. Value type with no
// identity; availability produces them, booking promotes exactly one.
type Slot struct {
	Date     string
	StartMin int
	EndMin   int
	Type     schedule.AppointmentType
}

func (s Slot) StartClock() string {
	return schedule.FormatClock(s.StartMin)
}

func (s Slot) EndClock() string {
	return schedule.FormatClock(s.EndMin)
}

// Contains reports whether [startMin, endMin) lies inside the slot.
func (s Slot) Contains(startMin, endMin int) bool {
	return s.StartMin <= startMin && endMin <= s.EndMin
}

// PatientInfo identifies who a booking is for.
type PatientInfo struct {
	Name  string
	Email string
	Phone string
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate returns the names of malformed fields; empty means valid.
func (p PatientInfo) Validate() []string {
	var fields []string
	if len(strings.TrimSpace(p.Name)) < 2 {
		fields = append(fields, "patient.name must be at least 2 characters")
	}
	if !emailPattern.MatchString(p.Email) {
		fields = append(fields, "patient.email must be a valid email address")
	}
	digits := 0
	for _, c := range p.Phone {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	if digits < 10 {
		fields = append(fields, "patient.phone must have at least 10 digits")
	}
	return fields
}

// BookCommand carries a booking request into the Booking Manager.
// Duration is never supplied by the caller; it comes from the type.
type BookCommand struct {
	Date    string
	Start   string // "HH:MM", 24-hour, clinic-local
	Type    schedule.AppointmentType
	Patient PatientInfo
	Reason  string
}
