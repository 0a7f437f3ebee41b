package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/healthcareplus/clinic-scheduler/internal/domain"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
	"github.com/healthcareplus/clinic-scheduler/pkg/metrics"
)

// BookingService validates booking requests against live availability and
// commits them to the ledger. The write path is serialized per date: the
// re-validation and the append happen under the date's lock, so a losing
// concurrent request observes the winner's commit and gets ErrSlotTaken.
type BookingService struct {
	sched     *schedule.Schedule
	ledger    booking.Ledger
	avail     *AvailabilityService
	auditSvc  *AuditService
	log       *zap.Logger
	collector *metrics.Collector
	locks     dateLocks

	now func() time.Time
}

func NewBookingService(
	sched *schedule.Schedule,
	ledger booking.Ledger,
	avail *AvailabilityService,
	auditSvc *AuditService,
	log *zap.Logger,
	collector *metrics.Collector,
) *BookingService {
	return &BookingService{
		sched:     sched,
		ledger:    ledger,
		avail:     avail,
		auditSvc:  auditSvc,
		log:       log,
		collector: collector,
		locks:     dateLocks{byDate: make(map[string]*sync.Mutex)},
		now:       time.Now,
	}
}

// Book validates and commits a booking request. Validation short-circuits
// on the first failure, in order: patient info, appointment type, date and
// start-time shape, past check, working hours, then live availability.
func (s *BookingService) Book(ctx context.Context, cmd *booking.BookCommand, ip, requestID string) (*booking.Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.date", cmd.Date),
		attribute.String("clinic.appointment_type", string(cmd.Type)),
	)

	if fields := cmd.Patient.Validate(); len(fields) > 0 {
		s.countBooking(metrics.OutcomeValidation)
		return nil, &ValidationError{Fields: fields}
	}
	if !cmd.Type.IsValid() {
		s.countBooking(metrics.OutcomeValidation)
		return nil, fmt.Errorf("%w: %q", schedule.ErrUnknownAppointmentType, cmd.Type)
	}

	loc := s.sched.Location()
	dateObj, err := schedule.ParseDate(cmd.Date, loc)
	if err != nil {
		s.countBooking(metrics.OutcomeValidation)
		return nil, err
	}
	startMin, err := schedule.ParseClock(cmd.Start)
	if err != nil {
		s.countBooking(metrics.OutcomeValidation)
		return nil, err
	}

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if dateObj.Before(today) {
		s.countBooking(metrics.OutcomeValidation)
		return nil, booking.ErrDateInPast
	}
	if dateObj.Equal(today) && startMin <= now.Hour()*60+now.Minute() {
		s.countBooking(metrics.OutcomeValidation)
		return nil, booking.ErrDateInPast
	}

	duration, err := s.sched.Duration(cmd.Type)
	if err != nil {
		s.countBooking(metrics.OutcomeValidation)
		return nil, err
	}
	endMin := startMin + int(duration.Minutes())

	day, open := s.sched.DayFor(dateObj)
	if !open || !day.Contains(startMin, endMin) {
		s.countBooking(metrics.OutcomeValidation)
		return nil, fmt.Errorf("%w: %s %s", booking.ErrOutsideWorkingHours, cmd.Date, cmd.Start)
	}

	// Per-date exclusive section: re-derive availability and append as one
	// indivisible unit. Reads on other dates proceed untouched.
	lock := s.locks.forDate(cmd.Date, today.Format(schedule.DateLayout))
	lock.Lock()
	defer lock.Unlock()

	slots, err := s.avail.ComputeSlots(ctx, cmd.Date, cmd.Type)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("re-checking availability: %w", err)
	}
	if !containedInAny(slots, startMin, endMin) {
		s.countBooking(metrics.OutcomeConflict)
		return nil, booking.ErrSlotTaken
	}

	a := &booking.Appointment{
		ID:               uuid.New(),
		Date:             cmd.Date,
		StartMin:         startMin,
		EndMin:           endMin,
		Type:             cmd.Type,
		Status:           booking.StatusConfirmed,
		PatientName:      cmd.Patient.Name,
		PatientEmail:     cmd.Patient.Email,
		PatientPhone:     cmd.Patient.Phone,
		Reason:           cmd.Reason,
		ConfirmationCode: newConfirmationCode(),
	}

	if err := s.ledger.AppendIfNoOverlap(ctx, a); err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			s.countBooking(metrics.OutcomeConflict)
			return nil, err
		}
		span.RecordError(err)
		s.countBooking(metrics.OutcomeError)
		s.log.Error("failed to commit booking", zap.Error(err))
		return nil, fmt.Errorf("committing booking: %w", err)
	}

	s.countBooking(metrics.OutcomeConfirmed)
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       domain.ActionCreate,
		ResourceType: "booking",
		ResourceID:   a.ID.String(),
		IPAddress:    ip,
		RequestID:    requestID,
	})
	s.log.Info("booking confirmed",
		zap.String("booking_id", a.ID.String()),
		zap.String("date", a.Date),
		zap.String("start", a.StartClock()),
		zap.String("type", string(a.Type)),
	)

	return a, nil
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, id uuid.UUID, ip, requestID string) (*booking.Appointment, error) {
	a, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       domain.ActionRead,
		ResourceType: "booking",
		ResourceID:   id.String(),
		IPAddress:    ip,
		RequestID:    requestID,
	})
	return a, nil
}

// Cancel moves a booking to its terminal state. The record stays in the
// ledger for history but no longer blocks availability.
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, ip, requestID string) (*booking.Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.booking_id", id.String()))

	a, err := s.ledger.MarkCancelled(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.CancellationsTotal.Inc()
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		Action:       domain.ActionCancel,
		ResourceType: "booking",
		ResourceID:   id.String(),
		IPAddress:    ip,
		RequestID:    requestID,
		Changes:      `{"status":"cancelled"}`,
	})
	s.log.Info("booking cancelled",
		zap.String("booking_id", id.String()),
		zap.String("date", a.Date),
	)

	return a, nil
}

func (s *BookingService) countBooking(outcome string) {
	if s.collector != nil {
		s.collector.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}

func containedInAny(slots []booking.Slot, startMin, endMin int) bool {
	for _, slot := range slots {
		if slot.Contains(startMin, endMin) {
			return true
		}
	}
	return false
}

// dateLocks hands out one mutex per calendar date so bookings on different
// dates never contend.
type dateLocks struct {
	mu     sync.Mutex
	byDate map[string]*sync.Mutex
}

const dateLockPruneThreshold = 64

// forDate returns the mutex for date, pruning entries for dates before
// today once the map grows past the threshold. Past dates are rejected
// before any lock is requested, so a pruned mutex cannot be handed out
// again while held.
func (d *dateLocks) forDate(date, today string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.byDate) > dateLockPruneThreshold {
		for k := range d.byDate {
			if k < today {
				delete(d.byDate, k)
			}
		}
	}

	if l, ok := d.byDate[date]; ok {
		return l
	}
	l := &sync.Mutex{}
	d.byDate[date] = l
	return l
}

const confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newConfirmationCode returns a 6-character code the patient can quote on
// the phone. Not a secret, just unlikely to collide within a day.
func newConfirmationCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = confirmationAlphabet[int(b)%len(confirmationAlphabet)]
	}
	return string(buf)
}
