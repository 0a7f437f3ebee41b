package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
	"github.com/healthcareplus/clinic-scheduler/pkg/metrics"
)

var schedulingTracer = otel.Tracer("clinic.internal.scheduling")

// AvailabilityService computes bookable slots for a date by subtracting the
// ledger (plus buffer) from the working-hours template. Pure read path: it
// never mutates the ledger and may run fully concurrently.
type AvailabilityService struct {
	sched     *schedule.Schedule
	ledger    booking.Ledger
	log       *zap.Logger
	collector *metrics.Collector

	// now is swappable in tests.
	now func() time.Time
}

func NewAvailabilityService(
	sched *schedule.Schedule,
	ledger booking.Ledger,
	log *zap.Logger,
	collector *metrics.Collector,
) *AvailabilityService {
	return &AvailabilityService{
		sched:     sched,
		ledger:    ledger,
		log:       log,
		collector: collector,
		now:       time.Now,
	}
}

// DayAvailability summarizes one date for the calling layer: how many grid
// positions the day has and which of them are free.
type DayAvailability struct {
	Date           string
	DayOfWeek      string
	TotalSlots     int
	AvailableCount int
	Slots          []booking.Slot
}

// ComputeSlots returns the free slots for a date and appointment type in
// ascending start order. A closed day (non-working weekday, holiday, or
// blocked date) yields an empty slice with no error.
func (s *AvailabilityService) ComputeSlots(ctx context.Context, date string, t schedule.AppointmentType) ([]booking.Slot, error) {
	day, err := s.Availability(ctx, date, t)
	if err != nil {
		return nil, err
	}
	return day.Slots, nil
}

// Availability is ComputeSlots plus the day summary the HTTP layer surfaces.
func (s *AvailabilityService) Availability(ctx context.Context, date string, t schedule.AppointmentType) (*DayAvailability, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.availability")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.date", date),
		attribute.String("clinic.appointment_type", string(t)),
	)

	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %q", schedule.ErrUnknownAppointmentType, t)
	}

	loc := s.sched.Location()
	dateObj, err := schedule.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}

	now := s.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	if dateObj.Before(today) {
		return nil, booking.ErrDateInPast
	}

	result := &DayAvailability{
		Date:      date,
		DayOfWeek: dateObj.Weekday().String(),
		Slots:     []booking.Slot{},
	}

	day, open := s.sched.DayFor(dateObj)
	if !open {
		// Closed day: emptiness is a valid result, not a failure.
		return result, nil
	}

	duration, err := s.sched.Duration(t)
	if err != nil {
		return nil, err
	}
	durMin := int(duration.Minutes())
	buffer := s.sched.BufferMinutes()

	// For same-day queries, slots that already started are gone.
	cutoffMin := -1
	if dateObj.Equal(today) {
		cutoffMin = now.Hour()*60 + now.Minute()
	}

	existing, err := s.ledger.ListByDate(ctx, date)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading ledger for %s: %w", date, err)
	}

	// Walk each bookable segment on a fixed grid of duration+buffer. The
	// close of a segment is a hard boundary: the last slot may end exactly
	// on it with no trailing buffer.
	for _, seg := range day.Segments() {
		for cur := seg.StartMin; cur+durMin <= seg.EndMin; cur += durMin + buffer {
			result.TotalSlots++
			if cur <= cutoffMin {
				continue
			}
			if blockedByExisting(existing, cur, cur+durMin, buffer) {
				continue
			}
			result.Slots = append(result.Slots, booking.Slot{
				Date:     date,
				StartMin: cur,
				EndMin:   cur + durMin,
				Type:     t,
			})
		}
	}
	result.AvailableCount = len(result.Slots)

	if s.collector != nil {
		s.collector.AvailabilityQueriesTotal.Inc()
		s.collector.SlotsReturned.Observe(float64(result.AvailableCount))
	}
	s.log.Debug("availability computed",
		zap.String("date", date),
		zap.String("type", string(t)),
		zap.Int("total", result.TotalSlots),
		zap.Int("available", result.AvailableCount),
	)

	return result, nil
}

func blockedByExisting(existing []*booking.Appointment, startMin, endMin, buffer int) bool {
	for _, a := range existing {
		if a.BlocksWindow(startMin, endMin, buffer) {
			return true
		}
	}
	return false
}
