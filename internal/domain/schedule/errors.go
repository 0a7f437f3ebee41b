package schedule

import "errors"

var (
	ErrUnknownAppointmentType = errors.New("unknown appointment type")
	ErrInvalidClock           = errors.New("time must be in HH:MM 24-hour format")
	ErrInvalidDate            = errors.New("date must be in YYYY-MM-DD format")
)
