package booking

import "errors"

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrSlotTaken           = errors.New("requested time slot is no longer available")
	ErrAlreadyCancelled    = errors.New("booking is already cancelled")
	ErrDateInPast          = errors.New("cannot book appointments in the past")
	ErrOutsideWorkingHours = errors.New("requested time is outside working hours")
)
