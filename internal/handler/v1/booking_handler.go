package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
	"github.com/healthcareplus/clinic-scheduler/internal/service"
)

type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type patientRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

type bookingRequest struct {
	Date      string         `json:"date" binding:"required"`
	StartTime string         `json:"start_time" binding:"required"`
	Type      string         `json:"type" binding:"required"`
	Patient   patientRequest `json:"patient" binding:"required"`
	Reason    string         `json:"reason"`
}

type bookingResponse struct {
	ID               string `json:"id"`
	ConfirmationCode string `json:"confirmation_code"`
	Status           string `json:"status"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Type             string `json:"type"`
	PatientName      string `json:"patient_name"`
	PatientEmail     string `json:"patient_email"`
	PatientPhone     string `json:"patient_phone"`
	Reason           string `json:"reason,omitempty"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req bookingRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &booking.BookCommand{
		Date:  req.Date,
		Start: req.StartTime,
		Type:  schedule.AppointmentType(req.Type),
		Patient: booking.PatientInfo{
			Name:  req.Patient.Name,
			Email: req.Patient.Email,
			Phone: req.Patient.Phone,
		},
		Reason: req.Reason,
	}

	a, err := h.bookings.Book(c.Request.Context(), cmd, c.ClientIP(), requestIDFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, toBookingResponse(a))
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.bookings.Get(c.Request.Context(), id, c.ClientIP(), requestIDFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toBookingResponse(a))
}

// CancelBooking handles DELETE /api/v1/bookings/:id. The record is kept
// for history; only its status changes.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.bookings.Cancel(c.Request.Context(), id, c.ClientIP(), requestIDFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, toBookingResponse(a))
}

func toBookingResponse(a *booking.Appointment) bookingResponse {
	resp := bookingResponse{
		ID:               a.ID.String(),
		ConfirmationCode: a.ConfirmationCode,
		Status:           string(a.Status),
		Date:             a.Date,
		StartTime:        a.StartClock(),
		EndTime:          a.EndClock(),
		Type:             string(a.Type),
		PatientName:      a.PatientName,
		PatientEmail:     a.PatientEmail,
		PatientPhone:     a.PatientPhone,
		Reason:           a.Reason,
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}
