package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcareplus/clinic-scheduler/internal/domain/booking"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
	"github.com/healthcareplus/clinic-scheduler/internal/service"
)

type AvailabilityHandler struct {
	avail          *service.AvailabilityService
	maxSuggestions int
}

func NewAvailabilityHandler(avail *service.AvailabilityService, maxSuggestions int) *AvailabilityHandler {
	return &AvailabilityHandler{avail: avail, maxSuggestions: maxSuggestions}
}

type slotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type availabilityResponse struct {
	Date           string         `json:"date"`
	DayOfWeek      string         `json:"day_of_week"`
	TotalSlots     int            `json:"total_slots"`
	AvailableCount int            `json:"available_count"`
	Slots          []slotResponse `json:"slots"`
}

// GetAvailability handles GET /api/v1/availability.
//
// Query parameters: date (YYYY-MM-DD, required), type (required),
// preference (morning|afternoon|evening), preferred_time (HH:MM),
// earliest_after (HH:MM). An empty slot list is a normal response; the
// conversational layer uses it to suggest alternative dates.
func (h *AvailabilityHandler) GetAvailability(c *gin.Context) {
	date := c.Query("date")
	apptType := c.Query("type")
	if date == "" || apptType == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "date and type query parameters are required"})
		return
	}

	pref, err := service.ParsePreference(c.Query("preference"), c.Query("preferred_time"), c.Query("earliest_after"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	day, err := h.avail.Availability(c.Request.Context(), date, schedule.AppointmentType(apptType))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ranked := service.Rank(day.Slots, pref, h.maxSuggestions)

	respondOK(c, availabilityResponse{
		Date:           day.Date,
		DayOfWeek:      day.DayOfWeek,
		TotalSlots:     day.TotalSlots,
		AvailableCount: day.AvailableCount,
		Slots:          toSlotResponses(ranked),
	})
}

func toSlotResponses(slots []booking.Slot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{StartTime: s.StartClock(), EndTime: s.EndClock()})
	}
	return out
}
