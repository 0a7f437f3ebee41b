package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthcareplus/clinic-scheduler/internal/config"
	"github.com/healthcareplus/clinic-scheduler/internal/domain/schedule"
	"github.com/healthcareplus/clinic-scheduler/internal/service"
	"github.com/healthcareplus/clinic-scheduler/internal/storage"
	"github.com/healthcareplus/clinic-scheduler/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Prometheus collectors register globally, so the whole test binary
// shares one instance.
var testCollector = metrics.NewCollector("clinic_scheduler_handler_test")

const testScheduleJSON = `{
  "working_hours": {
    "monday":    {"open": "09:00", "close": "18:00", "breaks": [{"start": "13:00", "end": "14:00"}]},
    "tuesday":   {"open": "09:00", "close": "18:00", "breaks": [{"start": "13:00", "end": "14:00"}]},
    "wednesday": {"open": "09:00", "close": "18:00", "breaks": [{"start": "13:00", "end": "14:00"}]},
    "thursday":  {"open": "09:00", "close": "18:00", "breaks": [{"start": "13:00", "end": "14:00"}]},
    "friday":    {"open": "09:00", "close": "18:00", "breaks": [{"start": "13:00", "end": "14:00"}]},
    "saturday":  {"open": "09:00", "close": "13:00", "breaks": []}
  },
  "appointment_types": {
    "consultation": {"duration_minutes": 30},
    "followup":     {"duration_minutes": 15},
    "physical":     {"duration_minutes": 45},
    "specialist":   {"duration_minutes": 60}
  },
  "buffer_minutes": 5
}`

// nextWeekday returns the first date at least a week out that falls on the
// given weekday, so requests are never rejected as being in the past.
func nextWeekday(day time.Weekday) string {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "clinic-scheduler", Environment: "test", Version: "test"},
		Clinic: config.ClinicConfig{
			Timezone:       "UTC",
			MaxSuggestions: 5,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			MaxAge:         time.Minute,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()

	sched, err := schedule.Parse([]byte(testScheduleJSON), cfg.Clinic.Timezone)
	require.NoError(t, err)

	log := zap.NewNop()
	ledger := storage.NewMemoryLedger(sched.BufferMinutes())
	auditSvc := service.NewAuditService(storage.NewMemoryAuditLog(), log, testCollector)
	t.Cleanup(auditSvc.Shutdown)

	avail := service.NewAvailabilityService(sched, ledger, log, testCollector)
	bookings := service.NewBookingService(sched, ledger, avail, auditSvc, log, testCollector)

	return NewRouter(cfg, log, testCollector,
		NewAvailabilityHandler(avail, cfg.Clinic.MaxSuggestions),
		NewBookingHandler(bookings),
	)
}

func perform(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func validBookingBody(date string) map[string]any {
	return map[string]any{
		"date":       date,
		"start_time": "09:00",
		"type":       "consultation",
		"patient": map[string]any{
			"name":  "Priya Sharma",
			"email": "priya.sharma@example.com",
			"phone": "+91 98765 43210",
		},
		"reason": "persistent headache",
	}
}

func TestHealthz(t *testing.T) {
	r := newTestServer(t, testConfig())

	w := perform(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGetAvailability(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	w := perform(r, http.MethodGet, "/api/v1/availability?date="+monday+"&type=consultation", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	day := decodeData[availabilityResponse](t, w)
	assert.Equal(t, monday, day.Date)
	assert.Equal(t, "Monday", day.DayOfWeek)
	assert.Equal(t, 14, day.TotalSlots)
	assert.Equal(t, 14, day.AvailableCount)
	require.Len(t, day.Slots, 5, "slot list is capped at the suggestion limit")
	assert.Equal(t, "09:00", day.Slots[0].StartTime)
	assert.Equal(t, "09:30", day.Slots[0].EndTime)
}

func TestGetAvailabilityWithPreference(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	w := perform(r, http.MethodGet, "/api/v1/availability?date="+monday+"&type=consultation&preference=evening", nil)
	require.Equal(t, http.StatusOK, w.Code)
	day := decodeData[availabilityResponse](t, w)
	require.NotEmpty(t, day.Slots)
	assert.Equal(t, "17:30", day.Slots[0].StartTime)

	w = perform(r, http.MethodGet, "/api/v1/availability?date="+monday+"&type=consultation&preferred_time=13:00", nil)
	require.Equal(t, http.StatusOK, w.Code)
	day = decodeData[availabilityResponse](t, w)
	require.NotEmpty(t, day.Slots)
	assert.Equal(t, "12:30", day.Slots[0].StartTime)
}

func TestGetAvailabilityClosedDay(t *testing.T) {
	r := newTestServer(t, testConfig())
	sunday := nextWeekday(time.Sunday)

	w := perform(r, http.MethodGet, "/api/v1/availability?date="+sunday+"&type=consultation", nil)
	require.Equal(t, http.StatusOK, w.Code, "a closed day is an empty result, not an error")

	day := decodeData[availabilityResponse](t, w)
	assert.Zero(t, day.TotalSlots)
	assert.Empty(t, day.Slots)
}

func TestGetAvailabilityRejectsBadInput(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	tests := []struct {
		name string
		path string
	}{
		{"missing params", "/api/v1/availability"},
		{"missing type", "/api/v1/availability?date=" + monday},
		{"unknown type", "/api/v1/availability?date=" + monday + "&type=surgery"},
		{"malformed date", "/api/v1/availability?date=next-monday&type=consultation"},
		{"past date", "/api/v1/availability?date=2020-01-06&type=consultation"},
		{"unknown preference", "/api/v1/availability?date=" + monday + "&type=consultation&preference=midnight"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := perform(r, http.MethodGet, tc.path, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateBooking(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	w := perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(monday))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	b := decodeData[bookingResponse](t, w)
	assert.NotEmpty(t, b.ID)
	assert.Len(t, b.ConfirmationCode, 6)
	assert.Equal(t, "confirmed", b.Status)
	assert.Equal(t, monday, b.Date)
	assert.Equal(t, "09:00", b.StartTime)
	assert.Equal(t, "09:30", b.EndTime)
	assert.Equal(t, "Priya Sharma", b.PatientName)

	// The booked window disappears from availability. The 09:35 slot
	// survives: it starts exactly where the buffer ends.
	w = perform(r, http.MethodGet, "/api/v1/availability?date="+monday+"&type=consultation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	day := decodeData[availabilityResponse](t, w)
	assert.Equal(t, 14, day.TotalSlots)
	assert.Equal(t, 13, day.AvailableCount)
	require.NotEmpty(t, day.Slots)
	assert.Equal(t, "09:35", day.Slots[0].StartTime)
}

func TestCreateBookingConflict(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	w := perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(monday))
	require.Equal(t, http.StatusCreated, w.Code)

	w = perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(monday))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SLOT_TAKEN", resp.Code)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	t.Run("missing required fields", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/api/v1/bookings", map[string]any{"date": monday})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid patient details", func(t *testing.T) {
		body := validBookingBody(monday)
		body["patient"] = map[string]any{
			"name":  "X",
			"email": "not-an-email",
			"phone": "12",
		}
		w := perform(r, http.MethodPost, "/api/v1/bookings", body)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp ValidationErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Fields, 3)
	})

	t.Run("sunday is outside working hours", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(nextWeekday(time.Sunday)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetBookingByID(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	created := decodeData[bookingResponse](t, perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(monday)))

	w := perform(r, http.MethodGet, "/api/v1/bookings/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[bookingResponse](t, w)
	assert.Equal(t, created.ConfirmationCode, got.ConfirmationCode)

	w = perform(r, http.MethodGet, "/api/v1/bookings/0b38b255-2aa3-4e0b-b07a-bd04138633ce", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodGet, "/api/v1/bookings/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelBooking(t *testing.T) {
	r := newTestServer(t, testConfig())
	monday := nextWeekday(time.Monday)

	created := decodeData[bookingResponse](t, perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(monday)))

	w := perform(r, http.MethodDelete, "/api/v1/bookings/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeData[bookingResponse](t, w)
	assert.Equal(t, "cancelled", got.Status)
	assert.NotEmpty(t, got.CancelledAt)

	w = perform(r, http.MethodDelete, "/api/v1/bookings/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The freed window is bookable again.
	w = perform(r, http.MethodPost, "/api/v1/bookings", validBookingBody(monday))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	r := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-me-123", w.Header().Get("X-Request-ID"))

	w = perform(r, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	r := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2}
	r := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, perform(r, http.MethodGet, "/healthz", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestServer(t, testConfig())

	// Generate some traffic first so counters exist.
	perform(r, http.MethodGet, "/healthz", nil)

	w := perform(r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinic_scheduler_handler_test_http_requests_total")
}
