package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healthcareplus/clinic-scheduler/internal/config"
	"github.com/healthcareplus/clinic-scheduler/pkg/metrics"
)

// NewRouter wires middleware and routes into a gin engine.
func NewRouter(
	cfg *config.Config,
	log *zap.Logger,
	collector *metrics.Collector,
	availability *AvailabilityHandler,
	bookings *BookingHandler,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(Metrics(collector))
	r.Use(CORS(cfg.CORS))
	r.Use(RateLimit(cfg.RateLimit))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   cfg.App.Version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")
	{
		api.GET("/availability", availability.GetAvailability)
		api.POST("/bookings", bookings.CreateBooking)
		api.GET("/bookings/:id", bookings.GetBooking)
		api.DELETE("/bookings/:id", bookings.CancelBooking)
	}

	return r
}
