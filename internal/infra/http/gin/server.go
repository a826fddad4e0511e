package ginserver

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentme-reservations/internal/infra/config"
	"rentme-reservations/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Approve(c *gin.Context)
	Decline(c *gin.Context)
	Cancel(c *gin.Context)
	CancellationQuote(c *gin.Context)
	Complete(c *gin.Context)
	RenterBookings(c *gin.Context)
	OwnerBookings(c *gin.Context)
}

type AvailabilityHTTP interface {
	Check(c *gin.Context)
	Windows(c *gin.Context)
	Block(c *gin.Context)
	Unblock(c *gin.Context)
}

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	if obsMW.Caller == nil {
		obsMW.Caller = CallerID
	}
	router := gin.New()
	router.Use(obsMW.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(Identity())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		bookings := api.Group("/bookings")
		bookings.POST("", h.Booking.Create)
		bookings.GET("/:id", h.Booking.Get)
		bookings.POST("/:id/approve", h.Booking.Approve)
		bookings.POST("/:id/decline", h.Booking.Decline)
		bookings.POST("/:id/cancel", h.Booking.Cancel)
		bookings.GET("/:id/cancellation-quote", h.Booking.CancellationQuote)
		bookings.POST("/:id/complete", h.Booking.Complete)
		api.GET("/me/bookings", h.Booking.RenterBookings)
		api.GET("/owner/bookings", h.Booking.OwnerBookings)
	}
	if h.Availability != nil {
		properties := api.Group("/properties/:id")
		properties.GET("/availability", h.Availability.Check)
		properties.GET("/unavailability", h.Availability.Windows)
		properties.POST("/unavailability", h.Availability.Block)
		properties.DELETE("/unavailability/:windowId", h.Availability.Unblock)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		origins = []string{"*"}
	}
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", UserIDHeader, UserRolesHeader, obs.RequestIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
