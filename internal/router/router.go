package router

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/neuroshield/scan-api/internal/handler"
	authHandler "github.com/neuroshield/scan-api/internal/handler/auth"
	dashboardHandler "github.com/neuroshield/scan-api/internal/handler/dashboard"
	patientHandler "github.com/neuroshield/scan-api/internal/handler/patient"
	scanHandler "github.com/neuroshield/scan-api/internal/handler/scan"
	"github.com/neuroshield/scan-api/internal/middleware"
	"github.com/neuroshield/scan-api/internal/model"
)

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	MetricsPrefix  string
}

type Router struct {
	engine     *gin.Engine
	auth       *middleware.AuthMiddleware
	authH      *authHandler.Handler
	patientH   *patientHandler.Handler
	scanH      *scanHandler.Handler
	dashboardH *dashboardHandler.Handler
	h          *handler.Handler
	metrics    *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH *authHandler.Handler,
	patientH *patientHandler.Handler,
	scanH *scanHandler.Handler,
	dashboardH *dashboardHandler.Handler,
	h *handler.Handler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	r := &Router{
		engine:     engine,
		auth:       auth,
		authH:      authH,
		patientH:   patientH,
		scanH:      scanH,
		dashboardH: dashboardH,
		h:          h,
		metrics:    initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
	)

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	engine.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimitRPS,
		Burst: config.RateLimitBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)
	r.setupPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
		health.GET("/metrics", r.h.MetricsHandler)
	}
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	r.authH.RegisterRoutes(rg)
}

// setupProtectedRoutes splits the API by role. Every group below already
// passed token verification; RequireRole narrows it further.
func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("")
	admin.Use(r.auth.RequireRole(model.RoleAdmin))
	r.authH.RegisterAdminRoutes(admin)
	r.patientH.RegisterAdminRoutes(admin)

	doctor := rg.Group("")
	doctor.Use(r.auth.RequireRole(model.RoleDoctor))
	r.patientH.RegisterDoctorRoutes(doctor)
	r.scanH.RegisterRoutes(doctor)
	r.dashboardH.RegisterDoctorRoutes(doctor)

	patient := rg.Group("")
	patient.Use(r.auth.RequireRole(model.RolePatient))
	r.dashboardH.RegisterPatientRoutes(patient)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
