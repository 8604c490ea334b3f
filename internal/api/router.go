package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/powerbill/electricity-records/docs"
	"github.com/powerbill/electricity-records/internal/api/handler"
	"github.com/powerbill/electricity-records/internal/api/middleware"
	"github.com/powerbill/electricity-records/internal/core/domain"
	"github.com/powerbill/electricity-records/internal/core/ports"
	"github.com/powerbill/electricity-records/internal/infrastructure/storage"
	"github.com/powerbill/electricity-records/pkg/logger"
)

// multipart overhead on top of the bill image limit
const bodyLimitSlack = 1 << 20

// RouterConfig carries the HTTP settings NewRouter needs.
type RouterConfig struct {
	JWTSecret      string
	CORSOrigins    []string
	AuthRateLimit  float64 // requests per second per client IP on register/login
	UploadDir      string
	UploadMaxBytes int64
}

// RouterDeps are the services and probes behind the routes.
type RouterDeps struct {
	Auth         ports.AuthService
	Records      ports.RecordService
	HealthChecks map[string]handler.DependencyCheck
	// Registerer and Gatherer default to the prometheus globals.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig, deps RouterDeps, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "Idempotency-Key"},
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit(cfg.UploadMaxBytes)))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "electricity",
		Subsystem:  "http",
		Registerer: deps.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	recordHandler := handler.NewRecordHandler(deps.Records)
	adminHandler := handler.NewAdminHandler(deps.Records, deps.Auth)
	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	authMiddleware := middleware.Auth(cfg.JWTSecret)

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if cfg.UploadDir != "" {
		e.Static(strings.TrimSuffix(storage.PublicPrefix, "/"), cfg.UploadDir)
	}

	apiGroup := e.Group("/api")

	// --- Health probes (no auth required) ---
	apiGroup.GET("/health", healthHandler.Liveness)
	apiGroup.GET("/health/ready", healthHandler.Readiness)

	// --- Auth routes ---
	authGroup := apiGroup.Group("/auth")
	limiter := authRateLimiter(cfg.AuthRateLimit)
	authGroup.POST("/register", authHandler.Register, limiter)
	authGroup.POST("/login", authHandler.Login, limiter)
	authGroup.GET("/me", authHandler.Me, authMiddleware)

	// --- Record routes ---
	records := apiGroup.Group("/records", authMiddleware)
	records.POST("", recordHandler.Create, middleware.RBAC(domain.RoleUser))
	records.GET("/last", recordHandler.Latest)
	records.GET("/mine", recordHandler.Mine)
	records.GET("/:id", recordHandler.Get)

	// --- Admin routes ---
	admin := apiGroup.Group("/admin", authMiddleware, middleware.RBAC(domain.RoleAdmin))
	admin.GET("/records", adminHandler.Records)
	admin.PUT("/records/:id/payment", adminHandler.SetPaymentStatus)
	admin.GET("/users", adminHandler.Users)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			l := logger.WithRequestID(log, v.RequestID)
			ev := l.Info()
			if v.Error != nil {
				ev = l.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}

func authRateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}

func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = storage.DefaultMaxBytes
	}
	kb := (maxUpload + bodyLimitSlack + 1023) / 1024
	return strconv.FormatInt(kb, 10) + "K"
}
