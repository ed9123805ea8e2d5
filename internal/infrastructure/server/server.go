package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	httpHandlers "github.com/fasttrack/core/internal/adapters/http"
	"github.com/fasttrack/core/internal/app"
	"github.com/fasttrack/core/internal/infrastructure/config"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    *app.App
	logger *logger.Logger
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance over an assembled application.
func New(a *app.App) (*Server, error) {
	e := echo.New()

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(a.Logger)

	authHandler := httpHandlers.NewAuthHandler(a.Auth, a.Logger)
	projectHandler := httpHandlers.NewProjectHandler(a.Projects, a.Controller, a.Logger)
	taskHandler := httpHandlers.NewTaskHandler(a.Tasks, a.Controller, a.Logger)
	backupHandler := httpHandlers.NewBackupHandler(a.Backup, a.Logger)
	generateHandler := httpHandlers.NewGenerateHandler(a.Generate, a.Logger)

	server := &Server{
		echo:   e,
		config: a.Config,
		app:    a,
		logger: a.Logger,
	}

	server.setupMiddleware()
	server.setupRoutes(authHandler, projectHandler, taskHandler, backupHandler, generateHandler)

	if a.Config.Metrics.Enabled {
		server.setupMetrics()
	}

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(authHandler *httpHandlers.AuthHandler, projectHandler *httpHandlers.ProjectHandler, taskHandler *httpHandlers.TaskHandler, backupHandler *httpHandlers.BackupHandler, generateHandler *httpHandlers.GenerateHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Auth routes (public)
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout, s.authMiddleware())
	authGroup.GET("/me", authHandler.Me, s.authMiddleware())

	// Project and section routes (authenticated)
	projectGroup := v1.Group("/projects", s.authMiddleware())
	projectGroup.GET("", projectHandler.ListProjects)
	projectGroup.POST("", projectHandler.CreateProject)
	projectGroup.GET("/active", projectHandler.GetActiveProject)
	projectGroup.PATCH("/:id", projectHandler.RenameProject)
	projectGroup.DELETE("/:id", projectHandler.DeleteProject)
	projectGroup.POST("/:id/reorder", projectHandler.ReorderProject)
	projectGroup.POST("/:id/activate", projectHandler.SetActiveProject)
	projectGroup.POST("/:id/sections", projectHandler.AddSection)
	projectGroup.PATCH("/:id/sections/:sectionId", projectHandler.RenameSection)
	projectGroup.DELETE("/:id/sections/:sectionId", projectHandler.DeleteSection)

	// Task routes (authenticated)
	taskGroup := v1.Group("/tasks", s.authMiddleware())
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.POST("/bulk/status", taskHandler.BulkStatus)
	taskGroup.POST("/bulk/delete", taskHandler.BulkDelete)
	taskGroup.POST("/bulk/copy", taskHandler.BulkCopy)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PATCH("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/restore", taskHandler.RestoreTask)
	taskGroup.POST("/:id/cycle-status", taskHandler.CycleStatus)
	taskGroup.POST("/:id/cycle-priority", taskHandler.CyclePriority)
	taskGroup.POST("/:id/move", taskHandler.MoveTask)

	// Backup routes (authenticated)
	backupGroup := v1.Group("/backup", s.authMiddleware())
	backupGroup.GET("/export", backupHandler.Export)
	backupGroup.POST("/import", backupHandler.Import)

	// Generation route (authenticated)
	v1.POST("/generate", generateHandler.Generate, s.authMiddleware())
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"mode":   s.config.Mode(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	if ports.Mode(s.config.Mode()) == ports.ModeCloud {
		if err := s.app.DB.Ping(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "database_not_ready",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address, "mode", s.config.Mode())
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": e.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
