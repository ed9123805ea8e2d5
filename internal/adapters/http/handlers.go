package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fasttrack/core/internal/adapters/identity"
	"github.com/fasttrack/core/internal/application/services"
	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// Response types shared across handlers.

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// httpError maps domain errors onto HTTP status codes; anything
// unrecognized becomes a 500.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, entities.ErrNotAuthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, entities.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, entities.ErrProjectNotFound),
		errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrSectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrEmptyName),
		errors.Is(err, entities.ErrEmptyTitle),
		errors.Is(err, entities.ErrEmptyPrompt),
		errors.Is(err, entities.ErrNoActiveProject),
		errors.Is(err, entities.ErrInvalidStatus),
		errors.Is(err, entities.ErrInvalidPriority),
		errors.Is(err, entities.ErrInvalidBackup):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// AuthHandler handles authentication requests.
type AuthHandler struct {
	authService *services.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Register godoc
// @Summary Register a new account
// @Description Create an account and return a bearer token. Local mode accepts any credentials.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RegisterRequest true "Account data"
// @Success 201 {object} ports.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		h.logger.Errorw("Registration failed", "error", err, "email", req.Email)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, response)
}

// Login godoc
// @Summary Sign in
// @Description Authenticate and return a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.LoginRequest true "Credentials"
// @Success 200 {object} ports.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		h.logger.Errorw("Login failed", "error", err, "email", req.Email)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, response)
}

// Logout godoc
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.authService.Logout(c.Request().Context()); err != nil {
		h.logger.Errorw("Logout failed", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me godoc
// @Summary Current identity
// @Tags auth
// @Produce json
// @Success 200 {object} ports.Identity
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	current := h.authService.Current()
	if current == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not signed in")
	}
	return c.JSON(http.StatusOK, current)
}
