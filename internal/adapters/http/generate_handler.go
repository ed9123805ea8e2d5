package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fasttrack/core/internal/application/services"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// GenerateHandler handles AI task generation requests.
type GenerateHandler struct {
	generateService *services.GenerateService
	logger          *logger.Logger
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(generateService *services.GenerateService, logger *logger.Logger) *GenerateHandler {
	return &GenerateHandler{generateService: generateService, logger: logger}
}

// Generate godoc
// @Summary Generate tasks from a prompt
// @Description Break a free-text goal into tasks in the active project. The whole batch lands or none of it does.
// @Tags generate
// @Accept json
// @Produce json
// @Param request body ports.GenerateRequest true "Prompt"
// @Success 201 {array} entities.Task
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Security BearerAuth
// @Router /generate [post]
func (h *GenerateHandler) Generate(c echo.Context) error {
	if !h.generateService.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Task generation is not configured")
	}

	var req ports.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tasks, err := h.generateService.Generate(c.Request().Context(), req.Prompt)
	if err != nil {
		h.logger.Errorw("Task generation failed", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tasks)
}
