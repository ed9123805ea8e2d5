package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fasttrack/core/internal/application/services"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
	"github.com/fasttrack/core/internal/sync"
)

// ProjectHandler handles project and section requests.
type ProjectHandler struct {
	projectService *services.ProjectService
	controller     *sync.Controller
	logger         *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService *services.ProjectService, controller *sync.Controller, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, controller: controller, logger: logger}
}

// ListProjects godoc
// @Summary List projects
// @Description List the signed-in user's projects in sidebar order, including soft-deleted tasks' parents
// @Tags projects
// @Produce json
// @Success 200 {array} entities.Project
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, h.controller.Projects())
}

// CreateProject godoc
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body ports.CreateProjectRequest true "Project data"
// @Success 201 {object} entities.Project
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) CreateProject(c echo.Context) error {
	var req ports.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	project, err := h.projectService.Create(c.Request().Context(), req.Name)
	if err != nil {
		h.logger.Errorw("Create project failed", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, project)
}

// RenameProject godoc
// @Summary Rename a project
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.RenameRequest true "New name"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /projects/{id} [patch]
func (h *ProjectHandler) RenameProject(c echo.Context) error {
	var req ports.RenameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.projectService.Rename(c.Request().Context(), c.Param("id"), req.Name); err != nil {
		h.logger.Errorw("Rename project failed", "error", err, "project_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Project renamed"})
}

// DeleteProject godoc
// @Summary Delete a project and its tasks
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	if err := h.projectService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		h.logger.Errorw("Delete project failed", "error", err, "project_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Project deleted"})
}

// ReorderProject godoc
// @Summary Move a project to a new sidebar position
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.ReorderProjectRequest true "Target index"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /projects/{id}/reorder [post]
func (h *ProjectHandler) ReorderProject(c echo.Context) error {
	var req ports.ReorderProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.projectService.Reorder(c.Request().Context(), c.Param("id"), req.ToIndex); err != nil {
		h.logger.Errorw("Reorder project failed", "error", err, "project_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Project reordered"})
}

// GetActiveProject godoc
// @Summary Get the active project
// @Tags projects
// @Produce json
// @Success 200 {object} entities.Project
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/active [get]
func (h *ProjectHandler) GetActiveProject(c echo.Context) error {
	project := h.controller.ActiveProject()
	if project == nil {
		return echo.NewHTTPError(http.StatusNotFound, "No active project")
	}
	return c.JSON(http.StatusOK, project)
}

// SetActiveProject godoc
// @Summary Switch the active project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /projects/{id}/activate [post]
func (h *ProjectHandler) SetActiveProject(c echo.Context) error {
	h.controller.SetActiveProject(c.Param("id"))
	return c.JSON(http.StatusOK, MessageResponse{Message: "Active project set"})
}

// AddSection godoc
// @Summary Add a section to a project
// @Tags sections
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body ports.AddSectionRequest true "Section data"
// @Success 201 {object} entities.Section
// @Security BearerAuth
// @Router /projects/{id}/sections [post]
func (h *ProjectHandler) AddSection(c echo.Context) error {
	var req ports.AddSectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	section, err := h.projectService.AddSection(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		h.logger.Errorw("Add section failed", "error", err, "project_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, section)
}

// RenameSection godoc
// @Summary Rename a section
// @Tags sections
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param sectionId path string true "Section ID"
// @Param request body ports.RenameRequest true "New name"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /projects/{id}/sections/{sectionId} [patch]
func (h *ProjectHandler) RenameSection(c echo.Context) error {
	var req ports.RenameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	err := h.projectService.RenameSection(c.Request().Context(), c.Param("id"), c.Param("sectionId"), req.Name)
	if err != nil {
		h.logger.Errorw("Rename section failed", "error", err, "section_id", c.Param("sectionId"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Section renamed"})
}

// DeleteSection godoc
// @Summary Delete a section and unfile its tasks
// @Tags sections
// @Produce json
// @Param id path string true "Project ID"
// @Param sectionId path string true "Section ID"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /projects/{id}/sections/{sectionId} [delete]
func (h *ProjectHandler) DeleteSection(c echo.Context) error {
	err := h.projectService.DeleteSection(c.Request().Context(), c.Param("id"), c.Param("sectionId"))
	if err != nil {
		h.logger.Errorw("Delete section failed", "error", err, "section_id", c.Param("sectionId"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Section deleted"})
}
