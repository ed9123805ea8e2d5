package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fasttrack/core/internal/application/services"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
	"github.com/fasttrack/core/internal/sync"
)

// TaskHandler handles task requests. List and search operate on the
// active project only.
type TaskHandler struct {
	taskService *services.TaskService
	controller  *sync.Controller
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, controller *sync.Controller, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, controller: controller, logger: logger}
}

// ListTasks godoc
// @Summary List tasks of the active project
// @Description Non-deleted tasks of the active project, sorted by priority then title. An optional q parameter narrows by case-insensitive substring over title and description.
// @Tags tasks
// @Produce json
// @Param q query string false "Search query"
// @Success 200 {array} entities.Task
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.taskService.List(c.QueryParam("q")))
}

// CreateTask godoc
// @Summary Add a task to the active project
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.AddTaskRequest true "Task data"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.AddTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.Add(c.Request().Context(), req.Title, req.Description, req.SectionID)
	if err != nil {
		h.logger.Errorw("Create task failed", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask godoc
// @Summary Get a task by ID
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	task := h.controller.Task(c.Param("id"))
	if task == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTask godoc
// @Summary Patch a task
// @Description Apply a partial update. A null sectionId moves the task to no section; an absent one leaves it unchanged.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Fields to change"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.taskService.Update(c.Request().Context(), c.Param("id"), req.Patch()); err != nil {
		h.logger.Errorw("Update task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task updated"})
}

// CycleStatus godoc
// @Summary Advance a task's status one step
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /tasks/{id}/cycle-status [post]
func (h *TaskHandler) CycleStatus(c echo.Context) error {
	status, err := h.taskService.CycleStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Errorw("Cycle status failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(status)})
}

// CyclePriority godoc
// @Summary Advance a task's priority one step
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /tasks/{id}/cycle-priority [post]
func (h *TaskHandler) CyclePriority(c echo.Context) error {
	priority, err := h.taskService.CyclePriority(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Errorw("Cycle priority failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"priority": string(priority)})
}

// MoveTask godoc
// @Summary Move a task between columns or sections
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.MoveTaskRequest true "Target status and/or section"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /tasks/{id}/move [post]
func (h *TaskHandler) MoveTask(c echo.Context) error {
	var req ports.MoveTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.taskService.Move(c.Request().Context(), c.Param("id"), req); err != nil {
		h.logger.Errorw("Move task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task moved"})
}

// DeleteTask godoc
// @Summary Soft-delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.taskService.SoftDelete(c.Request().Context(), c.Param("id")); err != nil {
		h.logger.Errorw("Delete task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted"})
}

// RestoreTask godoc
// @Summary Restore a soft-deleted task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /tasks/{id}/restore [post]
func (h *TaskHandler) RestoreTask(c echo.Context) error {
	if err := h.taskService.Restore(c.Request().Context(), c.Param("id")); err != nil {
		h.logger.Errorw("Restore task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task restored"})
}

// BulkStatus godoc
// @Summary Set one status on many tasks
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.BulkStatusRequest true "Task IDs and target status"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /tasks/bulk/status [post]
func (h *TaskHandler) BulkStatus(c echo.Context) error {
	var req ports.BulkStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.taskService.BulkStatus(c.Request().Context(), req.TaskIDs, req.Status); err != nil {
		h.logger.Errorw("Bulk status failed", "error", err, "count", len(req.TaskIDs))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Tasks updated"})
}

// BulkDelete godoc
// @Summary Soft-delete many tasks
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.BulkDeleteRequest true "Task IDs"
// @Success 200 {object} MessageResponse
// @Security BearerAuth
// @Router /tasks/bulk/delete [post]
func (h *TaskHandler) BulkDelete(c echo.Context) error {
	var req ports.BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.taskService.BulkSoftDelete(c.Request().Context(), req.TaskIDs); err != nil {
		h.logger.Errorw("Bulk delete failed", "error", err, "count", len(req.TaskIDs))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Tasks deleted"})
}

// BulkCopy godoc
// @Summary Export selected tasks as a plain-text checklist
// @Tags tasks
// @Accept json
// @Produce plain
// @Param request body ports.BulkDeleteRequest true "Task IDs"
// @Success 200 {string} string "Checklist text"
// @Security BearerAuth
// @Router /tasks/bulk/copy [post]
func (h *TaskHandler) BulkCopy(c echo.Context) error {
	var req ports.BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.String(http.StatusOK, h.taskService.BulkCopyText(req.TaskIDs))
}
