package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fasttrack/core/internal/application/services"
	"github.com/fasttrack/core/internal/infrastructure/logger"
)

// maxBackupBytes caps uploaded backup files at 32 MiB.
const maxBackupBytes = 32 << 20

// BackupHandler handles backup export and restore.
type BackupHandler struct {
	backupService *services.BackupService
	logger        *logger.Logger
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(backupService *services.BackupService, logger *logger.Logger) *BackupHandler {
	return &BackupHandler{backupService: backupService, logger: logger}
}

// Export godoc
// @Summary Download a full backup
// @Description Export every project and task of the signed-in user, soft-deleted records included, as a versioned JSON envelope served as a file download.
// @Tags backup
// @Produce json
// @Success 200 {object} entities.Backup
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /backup/export [get]
func (h *BackupHandler) Export(c echo.Context) error {
	backup, err := h.backupService.Export(c.Request().Context())
	if err != nil {
		h.logger.Errorw("Backup export failed", "error", err)
		return httpError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, h.backupService.FileName()))
	return c.JSON(http.StatusOK, backup)
}

// Import godoc
// @Summary Restore a backup
// @Description Merge-restore a backup file: records with matching IDs are replaced, everything else is appended. Ownership is forced to the signed-in user.
// @Tags backup
// @Accept json
// @Produce json
// @Success 200 {object} map[string]int
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /backup/import [post]
func (h *BackupHandler) Import(c echo.Context) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBackupBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read backup file")
	}

	projects, tasks, err := h.backupService.Import(c.Request().Context(), data)
	if err != nil {
		h.logger.Errorw("Backup import failed", "error", err)
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"projects": projects, "tasks": tasks})
}
