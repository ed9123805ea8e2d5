// Package app assembles the backend stack for the configured mode.
// Switching between cloud and local requires a restart; the mode is
// fixed for the lifetime of an App.
package app

import (
	"fmt"

	"github.com/fasttrack/core/internal/adapters/ai"
	"github.com/fasttrack/core/internal/adapters/identity"
	"github.com/fasttrack/core/internal/adapters/repository"
	"github.com/fasttrack/core/internal/application/services"
	"github.com/fasttrack/core/internal/infrastructure/config"
	"github.com/fasttrack/core/internal/infrastructure/database"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
	"github.com/fasttrack/core/internal/sync"
)

// App owns the wired components for one backend mode.
type App struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *database.DB
	Store      ports.Store
	Identity   ports.IdentityProvider
	Controller *sync.Controller

	Auth     *services.AuthService
	Projects *services.ProjectService
	Tasks    *services.TaskService
	Backup   *services.BackupService
	Generate *services.GenerateService
}

// New builds the full stack for cfg's effective mode. Cloud mode wires
// the Postgres store and the users-table identity provider; local mode
// wires the JSON file store and the mock provider. The controller is
// bound to the identity provider before New returns.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	switch ports.Mode(cfg.Mode()) {
	case ports.ModeCloud:
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.Store = repository.NewPostgresStore(db, cfg.Database.DSN(), log)
		a.Identity = identity.NewCloudProvider(db, log)

	case ports.ModeLocal:
		store, err := repository.NewLocalStore(cfg.Backend.DataDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		a.Store = store
		a.Identity = identity.NewLocalProvider()

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode())
	}

	a.Controller = sync.New(a.Store, log)
	a.Controller.Bind(a.Identity)

	var gen ports.TaskGenerator
	if cfg.AI.Enabled() {
		gen = ai.NewAnthropicGenerator(cfg.AI, log)
	}

	a.Auth = services.NewAuthService(a.Identity, cfg.JWT, log)
	a.Projects = services.NewProjectService(a.Store, a.Controller, log)
	a.Tasks = services.NewTaskService(a.Store, a.Controller, log)
	a.Backup = services.NewBackupService(a.Store, a.Controller, log)
	a.Generate = services.NewGenerateService(a.Store, a.Controller, gen, log)

	log.Infow("Application assembled", "mode", cfg.Mode(), "ai_enabled", gen != nil)
	return a, nil
}

// Close tears the stack down in reverse order.
func (a *App) Close() error {
	a.Controller.Close()
	if err := a.Store.Close(); err != nil {
		return err
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
