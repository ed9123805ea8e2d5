package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/fasttrack/core/internal/app"
	"github.com/fasttrack/core/internal/infrastructure/config"
	"github.com/fasttrack/core/internal/infrastructure/database"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/infrastructure/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FastTrack API server",
		Long:  "Start the FastTrack API server against the configured backend",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands. The
// migrations only apply to the cloud backend; local mode has no schema.
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage cloud-backend database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewBackupCommand creates the backup command with export and import
// subcommands. Both sign in first: with the given credentials in cloud
// mode, as the fixed local user otherwise.
func NewBackupCommand() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup export and restore commands",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all projects and tasks to a JSON file",
		Run: func(cmd *cobra.Command, args []string) {
			file, _ := cmd.Flags().GetString("file")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			runBackupExport(file, email, password)
		},
	}
	exportCmd.Flags().String("file", "", "Output file (default fasttrack-backup-<date>.json)")
	exportCmd.Flags().String("email", "", "Account email (cloud mode)")
	exportCmd.Flags().String("password", "", "Account password (cloud mode)")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Restore projects and tasks from a JSON backup file",
		Run: func(cmd *cobra.Command, args []string) {
			file, _ := cmd.Flags().GetString("file")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if file == "" {
				log.Fatal("--file is required")
			}
			runBackupImport(file, email, password)
		},
	}
	importCmd.Flags().String("file", "", "Backup file to restore (required)")
	importCmd.Flags().String("email", "", "Account email (cloud mode)")
	importCmd.Flags().String("password", "", "Account password (cloud mode)")

	backupCmd.AddCommand(exportCmd)
	backupCmd.AddCommand(importCmd)
	return backupCmd
}

// NewConfigCommand creates the config command. Backend selection is
// decided once at startup, so changing it means rewriting the .env file
// and restarting the process.
func NewConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the configuration file",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig()
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .env template with all supported settings",
		Run: func(cmd *cobra.Command, args []string) {
			force, _ := cmd.Flags().GetBool("force")
			initConfig(force)
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing .env file")

	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove the .env file, reverting to local-mode defaults on next start",
		Run: func(cmd *cobra.Command, args []string) {
			resetConfig()
		},
	})

	return configCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print FastTrack version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("FastTrack Core v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	a, err := app.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to assemble application", "error", err)
	}
	defer a.Close()

	srv, err := server.New(a)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	appLogger.Infow("Starting FastTrack API server",
		"port", cfg.Server.Port,
		"mode", cfg.Mode(),
		"environment", cfg.App.Environment,
	)

	go func() {
		if err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil {
			appLogger.Errorw("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
	}
}

func runMigration(direction string) {
	m, db := newMigrator()
	defer db.Close()

	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	m, db := newMigrator()
	defer db.Close()

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}
	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

func newMigrator() (*migrate.Migrate, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Mode() != "cloud" {
		log.Fatal("Migrations only apply to the cloud backend")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	return m, db
}

const envTemplate = `# FastTrack configuration. All settings are optional; with no cloud
# database credentials the server runs against local JSON files.

# Backend: auto, cloud or local. Auto picks cloud when the database
# credentials below look usable.
FASTTRACK_BACKEND_MODE=auto
FASTTRACK_BACKEND_DATA_DIR=./data

# Cloud database (leave empty for local mode)
FASTTRACK_DATABASE_HOST=
FASTTRACK_DATABASE_PORT=5432
FASTTRACK_DATABASE_NAME=fasttrack
FASTTRACK_DATABASE_USER=postgres
FASTTRACK_DATABASE_PASSWORD=
FASTTRACK_DATABASE_SSL_MODE=disable

# Auth (required in cloud mode)
FASTTRACK_JWT_SECRET=

# AI task generation (optional)
FASTTRACK_AI_API_KEY=
FASTTRACK_AI_MODEL=claude-3-5-haiku-latest

# Server
FASTTRACK_SERVER_PORT=8080
FASTTRACK_LOGGER_LEVEL=info
FASTTRACK_LOGGER_FORMAT=json
`

func showConfig() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Printf("Backend mode:    %s (configured %q)\n", cfg.Mode(), cfg.Backend.Mode)
	if cfg.Mode() == "cloud" {
		fmt.Printf("Database:        %s@%s:%d/%s\n",
			cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	} else {
		fmt.Printf("Data directory:  %s\n", cfg.Backend.DataDir)
	}
	fmt.Printf("Server:          %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("AI generation:   %t\n", cfg.AI.Enabled())
	fmt.Printf("Metrics:         %t\n", cfg.Metrics.Enabled)
	fmt.Printf("Log level:       %s (%s)\n", cfg.Logger.Level, cfg.Logger.Format)
}

func initConfig(force bool) {
	if _, err := os.Stat(".env"); err == nil && !force {
		log.Fatal(".env already exists, use --force to overwrite")
	}
	if err := os.WriteFile(".env", []byte(envTemplate), 0o600); err != nil {
		log.Fatalf("Failed to write .env: %v", err)
	}
	fmt.Println("Wrote .env template. Edit it and restart the server to apply.")
}

func resetConfig() {
	if err := os.Remove(".env"); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No .env file to remove")
			return
		}
		log.Fatalf("Failed to remove .env: %v", err)
	}
	fmt.Println("Removed .env. The next start falls back to local-mode defaults.")
}

func newSignedInApp(email, password string) *app.App {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	a, err := app.New(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to assemble application: %v", err)
	}

	if _, err := a.Identity.SignIn(context.Background(), email, password); err != nil {
		a.Close()
		log.Fatalf("Sign-in failed: %v", err)
	}
	return a
}

func runBackupExport(file, email, password string) {
	a := newSignedInApp(email, password)
	defer a.Close()

	ctx := context.Background()
	backup, err := a.Backup.Export(ctx)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	if file == "" {
		file = a.Backup.FileName()
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode backup: %v", err)
	}
	if err := os.WriteFile(file, data, 0o600); err != nil {
		log.Fatalf("Failed to write backup file: %v", err)
	}

	fmt.Printf("Exported %d projects and %d tasks to %s\n",
		len(backup.Projects), len(backup.Tasks), file)
}

func runBackupImport(file, email, password string) {
	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("Failed to read backup file: %v", err)
	}

	a := newSignedInApp(email, password)
	defer a.Close()

	projects, tasks, err := a.Backup.Import(context.Background(), data)
	if err != nil {
		log.Fatalf("Restore failed: %v", err)
	}
	fmt.Printf("Restored %d projects and %d tasks from %s\n", projects, tasks, file)
}
