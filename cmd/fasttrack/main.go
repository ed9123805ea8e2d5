package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/fasttrack/core/cmd/fasttrack/commands"
)

// @title FastTrack API
// @version 1.0
// @description Project and task management with cloud and local persistence backends

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "fasttrack",
		Short: "FastTrack API Server",
		Long:  `FastTrack is a project and task management system that runs against a cloud Postgres backend with live change subscriptions, or fully offline against local JSON files.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewBackupCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
