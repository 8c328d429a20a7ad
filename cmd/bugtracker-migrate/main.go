// Package main is the entry point for the bug tracker schema migration tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/logging"
	"github.com/prn-tf/bugtracker/internal/repository"
	"github.com/prn-tf/bugtracker/internal/repository/database"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to configuration file")
	pflag.Usage = printUsage
	pflag.Parse()

	if pflag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := pflag.Arg(0)
	switch command {
	case "version":
		fmt.Printf("bugtracker-migrate %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	case "help":
		printUsage()
		return
	case "up", "down", "status", "current":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, command string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	// Migrations are applied explicitly below.
	cfg.Database.AutoMigrate = false

	opened, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer opened.Close()

	if command == "up" {
		migrator, ok := opened.Database.(repository.Migrator)
		if !ok {
			return fmt.Errorf("driver %q does not support migrations", cfg.Database.Driver)
		}
		if err := migrator.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	}

	versioned, ok := opened.Database.(repository.VersionedMigrator)
	if !ok {
		return fmt.Errorf("driver %q manages its schema without versions; only \"up\" is supported", cfg.Database.Driver)
	}

	switch command {
	case "down":
		if err := versioned.MigrateDown(ctx); err != nil {
			return err
		}
		fmt.Println("Rolled back one migration")
	case "status":
		return versioned.MigrationStatus(ctx)
	case "current":
		v, err := versioned.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d\n", v)
	}
	return nil
}

func printUsage() {
	fmt.Println(`Bug Tracker Migration Tool

Usage:
  bugtracker-migrate [--config path] <command>

Commands:
  up          Apply all pending migrations
  down        Roll back the most recent migration
  status      Show the state of every migration
  current     Print the applied schema version
  version     Print version information
  help        Show this help message`)
}
