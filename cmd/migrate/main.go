package main

import (
	"collector_hub/internal/config" // Custom import path (Config)
	"collector_hub/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN()) // Connect with the configured driver
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	logrus.WithField("driver", cfg.DBDriver).Info("Migration completed")
}
