package main

import (
	"github.com/sirupsen/logrus" // Logging library

	"account_manager/internal/config" // Custom import path (Config)
	"account_manager/internal/db"     // Custom import path (Database)
)

// Main entry point for migration
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	db.Migrate(cfg.DSN()) // MySQL schema for the mysql store backend
}
