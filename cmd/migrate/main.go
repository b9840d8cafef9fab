package main

import (
	"zoin_economy/internal/config" // Custom import path (Config)
	"zoin_economy/internal/db"     // Custom import path (Database)
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	db.Migrate(cfg.DSN())
}
