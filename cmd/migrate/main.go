package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargeslot/booking-backend/internal/config"
	"github.com/chargeslot/booking-backend/internal/database"
	"github.com/chargeslot/booking-backend/internal/logging"
)

func main() {
	printOnly := flag.Bool("print", false, "print the schema instead of applying it")
	flag.Parse()

	if *printOnly {
		fmt.Print(database.Schema())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.Server)

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	started := time.Now()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"driver":      cfg.Database.Driver,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("Schema applied")
}
