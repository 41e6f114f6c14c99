package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/page-capture/pkg/browser"
	"dev/bravebird/page-capture/pkg/config"
	"dev/bravebird/page-capture/pkg/database"
	"dev/bravebird/page-capture/pkg/temporal/activities"
	"dev/bravebird/page-capture/pkg/temporal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.ScreenshotDir, 0755); err != nil {
		log.Fatalf("Failed to create screenshot directory: %v", err)
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Run history is optional on the worker side
	var store activities.RunRecorder
	db, err := database.New(cfg.MySQLDSN)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v", err)
		log.Println("Running without database persistence")
	} else {
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
		store = db
	}

	if cfg.Browser.RemoteURL == "" && cfg.Browser.Bin == "" && !browser.Available() {
		log.Println("Warning: No local Chrome found, rod will download one on first capture")
	}

	acts := activities.NewActivities(browser.NewLauncher(cfg.Browser), cfg.Capture, cfg.ScreenshotDir, store)

	// Each capture holds a whole browser, so keep activity concurrency low
	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     2,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.CaptureWorkflow)

	w.RegisterActivity(acts.CaptureActivity)
	w.RegisterActivity(acts.RecordRunStatusActivity)
	w.RegisterActivity(acts.RecordRunResultActivity)

	log.Printf("Starting Temporal worker on task queue: %s", config.TaskQueue)
	log.Printf("Temporal host: %s", cfg.TemporalHost)
	log.Printf("Default target: %s", cfg.Capture.TargetURL)

	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
