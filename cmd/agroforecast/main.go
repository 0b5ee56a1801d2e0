package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "agroforecast/internal/api/http"
	"agroforecast/internal/config"
	"agroforecast/internal/pipeline"
	"agroforecast/internal/power"
	"agroforecast/internal/scheduler"
	"agroforecast/internal/store"
)

func main() {
	mode := flag.String("mode", "once", "run mode: once | serve | retrain")
	envFile := flag.String("env", "", "path to an env file to load before the environment")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("failed to load env file %s: %v", *envFile, err)
		}
	}

	// Load configuration (reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound POWER API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	fetcher := power.NewClient(httpClient, cfg.StationLat, cfg.StationLon, cfg.Features)
	dataset := store.NewCSVStore(cfg.CSVPath, cfg.Features)
	publisher := store.NewPublisher(cfg.PublishHistory)

	pipe, err := pipeline.New(cfg, fetcher, dataset, publisher)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	switch *mode {
	case "once":
		runOnce(pipe)
	case "retrain":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := pipe.Retrain(ctx); err != nil {
			log.Printf("retraining failed: %v", err)
			os.Exit(1)
		}
	case "serve":
		serve(cfg, pipe, publisher, dataset)
	default:
		log.Fatalf("unknown mode %q; use once, serve, or retrain", *mode)
	}
}

func runOnce(pipe *pipeline.Pipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	run, err := pipe.RunOnce(ctx)
	if err != nil {
		log.Printf("forecast failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\nFORECAST RESULTS:")
	fmt.Println("----------------------------------------")
	for _, rec := range run.Records {
		fmt.Printf("\n%s:\n", rec.Date.Format("2006-01-02"))
		for i, f := range rec.Features {
			fmt.Printf("   %s: %.4f\n", f, rec.Values[i])
		}
		if rec.Water != nil {
			fmt.Printf("   depletion: %.3f  net: %.2f mm  gross: %.2f mm\n",
				rec.Water.DepletionFrac, rec.Water.NetMM, rec.Water.GrossMM)
		}
	}
}

func serve(cfg *config.AppConfig, pipe *pipeline.Pipeline, publisher *store.Publisher, dataset *store.CSVStore) {
	// Scheduler for the daily pipeline and weekly retraining.
	sched := scheduler.New(pipe, cfg.ForecastAt, cfg.RetrainAt)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Run the pipeline once at startup so the dashboard has data before
	// the first scheduled slot.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := pipe.RunOnce(ctx); err != nil {
			log.Printf("initial forecast run failed: %v", err)
		}
	}()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "agroforecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "agroforecast",
		})
	})

	// Dashboard and API routes.
	httpapi.RegisterRoutes(app, publisher, dataset)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
