// backend/main.go
package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/database"
	"github.com/roadsafety/silent-recall/backend/nhtsa"
	"github.com/roadsafety/silent-recall/backend/services"
)

func main() {
	backfill := flag.Bool("backfill", false, "bulk-load the NHTSA complaint flat file instead of running the pipeline")
	flag.Parse()

	log.Println("Starting NHTSA Silent-Recall ETL...")

	// Secrets live in .env; absence is fine when the environment is already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	configPath := "config/config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = "backend/config/config.yaml"
		if _, errFallback := os.Stat(configPath); os.IsNotExist(errFallback) {
			log.Fatalf("Config file not found at default paths. Error: %v", errFallback)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	log.Printf("Configuration loaded. DB name: %s, year range: %s-%s",
		cfg.Database.DBName, cfg.ETL.YearStart, cfg.ETL.YearEnd)

	store, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		log.Fatalf("Error verifying schema: %v", err)
	}

	if *backfill {
		if err := services.NewBackfillService(store, cfg.NHTSA, cfg.ETL).Run(); err != nil {
			log.Fatalf("Backfill failed: %v", err)
		}
		return
	}

	client := nhtsa.NewClient(cfg.NHTSA, cfg.ETL.RequestTimeout)
	pipeline := services.NewPipeline(
		services.NewIngestionService(store, store, client, cfg.ETL),
		services.NewRecallService(store, store, client, cfg.ETL),
		services.NewAnalyticsService(store, cfg.ETL),
		services.NewAlertService(store, store, services.NewMailer(cfg.Alert), cfg.Alert),
	)

	if err := pipeline.Run(); err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
}
