package main

import (
	"context"
	"log"
	"time"

	"loostaar/internal/config"
	"loostaar/internal/container"
	"loostaar/internal/errors"
	"loostaar/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase opens the PostgreSQL connection when DATABASE_URL is set
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.URL != "" {
		db, err := initDatabase(appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = appContainer.InitWithDatabase(ctx, db)
		cancel()
		if err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
	} else {
		log.Println("No DATABASE_URL configured, runs are kept in memory")
	}

	server := ui.NewApp(appContainer.Analysis, ui.Config{
		Port:        appConfig.Server.Port,
		MAFCutoff:   appConfig.Analysis.MAFCutoff,
		Concurrency: appConfig.Analysis.Concurrency,
		RunTimeout:  appConfig.Analysis.RunTimeout,
	})
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
