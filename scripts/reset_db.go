package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/teahouse-finance/tvault/internal/config"
	"github.com/teahouse-finance/tvault/internal/logger"
	"github.com/teahouse-finance/tvault/internal/state"
)

func main() {
	// Initialize logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if config.DBDriver == "memory" {
		log.Fatal().Msg("DB_DRIVER is memory. Nothing to reset.")
	}

	dbCfg := config.StoreConfig()
	log.Info().
		Str("driver", dbCfg.Driver).
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("dbname", dbCfg.DBName).
		Str("path", dbCfg.Path).
		Msg("Connecting to database")

	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	// Drop and recreate every tvault table
	log.Info().Msg("Connected to database. Dropping and recreating the schema...")
	if err := state.ResetSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset database schema")
	}

	log.Info().Msg("Database reset complete!")
}
