package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/teahouse-finance/tvault/internal/chain/sim"
	"github.com/teahouse-finance/tvault/internal/config"
	"github.com/teahouse-finance/tvault/internal/keeper"
	"github.com/teahouse-finance/tvault/internal/logger"
	"github.com/teahouse-finance/tvault/internal/metrics"
	"github.com/teahouse-finance/tvault/internal/state"
	"github.com/teahouse-finance/tvault/internal/vault"
	"github.com/teahouse-finance/tvault/internal/web"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point for a devnet tvault instance.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if config.LogFile != "" {
		if err := logger.InitializeWithFile(config.LogLevel, config.LogFile); err != nil {
			log.Fatal().Err(err).Str("path", config.LogFile).Msg("Failed to open log file")
		}
	} else {
		logger.Initialize(config.LogLevel)
	}

	// --- 2. Safety Switch ---
	if config.Mode != config.ModeDevnet {
		log.Fatal().Msg("TVAULT_MODE is not set to 'devnet'. Halting to prevent accidental execution. Set TVAULT_MODE=devnet to run.")
	}
	log.Info().Msg("tvault starting on the simulated devnet")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 3. Store ---
	store, receipts, healthCheck := openStore()
	if config.DBDriver != "memory" {
		defer state.CloseDB()
	}

	// --- 4. Devnet and Vault ---
	devCfg := sim.DefaultDevnetConfig()
	devCfg.Decimals0 = config.Token0Decimals
	devCfg.Decimals1 = config.Token1Decimals
	devCfg.PoolFee = config.PoolFee
	devCfg.TickSpacing = config.TickSpacing
	devCfg.InitialTick = config.InitialTick
	devnet, err := sim.NewDevnet(devCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create devnet")
	}

	collector := metrics.GetCollector()
	stream := web.NewReceiptHub(config.CORSOrigin)
	go stream.Run(ctx)

	v, err := vault.New(ctx, vault.Config{
		Address:       config.VaultAddress,
		Owner:         config.OwnerAddress,
		Manager:       config.ManagerAddress,
		FeeConfig:     config.FeeConfig(),
		DecimalOffset: config.DecimalOffset,
		Token0:        devnet.Token0,
		Token1:        devnet.Token1,
		Pool:          devnet.Pool,
		Env:           devnet.Chain,
		Store:         store,
		Metrics:       collector,
		Publisher:     stream,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault")
	}
	if v.TotalSupply().IsPositive() {
		// Token balances and positions live in the simulated chain, which starts empty on every run.
		log.Warn().
			Str("total_supply", v.TotalSupply().String()).
			Int("positions", len(v.AllPositions())).
			Msg("Restored vault state is not backed by the fresh devnet")
	}

	// Every writer on the simulated chain shares this lock.
	var devnetLock sync.Mutex

	// --- 5. Keeper ---
	if config.KeeperSchedule != "" {
		k, err := keeper.New(keeper.Config{Vault: v, Caller: config.KeeperAddress, Lock: &devnetLock})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create keeper")
		}
		go func() {
			if err := k.RunLoop(ctx, config.KeeperSchedule); err != nil {
				log.Error().Err(err).Msg("Keeper stopped")
			}
		}()
	} else {
		log.Info().Msg("Keeper disabled")
	}

	// --- 6. Web Server ---
	webServer := web.NewWebServer(web.ServerConfig{
		Addr:        config.ListenAddress(),
		CORSOrigin:  config.CORSOrigin,
		Vault:       v,
		Receipts:    receipts,
		Metrics:     collector,
		HealthCheck: healthCheck,
		Stream:      stream,
		Devnet:      true,
		Router:      devnet.Router,
		Faucet:      sim.NewFaucet(devnet, config.VaultAddress),
		DevnetLock:  &devnetLock,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", config.ListenAddress()).Msg("Starting tvault API")
		errCh <- webServer.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	log.Info().Msg("tvault stopped")
}

// openStore returns the configured vault store, its receipt reader and a
// health check for the web server.
func openStore() (vault.Store, web.ReceiptReader, func() error) {
	if config.DBDriver == "memory" {
		log.Warn().Msg("Using the in-memory store. Vault state is lost on exit.")
		store := state.NewMemoryStore()
		return store, store, nil
	}

	dbCfg := config.StoreConfig()
	log.Info().
		Str("driver", dbCfg.Driver).
		Str("host", dbCfg.Host).
		Str("dbname", dbCfg.DBName).
		Str("path", dbCfg.Path).
		Msg("Connecting to database")
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	store, err := state.NewStore(state.DB, dbCfg.Driver)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}
	return store, store, state.TestDBConnection
}
