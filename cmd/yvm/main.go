package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nexusyield/yvm/internal/apyfeed"
	"github.com/nexusyield/yvm/internal/config"
	"github.com/nexusyield/yvm/internal/engine"
	"github.com/nexusyield/yvm/internal/logger"
	"github.com/nexusyield/yvm/internal/provider"
	"github.com/nexusyield/yvm/internal/registry"
	"github.com/nexusyield/yvm/internal/state"
	"github.com/nexusyield/yvm/internal/vault"
	"github.com/nexusyield/yvm/internal/web"
)

// main is the entry point for the YVM system.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("YVM Core Logic Starting...")

	// Initialize Database Connection (operation receipts and snapshots)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Pool Catalog ---
	poolRegistry := registry.NewRegistry()
	if err := apyfeed.Refresh(poolRegistry, config.APYFeedURL); err != nil {
		log.Fatal().Err(err).Msg("Cannot start without an initial pool catalog")
	}
	log.Info().Int("pools", poolRegistry.Len()).Msg("Initial pool catalog loaded")

	// --- 3. Provider Adapters (with Safety Switch) ---
	providers := provider.NewSet()
	yvmMode := os.Getenv("YVM_MODE")

	if yvmMode == "sim" {
		log.Warn().Msg("Initializing YVM in SIM mode. Liquidity movements are simulated in memory.")
		sim := provider.NewSim(config.VaultAccountID)
		for _, pool := range poolRegistry.ListPools() {
			sim.AddPool(pool)
			providers.Register(pool.ProviderID, sim)
		}
	} else {
		log.Fatal().Msg("YVM_MODE is not set to 'sim'. Halting: no live provider adapter is configured in this build. Set YVM_MODE=sim to run.")
	}

	// --- 4. Vault Facade with Dependency Injection ---
	rebalanceEngine := engine.New(poolRegistry, providers, config.APYEpsilon)

	vaultCfg := vault.Config{
		Registry:  poolRegistry,
		Providers: providers,
		Engine:    rebalanceEngine,
		AccountID: config.VaultAccountID,
		Recorder:  state.NewDBRecorder(),
	}
	v, err := vault.New(vaultCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault facade")
	}
	log.Info().Msg("Vault facade created successfully")

	// --- 5. Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, v)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting YVM API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 6. Refresh Loop ---
	// Periodic rebalancing is the caller's responsibility, not the core's:
	// this loop is that external trigger. Each tick refreshes the APY feed,
	// re-evaluates the best pool and snapshots the aggregate.
	log.Info().Dur("interval", config.RefreshInterval).Msg("Starting refresh loop")
	runLoop(context.Background(), v, poolRegistry)
}

func runLoop(ctx context.Context, v *vault.Vault, poolRegistry *registry.Registry) {
	ticker := time.NewTicker(config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Refresh loop stopped due to context cancellation")
			return
		case <-ticker.C:
			runCycle(ctx, v, poolRegistry)
		}
	}
}

func runCycle(ctx context.Context, v *vault.Vault, poolRegistry *registry.Registry) {
	if err := apyfeed.Refresh(poolRegistry, config.APYFeedURL); err != nil {
		log.Error().Err(err).Msg("APY feed refresh failed, keeping previous catalog")
	}

	if _, err := v.Rebalance(ctx); err != nil {
		log.Error().Err(err).Msg("Rebalance cycle reported failures")
	}

	if _, err := state.SaveVaultSnapshot(v.Snapshot()); err != nil {
		log.Error().Err(err).Msg("Failed to save vault snapshot")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
