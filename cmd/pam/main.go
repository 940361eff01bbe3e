package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openpool/pam/internal/bot"
	"github.com/openpool/pam/internal/config"
	"github.com/openpool/pam/internal/gateway"
	"github.com/openpool/pam/internal/history"
	"github.com/openpool/pam/internal/ledger"
	"github.com/openpool/pam/internal/logger"
	"github.com/openpool/pam/internal/pool"
	"github.com/openpool/pam/internal/state"
	"github.com/openpool/pam/internal/web"
)

// main is the entry point for the pooled auction manager.
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
	log.Info().Msg("Pooled Auction Manager Starting...")

	// Open the contract state store
	store, err := state.Open(config.StateDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", config.StateDir).Msg("Failed to open state store")
	}
	defer store.Close()

	// Initialize the history database (optional: skipped when DB_HOST is unset)
	var hist *history.Store
	var dispatcher ledger.Dispatcher = ledger.NopDispatcher{}
	if os.Getenv("DB_HOST") != "" {
		dbCfg := history.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		hist, err = history.Open(dbCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize history database")
		}
		defer hist.Close()
		if err := hist.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure history database schema")
		}
		dispatcher = history.NewOutboxDispatcher(hist)
	} else {
		log.Warn().Msg("DB_HOST not set: history receipts and the message outbox are disabled.")
	}

	// Initialize the external auction gateway
	querier := gateway.NewHTTPQuerier(config.LCDEndpoint)
	log.Info().Str("endpoint", config.LCDEndpoint).Msg("Auction gateway initialized")

	// --- 2. Pool Engine Initialization ---
	poolEngine, err := pool.New(pool.Config{
		Address:      config.PoolAddress,
		Bech32Prefix: config.Bech32Prefix,
		Store:        store,
		Gateway:      querier,
		Validator:    ledger.Bech32Validator{Prefix: config.Bech32Prefix},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool engine")
	}

	ctx := context.Background()

	// First boot instantiates the pool from the environment; every later boot
	// picks up the persisted state untouched.
	if _, err := poolEngine.GetConfig(); err != nil {
		if !errors.Is(err, state.ErrNotInitialized) {
			log.Fatal().Err(err).Msg("Failed to read pool config")
		}
		log.Info().Msg("State store is empty, instantiating pool...")
		res, err := poolEngine.Instantiate(ctx, pool.InstantiateParams{
			Owner:                   config.OwnerAddress,
			NativeDenom:             config.NativeDenom,
			MinBalance:              config.MinBalance,
			RewardsFee:              config.RewardsFee,
			RewardsFeeAddr:          config.RewardsFeeAddr,
			MinNextBidIncrementRate: config.MinNextBidIncrementRate,
			TreasuryChestCodeID:     config.TreasuryChestCodeID,
			MinReturn:               config.MinReturn,
			WhitelistAddresses:      config.WhitelistedAddresses,
			InitialFunds:            sdk.NewCoin(config.NativeDenom, config.InitialFunds),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to instantiate pool")
		}
		if err := dispatcher.Dispatch(ctx, uuid.NewString(), res.Messages); err != nil {
			log.Fatal().Err(err).Msg("Failed to queue instantiation messages")
		}
		log.Info().Msg("Pool instantiated successfully")
	}

	// --- 3. Start Bid Bot ---
	if config.BotEnabled {
		bidBot, err := bot.New(bot.Config{
			Pool:       poolEngine,
			Gateway:    querier,
			Valuer:     bot.NewHTTPValuer(config.PriceEndpoint),
			Dispatcher: dispatcher,
			History:    hist,
			Address:    config.BotAddress,
			Schedule:   config.BotSchedule,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bid bot")
		}
		if err := bidBot.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start bid bot")
		}
		defer bidBot.Stop()
	} else {
		log.Info().Msg("Bid bot disabled; bids must be triggered through the API.")
	}

	// --- 4. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, poolEngine, dispatcher, hist)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("Web server failed")
		}
	}()

	// --- 5. Wait for Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down...")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
