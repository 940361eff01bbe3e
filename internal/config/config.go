package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables. Populated at
// startup by LoadConfig.
var (
	// PoolAddress is the pool's own account address on the host ledger.
	PoolAddress string
	// Bech32Prefix is the address prefix of the host ledger.
	Bech32Prefix string
	// NativeDenom is the settlement denom deposits and bids are made in.
	NativeDenom string
	// LCDEndpoint is the base URL of the chain node's REST gateway.
	LCDEndpoint string
	// StateDir is the directory holding the pool's contract state store.
	StateDir string

	// Instantiation parameters, used only when the state store is empty.
	OwnerAddress            string
	RewardsFee              sdkmath.LegacyDec
	RewardsFeeAddr          string
	MinNextBidIncrementRate sdkmath.LegacyDec
	MinReturn               sdkmath.LegacyDec
	MinBalance              sdkmath.Int
	TreasuryChestCodeID     uint64
	WhitelistedAddresses    []string
	InitialFunds            sdkmath.Int

	// Bid bot settings.
	BotEnabled  bool
	BotAddress  string
	BotSchedule string
	// PriceEndpoint is the price API the bot values baskets against.
	PriceEndpoint string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. All environment variables without a default are
// required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PoolAddress, err = getEnv("POOL_ADDRESS")
	if err != nil {
		return err
	}

	Bech32Prefix, err = getEnv("BECH32_PREFIX")
	if err != nil {
		return err
	}

	NativeDenom, err = getEnv("NATIVE_DENOM")
	if err != nil {
		return err
	}

	LCDEndpoint, err = getEnv("LCD_ENDPOINT")
	if err != nil {
		return err
	}
	LCDEndpoint = strings.TrimRight(LCDEndpoint, "/")

	StateDir, err = getEnv("STATE_DIR")
	if err != nil {
		return err
	}

	OwnerAddress, err = getEnv("POOL_OWNER")
	if err != nil {
		return err
	}

	RewardsFee, err = getEnvAsDec("REWARDS_FEE")
	if err != nil {
		return err
	}

	RewardsFeeAddr, err = getEnv("REWARDS_FEE_ADDR")
	if err != nil {
		return err
	}

	MinNextBidIncrementRate, err = getEnvAsDec("MIN_NEXT_BID_INCREMENT_RATE")
	if err != nil {
		return err
	}

	MinReturn, err = getEnvAsDec("MIN_RETURN")
	if err != nil {
		return err
	}

	MinBalance, err = getEnvAsInt("MIN_BALANCE")
	if err != nil {
		return err
	}

	TreasuryChestCodeID, err = getEnvAsUint64("TREASURY_CHEST_CODE_ID")
	if err != nil {
		return err
	}

	InitialFunds, err = getEnvAsInt("INITIAL_FUNDS")
	if err != nil {
		return err
	}

	if csv := os.Getenv("WHITELISTED_ADDRESSES"); csv != "" {
		for _, addr := range strings.Split(csv, ",") {
			if trimmed := strings.TrimSpace(addr); trimmed != "" {
				WhitelistedAddresses = append(WhitelistedAddresses, trimmed)
			}
		}
	}

	BotEnabled = os.Getenv("BOT_ENABLED") == "true"
	if BotEnabled {
		BotAddress, err = getEnv("BOT_ADDRESS")
		if err != nil {
			return err
		}
		PriceEndpoint, err = getEnv("PRICE_ENDPOINT")
		if err != nil {
			return err
		}
	}
	BotSchedule = os.Getenv("BOT_SCHEDULE")
	if BotSchedule == "" {
		// Every five minutes, on the minute.
		BotSchedule = "0 */5 * * * *"
	}

	log.Debug().
		Str("PoolAddress", PoolAddress).
		Str("NativeDenom", NativeDenom).
		Str("LCDEndpoint", LCDEndpoint).
		Bool("BotEnabled", BotEnabled).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDec retrieves an environment variable as a decimal rate.
func getEnvAsDec(key string) (sdkmath.LegacyDec, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	value, err := sdkmath.LegacyNewDecFromStr(valueStr)
	if err != nil {
		return sdkmath.LegacyZeroDec(), errors.New("environment variable " + key + " must be a valid decimal, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an integer amount.
func getEnvAsInt(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.ZeroInt(), errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
