package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultAccountID is the identity the vault uses when querying its own
	// positions at the liquidity providers.
	VaultAccountID string

	// RefreshInterval is how often the APY feed is polled and a rebalance
	// check is run.
	RefreshInterval time.Duration

	// APYEpsilon is the tolerance used when comparing externally reported
	// APY figures, which may carry representation noise.
	APYEpsilon float64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultAccountID, err = getEnv("YVM_VAULT_ACCOUNT_ID")
	if err != nil {
		return err
	}

	RefreshInterval, err = getEnvAsDuration("YVM_REFRESH_INTERVAL")
	if err != nil {
		return err
	}

	APYEpsilon, err = getEnvAsFloat64("YVM_APY_EPSILON")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultAccountID", VaultAccountID).
		Dur("RefreshInterval", RefreshInterval).
		Float64("APYEpsilon", APYEpsilon).
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

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an environment variable as a time.Duration. Returns error if not set or invalid.
func getEnvAsDuration(key string) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration (e.g. 10m), got: " + valueStr)
	}
	return value, nil
}
