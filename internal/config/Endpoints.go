package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// APYFeedURL is the endpoint serving the pool catalog with observed APYs.
	APYFeedURL string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	APYFeedURL, err = getEnv("YVM_APY_FEED_URL")
	if err != nil {
		return err
	}

	log.Debug().
		Str("APYFeedURL", APYFeedURL).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
