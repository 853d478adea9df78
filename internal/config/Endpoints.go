package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebHost is the interface the HTTP API listens on.
	WebHost string
	// WebPort is the port the HTTP API listens on.
	WebPort string
	// CORSOrigin is sent as Access-Control-Allow-Origin.
	CORSOrigin string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	WebHost = getEnvWithDefault("WEB_HOST", DefaultWebHost)
	WebPort = getEnvWithDefault("WEB_PORT", DefaultWebPort)
	CORSOrigin = getEnvWithDefault("CORS_ORIGIN", "*")

	log.Debug().
		Str("WebHost", WebHost).
		Str("WebPort", WebPort).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// ListenAddress is the host:port pair for the HTTP API.
func ListenAddress() string {
	return WebHost + ":" + WebPort
}
