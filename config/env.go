package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file from the working directory when present and
// applies node credential overrides to cfg. Environment variables win over
// the config file so credentials can stay out of it.
//
// Recognized variables: RPC_URL, RPC_USER, RPC_PASSWORD, plus the
// lowercase rpc_url, user and password keys used by older .env files.
func LoadEnv(cfg *Config) {
	// Missing .env is fine; the environment may carry the values directly.
	_ = godotenv.Load()

	if v := envValue("RPC_URL", "rpc_url"); v != "" {
		cfg.Node.URL = v
	}
	if v := envValue("RPC_USER", "user"); v != "" {
		cfg.Node.User = v
	}
	if v := envValue("RPC_PASSWORD", "password"); v != "" {
		cfg.Node.Password = v
	}
}

// envValue returns the first non-empty value among the named variables.
func envValue(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
