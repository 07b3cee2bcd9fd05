// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol facts: regtest constants (coinbase maturity) that the
//     workflow depends on, immutable
//   - Runtime settings: node credentials, HTTP surface, workflow knobs,
//     can vary per deployment
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/btcsuite/btcd/btcutil"
)

// CoinbaseMaturity is the number of confirmations before a coinbase
// output becomes spendable. The funding phase mines one block past it.
const CoinbaseMaturity = 100

// Config holds runtime configuration for the regforge daemon.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Bitcoin node connection
	Node NodeConfig

	// HTTP API server
	HTTP HTTPConfig

	// Demo workflow
	Workflow WorkflowConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds the Bitcoin Core regtest connection settings. The URL
// may carry an http:// prefix; the gateway strips it.
type NodeConfig struct {
	URL      string `conf:"node.url"`
	User     string `conf:"node.user"`
	Password string `conf:"node.password"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Enabled     bool     `conf:"http.enabled"`
	Addr        string   `conf:"http.addr"`
	Port        int      `conf:"http.port"`
	AllowedIPs  []string `conf:"http.allowed"`
	CORSOrigins []string `conf:"http.cors"` // Allowed CORS origins ("*" = all).
}

// WorkflowConfig holds the demo workflow parameters.
type WorkflowConfig struct {
	MinerWallet  string `conf:"workflow.miner"`
	TraderWallet string `conf:"workflow.trader"`

	// InitialBlocks is how many blocks the funding phase mines. Must
	// exceed CoinbaseMaturity for the first reward to become spendable.
	InitialBlocks int64 `conf:"workflow.initial_blocks"`

	// SendAmount is the demo payment size. The conf key takes BTC.
	SendAmount btcutil.Amount `conf:"workflow.send_amount"`

	// SinkFile is where the reconciled record's ten-line rendering goes.
	SinkFile string `conf:"workflow.sink"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.regforge
//	macOS:   ~/Library/Application Support/Regforge
//	Windows: %APPDATA%\Regforge
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".regforge"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Regforge")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Regforge")
		}
		return filepath.Join(home, "AppData", "Roaming", "Regforge")
	default:
		return filepath.Join(home, ".regforge")
	}
}

// RecordsDir returns the record database directory.
func (c *Config) RecordsDir() string {
	return filepath.Join(c.DataDir, "records")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "regforge.conf")
}
