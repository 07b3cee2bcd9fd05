package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// LoadFile loads daemon configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "datadir":
		cfg.DataDir = value

	// Node
	case "node.url":
		cfg.Node.URL = value
	case "node.user":
		cfg.Node.User = value
	case "node.password":
		cfg.Node.Password = value

	// HTTP
	case "http.enabled", "http":
		cfg.HTTP.Enabled = parseBool(value)
	case "http.addr":
		cfg.HTTP.Addr = value
	case "http.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.HTTP.Port = port
	case "http.allowed":
		cfg.HTTP.AllowedIPs = parseStringList(value)
	case "http.cors":
		cfg.HTTP.CORSOrigins = parseStringList(value)

	// Workflow
	case "workflow.miner":
		cfg.Workflow.MinerWallet = value
	case "workflow.trader":
		cfg.Workflow.TraderWallet = value
	case "workflow.initial_blocks":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Workflow.InitialBlocks = n
	case "workflow.send_amount":
		btc, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		amount, err := btcutil.NewAmount(btc)
		if err != nil {
			return err
		}
		cfg.Workflow.SendAmount = amount
	case "workflow.sink":
		cfg.Workflow.SinkFile = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default daemon configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Regforge Daemon Configuration
#
# Regforge drives a Bitcoin Core node in regtest mode. The node must be
# running with -regtest -server and matching RPC credentials.

# Data directory (default: ~/.regforge)
# datadir = ~/.regforge

# ============================================================================
# Bitcoin node (regtest)
# ============================================================================

node.url = 127.0.0.1:18443
node.user = bitcoin
node.password = bitcoin

# ============================================================================
# HTTP API Server
# ============================================================================

http.enabled = true
http.addr = 127.0.0.1
http.port = 8021
http.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# http.cors = http://localhost:3000

# ============================================================================
# Demo Workflow
# ============================================================================

workflow.miner = Miner
workflow.trader = Trader

# Blocks mined during funding. Must exceed coinbase maturity (100).
workflow.initial_blocks = 101

# Demo payment size in BTC.
workflow.send_amount = 20.0

# Where the reconciled record's ten-line file is written.
# workflow.sink = ~/.regforge/transaction.txt

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
