package config

import (
	"fmt"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Node.URL == "" {
		return fmt.Errorf("node.url must be set")
	}
	if cfg.Node.User == "" || cfg.Node.Password == "" {
		return fmt.Errorf("node.user and node.password must be set")
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in range [0, 65535]")
	}
	if cfg.Workflow.MinerWallet == "" || cfg.Workflow.TraderWallet == "" {
		return fmt.Errorf("workflow.miner and workflow.trader must be set")
	}
	if cfg.Workflow.MinerWallet == cfg.Workflow.TraderWallet {
		return fmt.Errorf("workflow.miner and workflow.trader must differ")
	}
	if cfg.Workflow.InitialBlocks <= CoinbaseMaturity {
		return fmt.Errorf("workflow.initial_blocks must exceed coinbase maturity (%d)", CoinbaseMaturity)
	}
	if cfg.Workflow.SendAmount <= 0 {
		return fmt.Errorf("workflow.send_amount must be positive")
	}
	if cfg.Workflow.SinkFile == "" {
		return fmt.Errorf("workflow.sink must be set")
	}
	return nil
}
