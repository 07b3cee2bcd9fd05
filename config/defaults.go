package config

import (
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
)

// Default returns the default daemon configuration: a local regtest node
// with bitcoind's default regtest RPC port and the Miner/Trader demo pair.
func Default() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		DataDir: dataDir,
		Node: NodeConfig{
			URL:      "127.0.0.1:18443",
			User:     "bitcoin",
			Password: "bitcoin",
		},
		HTTP: HTTPConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8021,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Workflow: WorkflowConfig{
			MinerWallet:   "Miner",
			TraderWallet:  "Trader",
			InitialBlocks: CoinbaseMaturity + 1,
			SendAmount:    20 * btcutil.SatoshiPerBitcoin,
			SinkFile:      filepath.Join(dataDir, "transaction.txt"),
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
