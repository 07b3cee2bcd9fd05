package gateway

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Node is the gateway contract consumed by the registry, the orchestrator
// and the reconciliation engine. The production implementation talks to a
// Bitcoin Core node; tests substitute an in-process fake.
type Node interface {
	// ListWallets returns the names of the wallets currently loaded.
	ListWallets() ([]string, error)

	// CreateWallet creates a wallet with default descriptor settings.
	CreateWallet(name string) error

	// LoadWallet loads an existing on-disk wallet. Loading a wallet that
	// is already loaded is not an error.
	LoadWallet(name string) error

	// NewAddress returns a fresh bech32 receiving address for the wallet,
	// tagged with label for later attribution.
	NewAddress(wallet, label string) (btcutil.Address, error)

	// Balance returns the wallet's spendable balance.
	Balance(wallet string) (btcutil.Amount, error)

	// GenerateToAddress mines blocks paying rewards to addr. It returns
	// once the node reports the new chain tip.
	GenerateToAddress(wallet string, addr btcutil.Address, blocks int64) ([]*chainhash.Hash, error)

	// SendToAddress asks the node to construct, sign and broadcast a
	// payment from the wallet.
	SendToAddress(wallet string, addr btcutil.Address, amount btcutil.Amount, comment string) (*chainhash.Hash, error)

	// MempoolEntry looks up a transaction in the node's mempool.
	MempoolEntry(txid *chainhash.Hash) (*MempoolEntry, error)

	// WalletTransaction fetches a wallet transaction with its raw form
	// decoded, scoped to the wallet so input ownership is known.
	WalletTransaction(wallet string, txid *chainhash.Hash) (*WalletTx, error)

	// OwnsAddress reports whether the wallet owns the given address.
	OwnsAddress(wallet, address string) (bool, error)

	// BlockInfo resolves a block hash to its height and timestamp.
	BlockInfo(hash string) (*BlockStamp, error)

	// BlockCount returns the current chain tip height.
	BlockCount() (int64, error)
}

// MempoolEntry describes a transaction waiting in the node's mempool.
type MempoolEntry struct {
	TxID            string         `json:"txid"`
	VSize           int64          `json:"vsize"`
	Weight          int64          `json:"weight"`
	Time            int64          `json:"time"`
	Height          int64          `json:"height"`
	Fee             btcutil.Amount `json:"fee"`
	AncestorCount   int64          `json:"ancestor_count"`
	DescendantCount int64          `json:"descendant_count"`
	WTxID           string         `json:"wtxid"`
	Depends         []string       `json:"depends"`
}

// WalletTx is a wallet-scoped view of a transaction: the decoded raw form
// plus the confirmation metadata the wallet tracks for it.
type WalletTx struct {
	TxID          string
	MsgTx         *wire.MsgTx
	BlockHash     string
	Confirmations int64
	Fee           btcutil.Amount
	Amount        btcutil.Amount
	Time          int64
}

// BlockStamp identifies a confirmed block.
type BlockStamp struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Time   int64  `json:"time"`
}

// mempoolEntryResult mirrors bitcoind's getmempoolentry response. btcd's
// typed wrapper predates the fees object, so the gateway issues the call
// through RawRequest and decodes it here.
type mempoolEntryResult struct {
	VSize           int64    `json:"vsize"`
	Weight          int64    `json:"weight"`
	Time            int64    `json:"time"`
	Height          int64    `json:"height"`
	DescendantCount int64    `json:"descendantcount"`
	AncestorCount   int64    `json:"ancestorcount"`
	WTxID           string   `json:"wtxid"`
	Depends         []string `json:"depends"`
	Fees            struct {
		Base float64 `json:"base"`
	} `json:"fees"`
}

// addressInfoResult is the subset of getaddressinfo the gateway needs.
type addressInfoResult struct {
	IsMine bool `json:"ismine"`
}
