// Package gateway wraps the Bitcoin Core JSON-RPC interface behind the
// Node contract the rest of the system consumes. The node owns all chain
// and wallet state; this package only translates calls and errors.
package gateway

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/rs/zerolog"

	klog "github.com/regforge/regforge/internal/log"
)

// Config holds the connection settings for the node's RPC endpoint.
type Config struct {
	// Host is the RPC endpoint as host:port. A leading http:// or
	// https:// scheme is tolerated and stripped.
	Host string
	User string
	Pass string
}

// Gateway talks to a Bitcoin Core node over HTTP POST JSON-RPC. Wallet
// operations go through per-wallet endpoints (/wallet/<name>), with one
// cached client per wallet. All mutation is serialized by the node itself;
// the cache mutex only guards the map.
type Gateway struct {
	cfg    Config
	params *chaincfg.Params
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*rpcclient.Client
}

// Compile-time contract check.
var _ Node = (*Gateway)(nil)

// New creates a gateway for the given node endpoint and network.
func New(cfg Config, params *chaincfg.Params) *Gateway {
	cfg.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.Host, "http://"), "https://")
	return &Gateway{
		cfg:     cfg,
		params:  params,
		logger:  klog.Gateway,
		clients: make(map[string]*rpcclient.Client),
	}
}

// Params returns the network parameters the gateway validates against.
func (g *Gateway) Params() *chaincfg.Params {
	return g.params
}

// client returns the cached RPC client for a wallet endpoint, creating it
// on first use. An empty wallet name targets the node's base endpoint.
func (g *Gateway) client(wallet string) (*rpcclient.Client, error) {
	g.mu.RLock()
	c, ok := g.clients[wallet]
	g.mu.RUnlock()
	if ok {
		return c, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[wallet]; ok {
		return c, nil
	}

	host := g.cfg.Host
	if wallet != "" {
		host = fmt.Sprintf("%s/wallet/%s", g.cfg.Host, wallet)
	}
	c, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:                 host,
		User:                 g.cfg.User,
		Pass:                 g.cfg.Pass,
		HTTPPostMode:         true,
		DisableTLS:           true,
		DisableConnectOnNew:  true,
		DisableAutoReconnect: true,
	}, nil)
	if err != nil {
		return nil, WrapFault(CodeNodeUnavailable, "connect", err)
	}
	g.clients[wallet] = c
	return c, nil
}

// Close shuts down all cached RPC clients.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.clients {
		c.Shutdown()
	}
	g.clients = make(map[string]*rpcclient.Client)
}

// ListWallets returns the names of the wallets currently loaded. btcd's
// client has no typed wrapper for listwallets, so this goes through
// RawRequest.
func (g *Gateway) ListWallets() ([]string, error) {
	c, err := g.client("")
	if err != nil {
		return nil, err
	}
	res, err := c.RawRequest("listwallets", nil)
	if err != nil {
		return nil, classify("listwallets", err, CodeInternal)
	}
	var wallets []string
	if err := json.Unmarshal(res, &wallets); err != nil {
		return nil, WrapFault(CodeInternal, "listwallets", err)
	}
	return wallets, nil
}

// CreateWallet creates a wallet with the node's default descriptor and
// address-type settings.
func (g *Gateway) CreateWallet(name string) error {
	c, err := g.client("")
	if err != nil {
		return err
	}
	if _, err := c.CreateWallet(name); err != nil {
		return classify("createwallet", err, CodeWalletConflict)
	}
	g.logger.Info().Str("wallet", name).Msg("wallet created")
	return nil
}

// LoadWallet loads an existing on-disk wallet. A wallet that is already
// loaded is treated as success.
func (g *Gateway) LoadWallet(name string) error {
	c, err := g.client("")
	if err != nil {
		return err
	}
	if _, err := c.LoadWallet(name); err != nil {
		if rpcCode(err) == walletAlreadyLoaded {
			return nil
		}
		return classify("loadwallet", err, CodeWalletNotFound)
	}
	g.logger.Info().Str("wallet", name).Msg("wallet loaded")
	return nil
}

// NewAddress requests a fresh bech32 address from the wallet. The address
// type is pinned because downstream classification keys off address
// equality, so the encoding must be stable across the workflow.
func (g *Gateway) NewAddress(wallet, label string) (btcutil.Address, error) {
	c, err := g.client(wallet)
	if err != nil {
		return nil, err
	}
	params, err := marshalParams(label, "bech32")
	if err != nil {
		return nil, WrapFault(CodeInternal, "getnewaddress", err)
	}
	res, err := c.RawRequest("getnewaddress", params)
	if err != nil {
		return nil, classify("getnewaddress", err, CodeWalletNotFound)
	}
	var addrStr string
	if err := json.Unmarshal(res, &addrStr); err != nil {
		return nil, WrapFault(CodeInternal, "getnewaddress", err)
	}
	addr, err := btcutil.DecodeAddress(addrStr, g.params)
	if err != nil {
		return nil, WrapFault(CodeInvalidAddress, "getnewaddress", err)
	}
	if !addr.IsForNet(g.params) {
		return nil, NewFault(CodeInvalidAddress, "getnewaddress",
			fmt.Sprintf("address %s is not for network %s", addrStr, g.params.Name))
	}
	return addr, nil
}

// Balance returns the wallet's spendable balance.
func (g *Gateway) Balance(wallet string) (btcutil.Amount, error) {
	c, err := g.client(wallet)
	if err != nil {
		return 0, err
	}
	bal, err := c.GetBalance("*")
	if err != nil {
		return 0, classify("getbalance", err, CodeWalletNotFound)
	}
	return bal, nil
}

// GenerateToAddress mines blocks paying rewards to addr, returning once
// the node reports the new tip.
func (g *Gateway) GenerateToAddress(wallet string, addr btcutil.Address, blocks int64) ([]*chainhash.Hash, error) {
	c, err := g.client(wallet)
	if err != nil {
		return nil, err
	}
	hashes, err := c.GenerateToAddress(blocks, addr, nil)
	if err != nil {
		return nil, classify("generatetoaddress", err, CodeInvalidAddress)
	}
	g.logger.Debug().Int64("blocks", blocks).Str("address", addr.EncodeAddress()).Msg("mined")
	return hashes, nil
}

// SendToAddress asks the node to construct, sign and broadcast a payment
// from the wallet.
func (g *Gateway) SendToAddress(wallet string, addr btcutil.Address, amount btcutil.Amount, comment string) (*chainhash.Hash, error) {
	c, err := g.client(wallet)
	if err != nil {
		return nil, err
	}
	var txid *chainhash.Hash
	if comment != "" {
		txid, err = c.SendToAddressComment(addr, amount, comment, "")
	} else {
		txid, err = c.SendToAddress(addr, amount)
	}
	if err != nil {
		return nil, classify("sendtoaddress", err, CodeInvalidAddress)
	}
	g.logger.Info().
		Str("wallet", wallet).
		Str("address", addr.EncodeAddress()).
		Str("amount", amount.String()).
		Str("txid", txid.String()).
		Msg("payment broadcast")
	return txid, nil
}

// MempoolEntry looks up a transaction in the node's mempool. The call goes
// through RawRequest because btcd's typed getmempoolentry result predates
// bitcoind's fees object.
func (g *Gateway) MempoolEntry(txid *chainhash.Hash) (*MempoolEntry, error) {
	c, err := g.client("")
	if err != nil {
		return nil, err
	}
	params, err := marshalParams(txid.String())
	if err != nil {
		return nil, WrapFault(CodeInternal, "getmempoolentry", err)
	}
	res, err := c.RawRequest("getmempoolentry", params)
	if err != nil {
		return nil, classify("getmempoolentry", err, CodeNotInMempool)
	}
	var raw mempoolEntryResult
	if err := json.Unmarshal(res, &raw); err != nil {
		return nil, WrapFault(CodeInternal, "getmempoolentry", err)
	}
	fee, err := btcutil.NewAmount(raw.Fees.Base)
	if err != nil {
		return nil, WrapFault(CodeInternal, "getmempoolentry", err)
	}
	return &MempoolEntry{
		TxID:            txid.String(),
		VSize:           raw.VSize,
		Weight:          raw.Weight,
		Time:            raw.Time,
		Height:          raw.Height,
		Fee:             fee,
		AncestorCount:   raw.AncestorCount,
		DescendantCount: raw.DescendantCount,
		WTxID:           raw.WTxID,
		Depends:         raw.Depends,
	}, nil
}

// WalletTransaction fetches a wallet transaction and decodes its raw form.
// The wallet scope is what later lets the reconciler resolve input
// ownership.
func (g *Gateway) WalletTransaction(wallet string, txid *chainhash.Hash) (*WalletTx, error) {
	c, err := g.client(wallet)
	if err != nil {
		return nil, err
	}
	res, err := c.GetTransaction(txid)
	if err != nil {
		return nil, classify("gettransaction", err, CodeTxNotFound)
	}

	rawBytes, err := hex.DecodeString(res.Hex)
	if err != nil {
		return nil, WrapFault(CodeInternal, "gettransaction", err)
	}
	msgTx := wire.NewMsgTx(wire.TxVersion)
	if err := msgTx.Deserialize(bytes.NewReader(rawBytes)); err != nil {
		return nil, WrapFault(CodeInternal, "gettransaction", err)
	}

	fee, err := btcutil.NewAmount(res.Fee)
	if err != nil {
		return nil, WrapFault(CodeInternal, "gettransaction", err)
	}
	amount, err := btcutil.NewAmount(res.Amount)
	if err != nil {
		return nil, WrapFault(CodeInternal, "gettransaction", err)
	}
	return &WalletTx{
		TxID:          res.TxID,
		MsgTx:         msgTx,
		BlockHash:     res.BlockHash,
		Confirmations: res.Confirmations,
		Fee:           fee,
		Amount:        amount,
		Time:          res.Time,
	}, nil
}

// OwnsAddress reports whether the wallet owns the given address.
func (g *Gateway) OwnsAddress(wallet, address string) (bool, error) {
	c, err := g.client(wallet)
	if err != nil {
		return false, err
	}
	params, err := marshalParams(address)
	if err != nil {
		return false, WrapFault(CodeInternal, "getaddressinfo", err)
	}
	res, err := c.RawRequest("getaddressinfo", params)
	if err != nil {
		return false, classify("getaddressinfo", err, CodeInvalidAddress)
	}
	var info addressInfoResult
	if err := json.Unmarshal(res, &info); err != nil {
		return false, WrapFault(CodeInternal, "getaddressinfo", err)
	}
	return info.IsMine, nil
}

// BlockInfo resolves a block hash to its height and timestamp.
func (g *Gateway) BlockInfo(hash string) (*BlockStamp, error) {
	c, err := g.client("")
	if err != nil {
		return nil, err
	}
	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, WrapFault(CodeInternal, "getblock", err)
	}
	block, err := c.GetBlockVerbose(h)
	if err != nil {
		return nil, classify("getblock", err, CodeInternal)
	}
	return &BlockStamp{
		Hash:   block.Hash,
		Height: block.Height,
		Time:   block.Time,
	}, nil
}

// BlockCount returns the current chain tip height.
func (g *Gateway) BlockCount() (int64, error) {
	c, err := g.client("")
	if err != nil {
		return 0, err
	}
	count, err := c.GetBlockCount()
	if err != nil {
		return 0, classify("getblockcount", err, CodeInternal)
	}
	return count, nil
}

// marshalParams encodes positional JSON-RPC parameters for RawRequest.
func marshalParams(vals ...interface{}) ([]json.RawMessage, error) {
	params := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		params = append(params, data)
	}
	return params, nil
}
