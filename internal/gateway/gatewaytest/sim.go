// Package gatewaytest provides an in-process simulation of a regtest
// node behind the gateway.Node interface. It models just enough of the
// chain for workflow and API tests: wallet ownership, coinbase maturity,
// a mempool, and confirmation by mining.
package gatewaytest

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/regforge/regforge/internal/gateway"
)

// coinbaseReward is the fixed block subsidy the simulation pays.
const coinbaseReward = 50 * btcutil.SatoshiPerBitcoin

// coinbaseMaturity mirrors the regtest spendability rule.
const coinbaseMaturity = 100

// sendFee is the flat fee the simulated wallet charges per send.
const sendFee btcutil.Amount = 10000

type utxo struct {
	hash     chainhash.Hash
	index    uint32
	value    btcutil.Amount
	coinbase bool
	height   int64
}

type simWallet struct {
	addrs map[string]bool
	utxos []utxo
}

type simTx struct {
	msgTx     *wire.MsgTx
	blockHash string
	height    int64
}

// SimNode implements gateway.Node over in-memory chain state.
type SimNode struct {
	params *chaincfg.Params

	mu       sync.Mutex
	wallets  map[string]*simWallet
	loaded   map[string]bool
	txs      map[chainhash.Hash]*simTx
	mempool  map[chainhash.Hash]*gateway.MempoolEntry
	blocks   map[string]*gateway.BlockStamp
	height   int64
	addrSeed uint32
}

// NewSimNode returns an empty simulated regtest node.
func NewSimNode() *SimNode {
	return &SimNode{
		params:  &chaincfg.RegressionNetParams,
		wallets: make(map[string]*simWallet),
		loaded:  make(map[string]bool),
		txs:     make(map[chainhash.Hash]*simTx),
		mempool: make(map[chainhash.Hash]*gateway.MempoolEntry),
		blocks:  make(map[string]*gateway.BlockStamp),
	}
}

var _ gateway.Node = (*SimNode)(nil)

func (s *SimNode) ListWallets() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.loaded))
	for name := range s.loaded {
		names = append(names, name)
	}
	return names, nil
}

func (s *SimNode) CreateWallet(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[name]; ok {
		return gateway.NewFault(gateway.CodeWalletConflict, "createwallet",
			"wallet already exists")
	}
	s.wallets[name] = &simWallet{addrs: make(map[string]bool)}
	s.loaded[name] = true
	return nil
}

func (s *SimNode) LoadWallet(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[name]; !ok {
		return gateway.NewFault(gateway.CodeWalletNotFound, "loadwallet",
			"wallet does not exist")
	}
	s.loaded[name] = true
	return nil
}

// UnloadAll drops every wallet from the loaded set while keeping its
// on-disk state, mimicking a node restart.
func (s *SimNode) UnloadAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = make(map[string]bool)
}

func (s *SimNode) NewAddress(walletName, label string) (btcutil.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.wallet(walletName)
	if err != nil {
		return nil, err
	}
	s.addrSeed++
	keyHash := make([]byte, 20)
	keyHash[0] = byte(s.addrSeed >> 8)
	keyHash[1] = byte(s.addrSeed)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(keyHash, s.params)
	if err != nil {
		return nil, err
	}
	w.addrs[addr.EncodeAddress()] = true
	return addr, nil
}

func (s *SimNode) Balance(walletName string) (btcutil.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.wallet(walletName)
	if err != nil {
		return 0, err
	}
	var total btcutil.Amount
	for _, u := range w.utxos {
		if u.coinbase && s.height-u.height+1 <= coinbaseMaturity {
			continue
		}
		total += u.value
	}
	return total, nil
}

func (s *SimNode) GenerateToAddress(walletName string, addr btcutil.Address, blocks int64) ([]*chainhash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.wallet(walletName); err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	hashes := make([]*chainhash.Hash, 0, blocks)
	for i := int64(0); i < blocks; i++ {
		s.height++

		coinbase := wire.NewMsgTx(wire.TxVersion)
		prev := wire.OutPoint{Index: uint32(s.height)}
		coinbase.AddTxIn(wire.NewTxIn(&prev, nil, nil))
		coinbase.AddTxOut(wire.NewTxOut(int64(coinbaseReward), script))
		cbHash := coinbase.TxHash()

		blockHash := fmt.Sprintf("%064x", s.height)
		s.blocks[blockHash] = &gateway.BlockStamp{
			Hash:   blockHash,
			Height: s.height,
			Time:   1700000000 + s.height,
		}
		s.txs[cbHash] = &simTx{msgTx: coinbase, blockHash: blockHash, height: s.height}

		if owner := s.addressOwner(addr.EncodeAddress()); owner != nil {
			owner.utxos = append(owner.utxos, utxo{
				hash: cbHash, value: coinbaseReward, coinbase: true, height: s.height,
			})
		}

		// Every pending transaction confirms in the new block.
		for txHash := range s.mempool {
			tx := s.txs[txHash]
			tx.blockHash = blockHash
			tx.height = s.height
			delete(s.mempool, txHash)
		}

		h, err := chainhash.NewHashFromStr(blockHash)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func (s *SimNode) SendToAddress(walletName string, addr btcutil.Address, amount btcutil.Amount, comment string) (*chainhash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.wallet(walletName)
	if err != nil {
		return nil, err
	}

	// Single-UTXO selection: first mature output covering amount + fee.
	selected := -1
	for i, u := range w.utxos {
		if u.coinbase && s.height-u.height+1 <= coinbaseMaturity {
			continue
		}
		if u.value >= amount+sendFee {
			selected = i
			break
		}
	}
	if selected < 0 {
		return nil, gateway.NewFault(gateway.CodeInsufficientFunds, "sendtoaddress",
			"no spendable output covers the amount")
	}
	spent := w.utxos[selected]
	w.utxos = append(w.utxos[:selected], w.utxos[selected+1:]...)

	destScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	prev := wire.NewOutPoint(&spent.hash, spent.index)
	tx.AddTxIn(wire.NewTxIn(prev, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(amount), destScript))

	change := spent.value - amount - sendFee
	var changeAddrStr string
	if change > 0 {
		s.addrSeed++
		keyHash := make([]byte, 20)
		keyHash[0] = byte(s.addrSeed >> 8)
		keyHash[1] = byte(s.addrSeed)
		changeAddr, err := btcutil.NewAddressWitnessPubKeyHash(keyHash, s.params)
		if err != nil {
			return nil, err
		}
		changeScript, err := txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
		changeAddrStr = changeAddr.EncodeAddress()
		w.addrs[changeAddrStr] = true
	}

	txHash := tx.TxHash()
	s.txs[txHash] = &simTx{msgTx: tx}
	s.mempool[txHash] = &gateway.MempoolEntry{
		TxID:   txHash.String(),
		VSize:  int64(tx.SerializeSize()),
		Weight: int64(tx.SerializeSize() * 4),
		Time:   1700000000 + s.height,
		Height: s.height,
		Fee:    sendFee,
		WTxID:  txHash.String(),
	}

	if changeAddrStr != "" {
		w.utxos = append(w.utxos, utxo{hash: txHash, index: 1, value: change})
	}
	if recipient := s.addressOwner(addr.EncodeAddress()); recipient != nil {
		recipient.utxos = append(recipient.utxos, utxo{hash: txHash, value: amount})
	}

	return &txHash, nil
}

func (s *SimNode) MempoolEntry(txid *chainhash.Hash) (*gateway.MempoolEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.mempool[*txid]
	if !ok {
		return nil, gateway.NewFault(gateway.CodeNotInMempool, "getmempoolentry",
			"transaction not in mempool")
	}
	cp := *entry
	return &cp, nil
}

func (s *SimNode) WalletTransaction(walletName string, txid *chainhash.Hash) (*gateway.WalletTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.wallet(walletName); err != nil {
		return nil, err
	}
	tx, ok := s.txs[*txid]
	if !ok {
		return nil, gateway.NewFault(gateway.CodeTxNotFound, "gettransaction",
			"transaction unknown to wallet")
	}
	wtx := &gateway.WalletTx{
		TxID:      txid.String(),
		MsgTx:     tx.msgTx,
		BlockHash: tx.blockHash,
	}
	if tx.blockHash != "" {
		wtx.Confirmations = s.height - tx.height + 1
	}
	return wtx, nil
}

func (s *SimNode) OwnsAddress(walletName, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.wallet(walletName)
	if err != nil {
		return false, err
	}
	return w.addrs[address], nil
}

func (s *SimNode) BlockInfo(hash string) (*gateway.BlockStamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.blocks[hash]
	if !ok {
		return nil, gateway.NewFault(gateway.CodeInternal, "getblock", "unknown block")
	}
	cp := *stamp
	return &cp, nil
}

func (s *SimNode) BlockCount() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, nil
}

// wallet resolves a loaded wallet. Callers hold s.mu.
func (s *SimNode) wallet(name string) (*simWallet, error) {
	if !s.loaded[name] {
		return nil, gateway.NewFault(gateway.CodeWalletNotFound, "wallet",
			"wallet not loaded")
	}
	return s.wallets[name], nil
}

// addressOwner finds the wallet owning an address. Callers hold s.mu.
func (s *SimNode) addressOwner(address string) *simWallet {
	for _, w := range s.wallets {
		if w.addrs[address] {
			return w
		}
	}
	return nil
}
