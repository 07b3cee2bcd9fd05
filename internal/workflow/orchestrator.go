// Package workflow drives the regtest demo lifecycle: wallet setup,
// funding past coinbase maturity, a peer-to-peer payment, mempool
// observation, confirmation by mining, and reconciliation of the result.
package workflow

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"

	"github.com/regforge/regforge/config"
	"github.com/regforge/regforge/internal/gateway"
	klog "github.com/regforge/regforge/internal/log"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/store"
	"github.com/regforge/regforge/internal/wallet"
)

// State is a stage of the demo lifecycle. A run only moves forward; a
// failed run resets to Idle so it can be retried from scratch.
type State int

const (
	StateIdle State = iota
	StateWalletsReady
	StateFunded
	StateSent
	StateMempoolSeen
	StateConfirmed
	StateReconciled
)

// String returns the lifecycle name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWalletsReady:
		return "wallets_ready"
	case StateFunded:
		return "funded"
	case StateSent:
		return "sent"
	case StateMempoolSeen:
		return "mempool_seen"
	case StateConfirmed:
		return "confirmed"
	case StateReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// transitions is the single legal successor of each state.
var transitions = map[State]State{
	StateIdle:         StateWalletsReady,
	StateWalletsReady: StateFunded,
	StateFunded:       StateSent,
	StateSent:         StateMempoolSeen,
	StateMempoolSeen:  StateConfirmed,
	StateConfirmed:    StateReconciled,
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Node     gateway.Node
	Registry *wallet.Registry
	Engine   *reconcile.Engine
	Records  *store.Records
	Sink     *store.Sink
	Params   *chaincfg.Params
}

// Orchestrator sequences the demo workflow and exposes its individual
// operations for ad-hoc use. Mine, Send and InspectMempool are stateless
// façade calls; Run owns the lifecycle state machine and rejects
// overlapping runs.
type Orchestrator struct {
	cfg     config.WorkflowConfig
	node    gateway.Node
	reg     *wallet.Registry
	engine  *reconcile.Engine
	records *store.Records
	sink    *store.Sink
	params  *chaincfg.Params
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
}

// New creates an orchestrator in the Idle state.
func New(cfg config.WorkflowConfig, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		node:    deps.Node,
		reg:     deps.Registry,
		engine:  deps.Engine,
		records: deps.Records,
		sink:    deps.Sink,
		params:  deps.Params,
		logger:  klog.Workflow,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// advance moves the state machine to next, rejecting anything that is
// not the current state's legal successor.
func (o *Orchestrator) advance(next State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if transitions[o.state] != next {
		return gateway.NewFault(gateway.CodeInvalidState, "advance",
			"cannot move from "+o.state.String()+" to "+next.String())
	}
	o.logger.Debug().Stringer("from", o.state).Stringer("to", next).Msg("state advance")
	o.state = next
	return nil
}

// Mine generates blocks paying rewards to the given address, or to a
// fresh address of the wallet when none is supplied. Zero or negative
// counts are rejected before touching the node.
func (o *Orchestrator) Mine(walletName, toAddress string, blocks int64) ([]*chainhash.Hash, error) {
	if blocks <= 0 {
		return nil, gateway.NewFault(gateway.CodeInvalidBlockCount, "mine",
			"block count must be positive")
	}

	var addr btcutil.Address
	var err error
	if toAddress == "" {
		addr, err = o.reg.NewAddressDecoded(walletName, "Mining Reward")
		if err != nil {
			return nil, err
		}
	} else {
		addr, err = btcutil.DecodeAddress(toAddress, o.params)
		if err != nil {
			return nil, gateway.WrapFault(gateway.CodeInvalidAddress, "mine", err)
		}
		if !addr.IsForNet(o.params) {
			return nil, gateway.NewFault(gateway.CodeInvalidAddress, "mine",
				"address is not valid for "+o.params.Name)
		}
	}

	hashes, err := o.node.GenerateToAddress(walletName, addr, blocks)
	if err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("wallet", walletName).
		Str("to", addr.EncodeAddress()).
		Int64("blocks", blocks).
		Msg("blocks mined")
	return hashes, nil
}

// Send validates and broadcasts a payment from the wallet. The spendable
// balance is checked before the node call so underfunded sends fail with
// a clean InsufficientFunds instead of a node-side reject.
func (o *Orchestrator) Send(fromWallet, toAddress string, amount btcutil.Amount, message string) (*chainhash.Hash, error) {
	if amount <= 0 {
		return nil, gateway.NewFault(gateway.CodeInsufficientFunds, "send",
			"amount must be positive")
	}
	addr, err := btcutil.DecodeAddress(toAddress, o.params)
	if err != nil {
		return nil, gateway.WrapFault(gateway.CodeInvalidAddress, "send", err)
	}
	if !addr.IsForNet(o.params) {
		return nil, gateway.NewFault(gateway.CodeInvalidAddress, "send",
			"address is not valid for "+o.params.Name)
	}

	balance, err := o.node.Balance(fromWallet)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, gateway.NewFault(gateway.CodeInsufficientFunds, "send",
			"spendable balance "+balance.String()+" is below "+amount.String())
	}

	txid, err := o.node.SendToAddress(fromWallet, addr, amount, message)
	if err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("wallet", fromWallet).
		Str("to", toAddress).
		Str("amount", amount.String()).
		Stringer("txid", txid).
		Msg("payment sent")
	return txid, nil
}

// InspectMempool looks up the transaction in the node's mempool. An
// absent entry is reported as NotInMempool, which callers may treat as
// informational once the transaction has been mined.
func (o *Orchestrator) InspectMempool(txid string) (*gateway.MempoolEntry, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, gateway.WrapFault(gateway.CodeNotInMempool, "mempool", err)
	}
	return o.node.MempoolEntry(hash)
}

// Run executes the full demo: ensure the miner and trader wallets, mine
// the funding blocks, pay the trader, observe the mempool, confirm with
// one more block, reconcile the payment and persist the record. Only one
// run may be in flight; a completed run may be started over.
func (o *Orchestrator) Run() (record *reconcile.TransactionRecord, err error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			o.reset()
		}
	}()

	// Wallets
	if _, err = o.reg.Ensure(o.cfg.MinerWallet); err != nil {
		return nil, err
	}
	if _, err = o.reg.Ensure(o.cfg.TraderWallet); err != nil {
		return nil, err
	}
	if err = o.advance(StateWalletsReady); err != nil {
		return nil, err
	}

	// Funding: mine past coinbase maturity so the first reward spends.
	minerAddr, err := o.reg.NewAddressDecoded(o.cfg.MinerWallet, "Mining Reward")
	if err != nil {
		return nil, err
	}
	if _, err = o.node.GenerateToAddress(o.cfg.MinerWallet, minerAddr, o.cfg.InitialBlocks); err != nil {
		return nil, err
	}
	balance, err := o.node.Balance(o.cfg.MinerWallet)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, gateway.NewFault(gateway.CodeInternal, "run",
			"no spendable balance after mining "+o.cfg.MinerWallet+" funding blocks")
	}
	if err = o.advance(StateFunded); err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("wallet", o.cfg.MinerWallet).
		Str("balance", balance.String()).
		Msg("funding complete")

	// Payment
	traderAddr, err := o.reg.NewAddress(o.cfg.TraderWallet, "Received")
	if err != nil {
		return nil, err
	}
	txid, err := o.Send(o.cfg.MinerWallet, traderAddr.Address, o.cfg.SendAmount, "demo payment")
	if err != nil {
		return nil, err
	}
	if err = o.advance(StateSent); err != nil {
		return nil, err
	}

	// Mempool observation. A missing entry here means the transaction
	// was mined out from under us, which does not stop the run.
	entry, err := o.InspectMempool(txid.String())
	switch {
	case err == nil:
		o.logger.Info().
			Str("txid", entry.TxID).
			Str("fee", entry.Fee.String()).
			Int64("vsize", entry.VSize).
			Msg("transaction in mempool")
	case gateway.IsCode(err, gateway.CodeNotInMempool):
		o.logger.Warn().Stringer("txid", txid).Msg("transaction not in mempool")
	default:
		return nil, err
	}
	if err = o.advance(StateMempoolSeen); err != nil {
		return nil, err
	}

	// Confirmation is driven by mining, never by waiting.
	if _, err = o.node.GenerateToAddress(o.cfg.MinerWallet, minerAddr, 1); err != nil {
		return nil, err
	}
	if err = o.advance(StateConfirmed); err != nil {
		return nil, err
	}

	// Reconcile and persist.
	record, err = o.engine.Reconcile(o.cfg.MinerWallet, txid.String(), traderAddr.Address)
	if err != nil {
		return nil, err
	}
	if !record.Confirmation.Confirmed {
		return nil, gateway.NewFault(gateway.CodeInternal, "run",
			"transaction unconfirmed after mining a block")
	}
	if err = o.records.Put(record); err != nil {
		return nil, err
	}
	if err = o.sink.Write(record); err != nil {
		return nil, err
	}
	if err = o.advance(StateReconciled); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("txid", record.TxID).
		Str("fee", record.Fee.String()).
		Int64("height", record.Confirmation.BlockHeight).
		Str("sink", o.sink.Path()).
		Msg("workflow complete")
	return record, nil
}

// begin claims the state machine for a new run. A finished run is reset
// so the workflow can be demonstrated repeatedly.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateIdle:
		return nil
	case StateReconciled:
		o.state = StateIdle
		return nil
	default:
		return gateway.NewFault(gateway.CodeInvalidState, "run",
			"workflow already running in state "+o.state.String())
	}
}

// reset abandons a failed run.
func (o *Orchestrator) reset() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}
