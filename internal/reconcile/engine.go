package reconcile

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/rs/zerolog"

	"github.com/regforge/regforge/internal/gateway"
	klog "github.com/regforge/regforge/internal/log"
)

// Engine derives TransactionRecords from node data. It never trusts the
// wallet's own fee or amount fields: input and output sums are recomputed
// from the decoded transaction so the record is internally consistent.
type Engine struct {
	node   gateway.Node
	params *chaincfg.Params
	logger zerolog.Logger
}

// NewEngine returns an Engine reconciling against the given node.
func NewEngine(node gateway.Node, params *chaincfg.Params) *Engine {
	return &Engine{
		node:   node,
		params: params,
		logger: klog.Reconcile,
	}
}

// Reconcile classifies every output of the named transaction against the
// destination address and the sending wallet's ownership, resolves every
// input through the wallet's view of its funding transactions, derives
// the fee as the input/output difference and stamps the confirming block.
//
// The destination output is matched by address equality with toAddress.
// Exactly one output may match; more than one is ambiguous. Of the
// remaining outputs, at most one wallet-owned output is accepted as
// change; none is valid for an exact-value spend.
func (e *Engine) Reconcile(wallet, txid, toAddress string) (*TransactionRecord, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, gateway.WrapFault(gateway.CodeTxNotFound, "reconcile", err)
	}

	wtx, err := e.node.WalletTransaction(wallet, hash)
	if err != nil {
		return nil, err
	}

	var (
		outTotal     btcutil.Amount
		counterparty *Endpoint
		change       *Endpoint
	)
	for i, txOut := range wtx.MsgTx.TxOut {
		amount := btcutil.Amount(txOut.Value)
		outTotal += amount

		addr, ok := e.outputAddress(txOut.PkScript)
		if !ok {
			// Outputs without an address form (op_return and the like)
			// count toward the fee but classify as neither side.
			continue
		}
		if addr == toAddress {
			if counterparty != nil {
				return nil, gateway.NewFault(gateway.CodeAmbiguousChange, "reconcile",
					"multiple outputs pay the destination address")
			}
			counterparty = &Endpoint{Address: addr, Amount: amount}
			continue
		}

		owned, err := e.node.OwnsAddress(wallet, addr)
		if err != nil {
			return nil, gateway.WrapFault(gateway.CodeOwnershipUnresolved, "reconcile", err)
		}
		if !owned {
			e.logger.Debug().Str("txid", txid).Int("vout", i).Str("address", addr).
				Msg("unattributed output")
			continue
		}
		if change != nil {
			return nil, gateway.NewFault(gateway.CodeAmbiguousChange, "reconcile",
				"more than one wallet-owned non-destination output")
		}
		change = &Endpoint{Address: addr, Amount: amount}
	}
	if counterparty == nil {
		return nil, gateway.NewFault(gateway.CodeInvalidAddress, "reconcile",
			"no output pays the destination address")
	}

	inTotal, inputAddr, err := e.resolveInputs(wallet, wtx)
	if err != nil {
		return nil, err
	}

	fee := inTotal - outTotal
	if fee < 0 {
		return nil, gateway.NewFault(gateway.CodeInternal, "reconcile",
			"output total exceeds input total")
	}

	var confirmation Confirmation
	if wtx.BlockHash != "" {
		stamp, err := e.node.BlockInfo(wtx.BlockHash)
		if err != nil {
			return nil, err
		}
		confirmation = Confirmation{
			Confirmed:   true,
			BlockHeight: stamp.Height,
			BlockHash:   stamp.Hash,
		}
	}

	record := &TransactionRecord{
		TxID:         wtx.TxID,
		Input:        Endpoint{Address: inputAddr, Amount: inTotal},
		Output:       *counterparty,
		Change:       change,
		Fee:          fee,
		Confirmation: confirmation,
	}

	e.logger.Info().
		Str("txid", record.TxID).
		Str("fee", fee.String()).
		Bool("change", change != nil).
		Bool("confirmed", confirmation.Confirmed).
		Msg("transaction reconciled")

	return record, nil
}

// resolveInputs walks the transaction's inputs, looks up each funding
// transaction through the wallet and sums the consumed output values.
// The first input with a decodable address represents the sender side.
// Any input the wallet cannot account for makes the fee underivable.
func (e *Engine) resolveInputs(wallet string, wtx *gateway.WalletTx) (btcutil.Amount, string, error) {
	var (
		total btcutil.Amount
		addr  string
	)
	for _, txIn := range wtx.MsgTx.TxIn {
		prevHash := txIn.PreviousOutPoint.Hash
		prev, err := e.node.WalletTransaction(wallet, &prevHash)
		if err != nil {
			return 0, "", gateway.WrapFault(gateway.CodeOwnershipUnresolved, "reconcile", err)
		}
		idx := txIn.PreviousOutPoint.Index
		if idx >= uint32(len(prev.MsgTx.TxOut)) {
			return 0, "", gateway.NewFault(gateway.CodeOwnershipUnresolved, "reconcile",
				"input references an output index past the funding transaction")
		}
		prevOut := prev.MsgTx.TxOut[idx]
		total += btcutil.Amount(prevOut.Value)
		if addr == "" {
			if a, ok := e.outputAddress(prevOut.PkScript); ok {
				addr = a
			}
		}
	}
	if len(wtx.MsgTx.TxIn) == 0 {
		return 0, "", gateway.NewFault(gateway.CodeOwnershipUnresolved, "reconcile",
			"transaction has no inputs")
	}
	return total, addr, nil
}

// outputAddress extracts the single address encoded by a standard output
// script. Non-standard and multi-address scripts report no address.
func (e *Engine) outputAddress(pkScript []byte) (string, bool) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, e.params)
	if err != nil || len(addrs) != 1 {
		return "", false
	}
	return addrs[0].EncodeAddress(), true
}
