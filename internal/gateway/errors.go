package gateway

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
)

// Code identifies a failure class in the workflow taxonomy. Callers switch
// on codes instead of matching error strings.
type Code int

const (
	// CodeNodeUnavailable marks transport or connection failures reaching
	// the node. Fatal for the request.
	CodeNodeUnavailable Code = iota + 1

	// CodeWalletNotFound marks operations against a wallet the node does
	// not know. Caller-correctable.
	CodeWalletNotFound

	// CodeWalletConflict marks wallet creation racing with an external
	// wallet of the same name in an incompatible state.
	CodeWalletConflict

	// CodeInvalidAddress marks an address the node rejected or that fails
	// network validation.
	CodeInvalidAddress

	// CodeInvalidBlockCount marks a mining request for zero blocks.
	CodeInvalidBlockCount

	// CodeInsufficientFunds marks a send exceeding the spendable balance.
	CodeInsufficientFunds

	// CodeBroadcastRejected marks a node-side policy rejection of a
	// broadcast (fee too low, dust output). The node's message is kept.
	CodeBroadcastRejected

	// CodeNotInMempool marks a mempool lookup for a transaction the node
	// has already mined or never saw. Reportable, not fatal.
	CodeNotInMempool

	// CodeTxNotFound marks a transaction lookup the wallet cannot answer.
	CodeTxNotFound

	// CodeAmbiguousChange marks a transaction whose outputs violate the
	// single-change assumption. Surfaced, never guessed.
	CodeAmbiguousChange

	// CodeOwnershipUnresolved marks an input whose originating output the
	// node cannot resolve (e.g. pruned history).
	CodeOwnershipUnresolved

	// CodeInvalidState marks an orchestrator state transition that is not
	// part of the workflow.
	CodeInvalidState

	// CodeInternal marks inconsistent node responses and other faults of
	// the system itself.
	CodeInternal
)

// String returns the taxonomy name of the code.
func (c Code) String() string {
	switch c {
	case CodeNodeUnavailable:
		return "node unavailable"
	case CodeWalletNotFound:
		return "wallet not found"
	case CodeWalletConflict:
		return "wallet conflict"
	case CodeInvalidAddress:
		return "invalid address"
	case CodeInvalidBlockCount:
		return "invalid block count"
	case CodeInsufficientFunds:
		return "insufficient funds"
	case CodeBroadcastRejected:
		return "broadcast rejected"
	case CodeNotInMempool:
		return "not in mempool"
	case CodeTxNotFound:
		return "transaction not found"
	case CodeAmbiguousChange:
		return "ambiguous change"
	case CodeOwnershipUnresolved:
		return "ownership resolution failed"
	case CodeInvalidState:
		return "invalid workflow state"
	default:
		return "internal error"
	}
}

// Fault is a tagged error carrying the failure class, the operation that
// produced it, and the originating node error (if any) for diagnosis.
type Fault struct {
	Code   Code
	Op     string
	Detail string
	Err    error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s: %s", f.Op, f.Code)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap exposes the wrapped node error for errors.Is/As.
func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault builds a fault for a failure detected locally (no node error).
func NewFault(code Code, op, detail string) *Fault {
	return &Fault{Code: code, Op: op, Detail: detail}
}

// WrapFault builds a fault around a node error.
func WrapFault(code Code, op string, err error) *Fault {
	return &Fault{Code: code, Op: op, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain. Errors that are
// not faults classify as CodeInternal.
func CodeOf(err error) Code {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// walletAlreadyLoaded is bitcoind's RPC_WALLET_ALREADY_LOADED. btcjson has
// no constant for it (the code is bitcoind-specific).
const walletAlreadyLoaded btcjson.RPCErrorCode = -35

// rpcCode extracts the JSON-RPC error code, or 0 when err is not one.
func rpcCode(err error) btcjson.RPCErrorCode {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}

// classify maps a node error onto the taxonomy. The missing code is used
// for bitcoind's -5, whose meaning depends on the call site (bad address,
// unknown transaction, or absent mempool entry). Anything that is not a
// JSON-RPC error is a transport failure.
func classify(op string, err error, missing Code) error {
	var rpcErr *btcjson.RPCError
	if !errors.As(err, &rpcErr) {
		return WrapFault(CodeNodeUnavailable, op, err)
	}

	switch rpcErr.Code {
	case btcjson.ErrRPCInvalidAddressOrKey:
		return WrapFault(missing, op, err)
	case btcjson.ErrRPCWallet:
		return WrapFault(CodeWalletConflict, op, err)
	case btcjson.ErrRPCWalletInsufficientFunds:
		return WrapFault(CodeInsufficientFunds, op, err)
	case btcjson.ErrRPCWalletNotFound, btcjson.ErrRPCWalletNotSpecified:
		return WrapFault(CodeWalletNotFound, op, err)
	case btcjson.ErrRPCTxRejected:
		return WrapFault(CodeBroadcastRejected, op, err)
	default:
		return WrapFault(CodeInternal, op, err)
	}
}
