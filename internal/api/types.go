package api

import (
	"net/http"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/regforge/regforge/internal/gateway"
)

// Amounts in request and response bodies are satoshis.

type walletRequest struct {
	Name string `json:"name"`
}

type addressRequest struct {
	Wallet string `json:"wallet"`
	Label  string `json:"label"`
}

type mineRequest struct {
	Wallet  string `json:"wallet"`
	Address string `json:"address,omitempty"`
	Blocks  int64  `json:"blocks"`
}

type mineResponse struct {
	Blocks []string `json:"blocks"`
}

type balanceResponse struct {
	Wallet  string         `json:"wallet"`
	Balance btcutil.Amount `json:"balance"`
}

type sendRequest struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Amount  btcutil.Amount `json:"amount"`
	Message string         `json:"message,omitempty"`
}

type sendResponse struct {
	TxID string `json:"txid"`
}

type txResponse struct {
	TxID          string         `json:"txid"`
	Confirmations int64          `json:"confirmations"`
	BlockHash     string         `json:"block_hash,omitempty"`
	Fee           btcutil.Amount `json:"fee"`
	Amount        btcutil.Amount `json:"amount"`
	Time          int64          `json:"time"`
}

type reconcileRequest struct {
	Wallet string `json:"wallet"`
	TxID   string `json:"txid"`
	To     string `json:"to"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusForCode maps the failure taxonomy onto HTTP statuses. Node
// transport failures surface as 502 so clients can tell "the node is
// down" from "the façade broke".
func statusForCode(code gateway.Code) int {
	switch code {
	case gateway.CodeNodeUnavailable:
		return http.StatusBadGateway
	case gateway.CodeWalletNotFound, gateway.CodeTxNotFound, gateway.CodeNotInMempool:
		return http.StatusNotFound
	case gateway.CodeInvalidAddress, gateway.CodeInvalidBlockCount:
		return http.StatusBadRequest
	case gateway.CodeWalletConflict, gateway.CodeInvalidState:
		return http.StatusConflict
	case gateway.CodeInsufficientFunds, gateway.CodeBroadcastRejected, gateway.CodeAmbiguousChange:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
