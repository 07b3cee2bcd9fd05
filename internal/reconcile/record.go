package reconcile

import (
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
)

// Endpoint is an address/amount pair attributed to one side of a
// transaction.
type Endpoint struct {
	Address string         `json:"address"`
	Amount  btcutil.Amount `json:"amount"`
}

// Confirmation is the confirmation state of a transaction. The zero value
// means unconfirmed; once confirmed the state never reverses (reorgs are
// out of scope).
type Confirmation struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
}

// TransactionRecord is the fully reconciled, fee-accounted view of one
// peer-to-peer payment: the sender's consumed input, the destination
// output, the change returned to the sender (absent on exact-value
// sends), the derived fee and the confirmation state.
type TransactionRecord struct {
	TxID         string       `json:"txid"`
	Input        Endpoint     `json:"input"`
	Output       Endpoint     `json:"output"`
	Change       *Endpoint    `json:"change,omitempty"`
	Fee          btcutil.Amount `json:"fee"`
	Confirmation Confirmation `json:"confirmation"`
}

// SinkLines renders the record as the ten ordered lines of the output
// sink: txid, input address, input amount, destination address,
// destination amount, change address, change amount, fee, confirming
// block height, confirming block hash. Absent fields become empty lines
// so downstream parsers can rely on fixed positions.
func (r *TransactionRecord) SinkLines() []string {
	lines := make([]string, 0, 10)
	lines = append(lines,
		r.TxID,
		r.Input.Address,
		formatBTC(r.Input.Amount),
		r.Output.Address,
		formatBTC(r.Output.Amount),
	)
	if r.Change != nil {
		lines = append(lines, r.Change.Address, formatBTC(r.Change.Amount))
	} else {
		lines = append(lines, "", "")
	}
	lines = append(lines, formatBTC(r.Fee))
	if r.Confirmation.Confirmed {
		lines = append(lines,
			strconv.FormatInt(r.Confirmation.BlockHeight, 10),
			r.Confirmation.BlockHash,
		)
	} else {
		lines = append(lines, "", "")
	}
	return lines
}

// formatBTC renders an amount as a fixed eight-decimal BTC string.
func formatBTC(a btcutil.Amount) string {
	return strconv.FormatFloat(a.ToBTC(), 'f', 8, 64)
}
