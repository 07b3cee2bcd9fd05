// Package store persists reconciled transaction records and renders the
// plain-text output sink.
package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/regforge/regforge/internal/gateway"
	klog "github.com/regforge/regforge/internal/log"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/storage"
)

// recordPrefix namespaces record keys within the shared database.
var recordPrefix = []byte("r/")

// Records is the durable index of reconciled transactions, keyed by txid.
type Records struct {
	db     storage.DB
	logger zerolog.Logger
}

// NewRecords wraps db with the record namespace.
func NewRecords(db storage.DB) *Records {
	return &Records{
		db:     storage.NewPrefixDB(db, recordPrefix),
		logger: klog.Store,
	}
}

// Put stores or replaces the record for its txid.
func (r *Records) Put(record *reconcile.TransactionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.TxID, err)
	}
	if err := r.db.Put([]byte(record.TxID), data); err != nil {
		return fmt.Errorf("store record %s: %w", record.TxID, err)
	}
	r.logger.Debug().Str("txid", record.TxID).Msg("record stored")
	return nil
}

// Get returns the record for txid, or a TransactionNotFound fault.
func (r *Records) Get(txid string) (*reconcile.TransactionRecord, error) {
	ok, err := r.db.Has([]byte(txid))
	if err != nil {
		return nil, fmt.Errorf("probe record %s: %w", txid, err)
	}
	if !ok {
		return nil, gateway.NewFault(gateway.CodeTxNotFound, "records",
			fmt.Sprintf("no record for transaction %s", txid))
	}
	data, err := r.db.Get([]byte(txid))
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", txid, err)
	}
	var record reconcile.TransactionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", txid, err)
	}
	return &record, nil
}

// List returns every stored record ordered by confirmation height, with
// unconfirmed records last and ties broken by txid.
func (r *Records) List() ([]*reconcile.TransactionRecord, error) {
	var records []*reconcile.TransactionRecord
	err := r.db.ForEach(nil, func(key, value []byte) error {
		var record reconcile.TransactionRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("decode record %s: %w", key, err)
		}
		records = append(records, &record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Confirmation.Confirmed != b.Confirmation.Confirmed {
			return a.Confirmation.Confirmed
		}
		if a.Confirmation.BlockHeight != b.Confirmation.BlockHeight {
			return a.Confirmation.BlockHeight < b.Confirmation.BlockHeight
		}
		return a.TxID < b.TxID
	})
	return records, nil
}
