package apiclient

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/regforge/regforge/config"
	"github.com/regforge/regforge/internal/api"
	"github.com/regforge/regforge/internal/gateway/gatewaytest"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/store"
	"github.com/regforge/regforge/internal/storage"
	"github.com/regforge/regforge/internal/wallet"
	"github.com/regforge/regforge/internal/workflow"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	node := gatewaytest.NewSimNode()
	params := &chaincfg.RegressionNetParams
	registry := wallet.NewRegistry(node)
	engine := reconcile.NewEngine(node, params)
	records := store.NewRecords(storage.NewMemory())
	sink := store.NewSink(filepath.Join(t.TempDir(), "transaction.txt"))

	orch := workflow.New(config.WorkflowConfig{
		MinerWallet:   "Miner",
		TraderWallet:  "Trader",
		InitialBlocks: config.CoinbaseMaturity + 1,
		SendAmount:    20 * btcutil.SatoshiPerBitcoin,
	}, workflow.Deps{
		Node:     node,
		Registry: registry,
		Engine:   engine,
		Records:  records,
		Sink:     sink,
		Params:   params,
	})

	srv := api.New("127.0.0.1:0", api.Deps{
		Node:     node,
		Registry: registry,
		Orch:     orch,
		Engine:   engine,
		Records:  records,
		Sink:     sink,
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return New(srv.Addr())
}

func TestClientWorkflow(t *testing.T) {
	client := newTestClient(t)

	handle, err := client.EnsureWallet("Miner")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if !handle.Created {
		t.Error("first ensure not created")
	}
	if _, err := client.EnsureWallet("Trader"); err != nil {
		t.Fatalf("ensure trader: %v", err)
	}

	minerAddr, err := client.NewAddress("Miner", "Mining Reward")
	if err != nil {
		t.Fatalf("miner address: %v", err)
	}
	if _, err := client.Mine("Miner", minerAddr.Address, 101); err != nil {
		t.Fatalf("mine: %v", err)
	}
	balance, err := client.Balance("Miner")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 50*btcutil.SatoshiPerBitcoin {
		t.Errorf("balance = %d", balance.Balance)
	}

	addr, err := client.NewAddress("Trader", "Received")
	if err != nil {
		t.Fatalf("address: %v", err)
	}

	sent, err := client.Send("Miner", addr.Address, 20*btcutil.SatoshiPerBitcoin, "demo")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	entry, err := client.MempoolEntry("Miner", sent.TxID)
	if err != nil {
		t.Fatalf("mempool: %v", err)
	}
	if entry.Fee <= 0 {
		t.Errorf("entry fee = %d", entry.Fee)
	}

	if _, err := client.Mine("Miner", "", 1); err != nil {
		t.Fatalf("confirm mine: %v", err)
	}
	tx, err := client.Transaction("Miner", sent.TxID)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if tx.Confirmations != 1 {
		t.Errorf("confirmations = %d", tx.Confirmations)
	}

	record, err := client.Reconcile("Miner", sent.TxID, addr.Address)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if record.Output.Amount != 20*btcutil.SatoshiPerBitcoin {
		t.Errorf("destination amount = %d", record.Output.Amount)
	}

	records, err := client.Records()
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
	got, err := client.Record(sent.TxID)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.TxID != sent.TxID {
		t.Errorf("record txid = %s", got.TxID)
	}
}

func TestClientRun(t *testing.T) {
	client := newTestClient(t)

	record, err := client.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !record.Confirmation.Confirmed || record.Fee <= 0 {
		t.Errorf("record = %+v", record)
	}
}

func TestClientAPIError(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Record(strings.Repeat("00", 32))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.Status)
	}
	if apiErr.Code != "transaction not found" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if apiErr.Message == "" {
		t.Error("message empty")
	}
}

func TestClientUnreachableDaemon(t *testing.T) {
	client := New("127.0.0.1:1")

	if _, err := client.Records(); err == nil {
		t.Fatal("expected transport error")
	}
}
