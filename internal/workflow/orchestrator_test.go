package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/regforge/regforge/config"
	"github.com/regforge/regforge/internal/gateway"
	"github.com/regforge/regforge/internal/gateway/gatewaytest"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/store"
	"github.com/regforge/regforge/internal/storage"
	"github.com/regforge/regforge/internal/wallet"
)

type testEnv struct {
	orch    *Orchestrator
	node    *gatewaytest.SimNode
	records *store.Records
	sink    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	node := gatewaytest.NewSimNode()
	params := &chaincfg.RegressionNetParams
	sinkPath := filepath.Join(t.TempDir(), "transaction.txt")
	records := store.NewRecords(storage.NewMemory())

	cfg := config.WorkflowConfig{
		MinerWallet:   "Miner",
		TraderWallet:  "Trader",
		InitialBlocks: config.CoinbaseMaturity + 1,
		SendAmount:    20 * btcutil.SatoshiPerBitcoin,
		SinkFile:      sinkPath,
	}
	orch := New(cfg, Deps{
		Node:     node,
		Registry: wallet.NewRegistry(node),
		Engine:   reconcile.NewEngine(node, params),
		Records:  records,
		Sink:     store.NewSink(sinkPath),
		Params:   params,
	})
	return &testEnv{orch: orch, node: node, records: records, sink: sinkPath}
}

func TestRunEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	record, err := env.orch.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if record.Output.Amount != 20*btcutil.SatoshiPerBitcoin {
		t.Errorf("destination amount = %d, want %d",
			record.Output.Amount, btcutil.Amount(20*btcutil.SatoshiPerBitcoin))
	}
	if record.Fee <= 0 {
		t.Errorf("fee = %d, want > 0", record.Fee)
	}
	if !record.Confirmation.Confirmed {
		t.Error("record not confirmed")
	}
	if record.Change == nil {
		t.Error("change missing from coinbase-funded send")
	}
	if record.Input.Amount != record.Output.Amount+record.Fee+changeAmount(record) {
		t.Errorf("amounts do not balance: in=%d out=%d fee=%d change=%d",
			record.Input.Amount, record.Output.Amount, record.Fee, changeAmount(record))
	}
	if got := env.orch.State(); got != StateReconciled {
		t.Errorf("state = %s, want %s", got, StateReconciled)
	}

	// Trader received the payment.
	balance, err := env.node.Balance("Trader")
	if err != nil {
		t.Fatalf("trader balance: %v", err)
	}
	if balance != 20*btcutil.SatoshiPerBitcoin {
		t.Errorf("trader balance = %d, want %d",
			balance, btcutil.Amount(20*btcutil.SatoshiPerBitcoin))
	}

	// Record persisted and sink written.
	stored, err := env.records.Get(record.TxID)
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	if stored.Fee != record.Fee {
		t.Errorf("stored fee = %d, want %d", stored.Fee, record.Fee)
	}
	data, err := os.ReadFile(env.sink)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 10 {
		t.Errorf("sink line count = %d, want 10", len(lines))
	}
	if lines[0] != record.TxID {
		t.Errorf("sink txid = %q, want %q", lines[0], record.TxID)
	}
}

func changeAmount(r *reconcile.TransactionRecord) btcutil.Amount {
	if r.Change == nil {
		return 0
	}
	return r.Change.Amount
}

func TestRunRepeatable(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.orch.Run()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := env.orch.Run()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.TxID == second.TxID {
		t.Error("second run reused the first transaction")
	}

	records, err := env.records.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("stored records = %d, want 2", len(records))
	}
}

func TestRunSurvivesNodeRestart(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.orch.Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Wallets exist on disk but are no longer loaded.
	env.node.UnloadAll()
	if _, err := env.orch.Run(); err != nil {
		t.Fatalf("run after restart: %v", err)
	}
}

func TestMineRejectsZeroBlocks(t *testing.T) {
	env := newTestEnv(t)
	env.node.CreateWallet("Miner")

	_, err := env.orch.Mine("Miner", "", 0)
	if !gateway.IsCode(err, gateway.CodeInvalidBlockCount) {
		t.Fatalf("err = %v, want InvalidBlockCount", err)
	}
}

func TestMine(t *testing.T) {
	env := newTestEnv(t)
	env.node.CreateWallet("Miner")

	hashes, err := env.orch.Mine("Miner", "", 5)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(hashes) != 5 {
		t.Errorf("mined %d blocks, want 5", len(hashes))
	}
	tip, err := env.node.BlockCount()
	if err != nil {
		t.Fatalf("block count: %v", err)
	}
	if tip != 5 {
		t.Errorf("tip = %d, want 5", tip)
	}
}

func TestMineToAddress(t *testing.T) {
	env := newTestEnv(t)
	env.node.CreateWallet("Miner")
	env.node.CreateWallet("Trader")

	addr, err := env.node.NewAddress("Trader", "rewards")
	if err != nil {
		t.Fatalf("new address: %v", err)
	}

	// Mine past coinbase maturity so the first reward spends.
	if _, err := env.orch.Mine("Miner", addr.EncodeAddress(), 101); err != nil {
		t.Fatalf("mine: %v", err)
	}

	balance, err := env.node.Balance("Trader")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance <= 0 {
		t.Errorf("trader balance = %s, want rewards paid to its address", balance)
	}
	if minerBal, _ := env.node.Balance("Miner"); minerBal != 0 {
		t.Errorf("miner balance = %s, want 0", minerBal)
	}
}

func TestMineRejectsBadAddress(t *testing.T) {
	env := newTestEnv(t)
	env.node.CreateWallet("Miner")

	_, err := env.orch.Mine("Miner", "not-an-address", 1)
	if !gateway.IsCode(err, gateway.CodeInvalidAddress) {
		t.Fatalf("err = %v, want InvalidAddress", err)
	}
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)
	env.node.CreateWallet("Miner")
	addr, err := env.node.NewAddress("Miner", "test")
	if err != nil {
		t.Fatalf("new address: %v", err)
	}

	_, err = env.orch.Send("Miner", addr.EncodeAddress(), 0, "")
	if !gateway.IsCode(err, gateway.CodeInsufficientFunds) {
		t.Errorf("zero amount err = %v, want InsufficientFunds", err)
	}

	_, err = env.orch.Send("Miner", "not-an-address", 1000, "")
	if !gateway.IsCode(err, gateway.CodeInvalidAddress) {
		t.Errorf("bad address err = %v, want InvalidAddress", err)
	}

	// Mainnet address fails regtest validation.
	_, err = env.orch.Send("Miner", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", 1000, "")
	if !gateway.IsCode(err, gateway.CodeInvalidAddress) {
		t.Errorf("foreign net err = %v, want InvalidAddress", err)
	}

	// Empty wallet cannot cover any positive amount.
	_, err = env.orch.Send("Miner", addr.EncodeAddress(), 1000, "")
	if !gateway.IsCode(err, gateway.CodeInsufficientFunds) {
		t.Errorf("underfunded err = %v, want InsufficientFunds", err)
	}
}

func TestInspectMempoolMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.InspectMempool(strings.Repeat("ab", 32))
	if !gateway.IsCode(err, gateway.CodeNotInMempool) {
		t.Fatalf("err = %v, want NotInMempool", err)
	}
}

func TestAdvanceRejectsIllegalTransition(t *testing.T) {
	env := newTestEnv(t)

	if err := env.orch.advance(StateFunded); !gateway.IsCode(err, gateway.CodeInvalidState) {
		t.Errorf("idle→funded err = %v, want InvalidState", err)
	}
	if err := env.orch.advance(StateWalletsReady); err != nil {
		t.Fatalf("idle→wallets_ready: %v", err)
	}
	if err := env.orch.advance(StateSent); !gateway.IsCode(err, gateway.CodeInvalidState) {
		t.Errorf("wallets_ready→sent err = %v, want InvalidState", err)
	}
}

func TestRunRejectedMidFlight(t *testing.T) {
	env := newTestEnv(t)
	if err := env.orch.advance(StateWalletsReady); err != nil {
		t.Fatalf("advance: %v", err)
	}

	_, err := env.orch.Run()
	if !gateway.IsCode(err, gateway.CodeInvalidState) {
		t.Fatalf("err = %v, want InvalidState", err)
	}
}
