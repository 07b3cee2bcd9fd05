package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/regforge/regforge/internal/gateway"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/storage"
)

func testRecord(txid string, height int64) *reconcile.TransactionRecord {
	record := &reconcile.TransactionRecord{
		TxID:   txid,
		Input:  reconcile.Endpoint{Address: "bcrt1qinput", Amount: 50 * btcutil.SatoshiPerBitcoin},
		Output: reconcile.Endpoint{Address: "bcrt1qdest", Amount: 20 * btcutil.SatoshiPerBitcoin},
		Change: &reconcile.Endpoint{Address: "bcrt1qchange", Amount: 2999990000},
		Fee:    10000,
	}
	if height > 0 {
		record.Confirmation = reconcile.Confirmation{
			Confirmed:   true,
			BlockHeight: height,
			BlockHash:   "hash-" + txid,
		}
	}
	return record
}

func TestRecordsRoundTrip(t *testing.T) {
	records := NewRecords(storage.NewMemory())

	want := testRecord("aa11", 102)
	if err := records.Put(want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := records.Get("aa11")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TxID != want.TxID || got.Fee != want.Fee {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Change == nil || got.Change.Address != want.Change.Address {
		t.Errorf("change lost in round trip: %+v", got.Change)
	}
	if got.Confirmation != want.Confirmation {
		t.Errorf("confirmation = %+v, want %+v", got.Confirmation, want.Confirmation)
	}
}

func TestRecordsGetMissing(t *testing.T) {
	records := NewRecords(storage.NewMemory())

	_, err := records.Get("missing")
	if !gateway.IsCode(err, gateway.CodeTxNotFound) {
		t.Fatalf("err = %v, want TxNotFound", err)
	}
}

func TestRecordsListOrder(t *testing.T) {
	records := NewRecords(storage.NewMemory())

	for _, record := range []*reconcile.TransactionRecord{
		testRecord("cc33", 0),
		testRecord("bb22", 105),
		testRecord("aa11", 102),
	} {
		if err := records.Put(record); err != nil {
			t.Fatalf("put %s: %v", record.TxID, err)
		}
	}

	got, err := records.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"aa11", "bb22", "cc33"}
	if len(got) != len(want) {
		t.Fatalf("list length = %d, want %d", len(got), len(want))
	}
	for i, txid := range want {
		if got[i].TxID != txid {
			t.Errorf("list[%d] = %s, want %s", i, got[i].TxID, txid)
		}
	}
}

func TestRecordsSharedDatabase(t *testing.T) {
	// Records under one prefix must not leak into sibling namespaces.
	db := storage.NewMemory()
	records := NewRecords(db)
	if err := records.Put(testRecord("aa11", 102)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put([]byte("other/aa11"), []byte("x")); err != nil {
		t.Fatalf("put sibling: %v", err)
	}

	got, err := records.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("list length = %d, want 1", len(got))
	}
}

func TestSinkWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "transaction.txt")
	sink := NewSink(path)

	if err := sink.Write(testRecord("aa11", 102)); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("line count = %d, want 10", len(lines))
	}
	if lines[0] != "aa11" {
		t.Errorf("line 0 = %q, want aa11", lines[0])
	}
	if lines[7] != "0.00010000" {
		t.Errorf("fee line = %q, want 0.00010000", lines[7])
	}
	if lines[8] != "102" {
		t.Errorf("height line = %q, want 102", lines[8])
	}
}

func TestSinkOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transaction.txt")
	sink := NewSink(path)

	if err := sink.Write(testRecord("aa11", 102)); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := sink.Write(testRecord("bb22", 103)); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if !strings.HasPrefix(string(data), "bb22\n") {
		t.Errorf("sink not replaced, starts with %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
