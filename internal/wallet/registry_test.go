package wallet

import (
	"strings"
	"testing"

	"github.com/regforge/regforge/internal/gateway"
	"github.com/regforge/regforge/internal/gateway/gatewaytest"
)

func TestEnsureCreates(t *testing.T) {
	reg := NewRegistry(gatewaytest.NewSimNode())

	handle, err := reg.Ensure("Miner")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !handle.Created || handle.Name != "Miner" {
		t.Errorf("handle = %+v", handle)
	}
}

func TestEnsureIdempotent(t *testing.T) {
	reg := NewRegistry(gatewaytest.NewSimNode())

	if _, err := reg.Ensure("Miner"); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	handle, err := reg.Ensure("Miner")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if handle.Created {
		t.Error("second ensure reported created")
	}
}

func TestEnsureLoadsUnloaded(t *testing.T) {
	node := gatewaytest.NewSimNode()
	reg := NewRegistry(node)

	if _, err := reg.Ensure("Miner"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	node.UnloadAll()

	handle, err := reg.Ensure("Miner")
	if err != nil {
		t.Fatalf("ensure after unload: %v", err)
	}
	if handle.Created {
		t.Error("existing wallet reported created")
	}
	owned, err := node.ListWallets()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(owned) != 1 {
		t.Errorf("loaded wallets = %v", owned)
	}
}

func TestEnsureEmptyName(t *testing.T) {
	reg := NewRegistry(gatewaytest.NewSimNode())

	_, err := reg.Ensure("")
	if !gateway.IsCode(err, gateway.CodeWalletNotFound) {
		t.Fatalf("err = %v, want WalletNotFound", err)
	}
}

func TestNewAddressIsBech32(t *testing.T) {
	node := gatewaytest.NewSimNode()
	reg := NewRegistry(node)
	if _, err := reg.Ensure("Miner"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	addr, err := reg.NewAddress("Miner", "Mining Reward")
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if !strings.HasPrefix(addr.Address, "bcrt1") {
		t.Errorf("address = %q, want regtest bech32", addr.Address)
	}
	if addr.Wallet != "Miner" || addr.Label != "Mining Reward" {
		t.Errorf("attribution = %+v", addr)
	}

	owned, err := node.OwnsAddress("Miner", addr.Address)
	if err != nil {
		t.Fatalf("owns: %v", err)
	}
	if !owned {
		t.Error("issued address not owned by wallet")
	}
}

func TestNewAddressUnknownWallet(t *testing.T) {
	reg := NewRegistry(gatewaytest.NewSimNode())

	_, err := reg.NewAddress("Ghost", "")
	if !gateway.IsCode(err, gateway.CodeWalletNotFound) {
		t.Fatalf("err = %v, want WalletNotFound", err)
	}
}
