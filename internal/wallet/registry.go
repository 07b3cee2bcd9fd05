// Package wallet implements the wallet registry: named wallets are
// created or loaded on the node on demand and handed out as handles for
// the rest of the workflow. The node owns wallet persistence; the
// registry never destroys anything.
package wallet

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/rs/zerolog"

	"github.com/regforge/regforge/internal/gateway"
	klog "github.com/regforge/regforge/internal/log"
)

// Handle identifies a named wallet scoped to the node. It stays valid for
// the process lifetime.
type Handle struct {
	Name string `json:"name"`
	// Created reports whether Ensure created the wallet (false when it
	// already existed and was loaded or found loaded).
	Created bool `json:"created"`
}

// Address is a node-issued receiving address with its attribution label.
type Address struct {
	Address string `json:"address"`
	Label   string `json:"label"`
	Wallet  string `json:"wallet"`
}

// Registry ensures wallets exist on the node and issues addresses.
type Registry struct {
	node   gateway.Node
	logger zerolog.Logger
}

// NewRegistry creates a registry over the given node gateway.
func NewRegistry(node gateway.Node) *Registry {
	return &Registry{node: node, logger: klog.Wallet}
}

// Ensure makes sure a wallet named name exists and is loaded, creating it
// if the node has never seen it. Idempotent: a second call with the same
// name observes the loaded wallet and does nothing.
func (r *Registry) Ensure(name string) (Handle, error) {
	if name == "" {
		return Handle{}, gateway.NewFault(gateway.CodeWalletNotFound, "ensure", "wallet name is empty")
	}

	loaded, err := r.node.ListWallets()
	if err != nil {
		return Handle{}, err
	}
	for _, w := range loaded {
		if w == name {
			return Handle{Name: name}, nil
		}
	}

	// Not loaded. Try loading from disk first; only create when the node
	// reports the wallet does not exist.
	err = r.node.LoadWallet(name)
	if err == nil {
		return Handle{Name: name}, nil
	}
	if !gateway.IsCode(err, gateway.CodeWalletNotFound) {
		return Handle{}, err
	}

	if err := r.node.CreateWallet(name); err != nil {
		// Creation racing an external wallet of the same name surfaces
		// as a conflict; it is not retried.
		return Handle{}, err
	}
	r.logger.Info().Str("wallet", name).Msg("wallet ensured")
	return Handle{Name: name, Created: true}, nil
}

// NewAddress requests a fresh receiving address for the wallet, tagged
// with label. The gateway pins the encoding to bech32 so that address
// equality is stable for downstream classification.
func (r *Registry) NewAddress(wallet, label string) (Address, error) {
	addr, err := r.node.NewAddress(wallet, label)
	if err != nil {
		return Address{}, err
	}
	return Address{
		Address: addr.EncodeAddress(),
		Label:   label,
		Wallet:  wallet,
	}, nil
}

// NewAddressDecoded is NewAddress returning the decoded form for callers
// that feed the address back into node calls.
func (r *Registry) NewAddressDecoded(wallet, label string) (btcutil.Address, error) {
	return r.node.NewAddress(wallet, label)
}
