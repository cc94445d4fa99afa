// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keypath

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// NetworkKind distinguishes mainnet from the test networks. All test networks
// (testnet3, testnet4, signet and regtest) share the same coin type and
// extended key versions, so they can't be told apart from key metadata.
type NetworkKind uint8

const (
	// Mainnet is the Bitcoin main network.
	Mainnet NetworkKind = iota

	// Testnet is any of the Bitcoin test networks.
	Testnet
)

// String returns a human readable name for the network kind.
func (n NetworkKind) String() string {
	switch n {
	case Mainnet:
		return "mainnet"

	case Testnet:
		return "testnet"

	default:
		return "unknown"
	}
}

// NetworkKindFromParams returns the network kind of the chain parameters.
func NetworkKindFromParams(params *chaincfg.Params) NetworkKind {
	if params.Net == wire.MainNet {
		return Mainnet
	}

	return Testnet
}

// KeychainKind is the keychain an address belongs to.
type KeychainKind uint8

const (
	// External is the keychain of receiving addresses.
	External KeychainKind = iota

	// Internal is the keychain of change addresses.
	Internal
)

// String returns a human readable name for the keychain kind.
func (k KeychainKind) String() string {
	if k == Internal {
		return "internal"
	}

	return "external"
}
