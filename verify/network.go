// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ValidateNetwork checks that the key metadata of the packet implies a single
// Bitcoin network and returns it, or None if nothing in the packet tells.
//
// The global xpubs are checked first since their version bytes are the only
// ground truth about the network. The key origins of every input and then
// every output follow, bip32 derivations before taproot ones. Paths with a
// non-standard coin type can't be checked and are skipped.
func ValidateNetwork(packet *psbt.Packet) (fn.Option[keypath.NetworkKind],
	error) {

	network := fn.None[keypath.NetworkKind]()

	for _, xpub := range packet.XPubs {
		key, err := decodeXPub(xpub)
		if err != nil {
			return network, err
		}

		if network.UnwrapOr(key.network) != key.network {
			return network, ErrNetworkInconsistency
		}
		network = fn.Some(key.network)

		// A standard coin type must agree with the xpub version, so a
		// mainnet xpub can't claim a testnet account path.
		path, err := parsePath(xpub.Bip32Path)
		if err != nil {
			return network, err
		}

		valid := fn.FlatMapOption(func(p keypath.Path) fn.Option[bool] {
			return p.IsValidForNetworkKind(key.network)
		})(path)
		if !valid.UnwrapOr(true) {
			return network, ErrNetworkInconsistency
		}
	}

	var err error
	for _, in := range packet.Inputs {
		network, err = foldKeyOrigins(
			network, in.Bip32Derivation, in.TaprootBip32Derivation,
		)
		if err != nil {
			return network, err
		}
	}

	for _, out := range packet.Outputs {
		network, err = foldKeyOrigins(
			network, out.Bip32Derivation,
			out.TaprootBip32Derivation,
		)
		if err != nil {
			return network, err
		}
	}

	log.Debugf("PSBT network: %v", network)

	return network, nil
}

// foldKeyOrigins folds the key origins of one input or output into the
// running network.
func foldKeyOrigins(network fn.Option[keypath.NetworkKind],
	derivations []*psbt.Bip32Derivation,
	tapDerivations []*psbt.TaprootBip32Derivation) (
	fn.Option[keypath.NetworkKind], error) {

	var err error
	for _, derivation := range derivations {
		network, err = foldPath(network, derivation.Bip32Path)
		if err != nil {
			return network, err
		}
	}

	for _, derivation := range tapDerivations {
		network, err = foldPath(network, derivation.Bip32Path)
		if err != nil {
			return network, err
		}
	}

	return network, nil
}

// foldPath checks one key origin path against the running network, seeding
// it when no global xpub fixed it.
func foldPath(network fn.Option[keypath.NetworkKind],
	rawPath []uint32) (fn.Option[keypath.NetworkKind], error) {

	path, err := parsePath(rawPath)
	if err != nil {
		return network, err
	}

	kind := fn.FlatMapOption(keypath.Path.ToNetworkKind)(path)
	if kind.IsNone() {
		return network, nil
	}

	// Highly unlikely to be unset by now, but PSBTs without global xpubs
	// exist.
	network = network.Alt(kind)
	if network != kind {
		return network, ErrNetworkInconsistency
	}

	return network, nil
}
