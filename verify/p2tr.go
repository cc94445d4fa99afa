// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
)

// ValidateP2TR validates a key path only taproot output. Only single key
// BIP-0086 outputs are supported: the key comes from the single taproot key
// origin, or from the single bip32 key origin when there are no taproot
// ones. An explicit internal key must be that key.
func ValidateP2TR(out *psbt.POutput, txOut *wire.TxOut,
	params *chaincfg.Params, index int) (OutputKind, error) {

	pubKey, path, err := taprootKey(
		out.TaprootBip32Derivation, out.Bip32Derivation,
	)
	if err != nil {
		return nil, outputErr(index, err)
	}

	xOnly := schnorr.SerializePubKey(pubKey)
	if len(out.TaprootInternalKey) != 0 {
		internalKey, err := schnorr.ParsePubKey(out.TaprootInternalKey)
		if err != nil {
			return nil, outputErr(index, fmt.Errorf("%w: %v",
				ErrInvalidTaprootKey, err))
		}

		if !bytes.Equal(schnorr.SerializePubKey(internalKey), xOnly) {
			log.Warnf("Output %d internal key %x doesn't match "+
				"the declared key %x", index,
				out.TaprootInternalKey, xOnly)

			return nil, outputErr(index, ErrFraudulentOutput)
		}
	}

	addr, err := descriptor.SingleKeyAddress(descriptor.TR, pubKey, params)
	if err != nil {
		return nil, outputErr(index, err)
	}

	if err := matchAddress(addr, txOut, index); err != nil {
		return nil, err
	}

	return classifySingleSig(path, keypath.PurposeBIP0086, addr, params,
		index)
}

// taprootKey returns the declared key of a taproot script and its origin
// path.
func taprootKey(tapDerivations []*psbt.TaprootBip32Derivation,
	derivations []*psbt.Bip32Derivation) (*btcec.PublicKey, []uint32,
	error) {

	if len(tapDerivations) == 0 {
		derivation, pubKey, err := singleDerivation(derivations)
		if err != nil {
			return nil, nil, err
		}

		return pubKey, derivation.Bip32Path, nil
	}

	if len(tapDerivations) != 1 {
		return nil, nil, fmt.Errorf("%w: got %d taproot keys",
			ErrMultipleKeysNotExpected, len(tapDerivations))
	}

	derivation := tapDerivations[0]
	pubKey, err := schnorr.ParsePubKey(derivation.XOnlyPubKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidTaprootKey, err)
	}

	return pubKey, derivation.Bip32Path, nil
}
