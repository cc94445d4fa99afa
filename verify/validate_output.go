// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ValidateOutput validates an output carrying our keys with the validator of
// its script class. The class is computed once by ClassifyScript.
func ValidateOutput(class ScriptClass, out *psbt.POutput, txOut *wire.TxOut,
	xpubs []psbt.XPub, params *chaincfg.Params,
	index int) (OutputKind, error) {

	switch class {
	case ClassP2PKH:
		return ValidateP2PKH(out, txOut, params, index)

	case ClassP2WPKH:
		return ValidateP2WPKH(out, txOut, params, index)

	case ClassP2SH:
		return ValidateP2SH(out, txOut, params, index)

	case ClassP2TR:
		return ValidateP2TR(out, txOut, params, index)

	case ClassP2WSH:
		return ValidateP2WSH(out, txOut, xpubs, params, index)

	case ClassOpReturn:
		return ParseOpReturn(txOut), nil

	// Don't even try to validate bare public keys.
	case ClassP2PK:
		return nil, outputErr(index, ErrDeprecatedOutputType)

	default:
		return nil, outputErr(index, ErrUnknownOutputScript)
	}
}

// singleDerivation returns the only key origin of a single-sig script and
// its parsed public key.
func singleDerivation(derivations []*psbt.Bip32Derivation) (
	*psbt.Bip32Derivation, *btcec.PublicKey, error) {

	if len(derivations) != 1 {
		return nil, nil, fmt.Errorf("%w: got %d",
			ErrMultipleKeysNotExpected, len(derivations))
	}

	pubKey, err := btcec.ParsePubKey(derivations[0].PubKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}

	return derivations[0], pubKey, nil
}

// paysTo returns true if the address pays to the locking script.
func paysTo(addr btcutil.Address, pkScript []byte) (bool, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return false, err
	}

	return bytes.Equal(script, pkScript), nil
}

// matchAddress checks that the address pays to the locking script of the
// output.
func matchAddress(addr btcutil.Address, txOut *wire.TxOut, index int) error {
	ok, err := paysTo(addr, txOut.PkScript)
	if err != nil {
		return outputErr(index, err)
	}

	if !ok {
		log.Warnf("Output %d pays to %x, declared keys give %s", index,
			txOut.PkScript, addr)

		return outputErr(index, ErrFraudulentOutput)
	}

	return nil
}

// validateSingleKey rebuilds the address of a single key script type from
// the only key origin of the output, checks it against the output and
// classifies it by its path.
func validateSingleKey(scriptType descriptor.ScriptType, purpose uint32,
	out *psbt.POutput, txOut *wire.TxOut, params *chaincfg.Params,
	index int) (OutputKind, error) {

	derivation, pubKey, err := singleDerivation(out.Bip32Derivation)
	if err != nil {
		return nil, outputErr(index, err)
	}

	addr, err := descriptor.SingleKeyAddress(scriptType, pubKey, params)
	if err != nil {
		return nil, outputErr(index, err)
	}

	if err := matchAddress(addr, txOut, index); err != nil {
		return nil, err
	}

	return classifySingleSig(derivation.Bip32Path, purpose, addr, params,
		index)
}

// classifySingleSig tags a single-sig output with its path when the path is
// a standard address path of the expected purpose on this network. The script
// already matched, so a non-standard path still yields SingleSig.
func classifySingleSig(rawPath []uint32, purpose uint32, addr btcutil.Address,
	params *chaincfg.Params, index int) (OutputKind, error) {

	path, err := parsePath(rawPath)
	if err != nil {
		return nil, outputErr(index, err)
	}

	network := keypath.NetworkKindFromParams(params)
	standard := fn.None[keypath.Path]()
	path.WhenSome(func(p keypath.Path) {
		if p.Matches(purpose, network) && p.IsForAddress() {
			standard = fn.Some(p)
		}
	})

	if standard.IsNone() {
		log.Debugf("Output %d has a non-standard path %s for purpose "+
			"%d", index, keypath.FormatPath(rawPath), purpose)
	}

	return SingleSig{Path: standard, Address: addr}, nil
}
