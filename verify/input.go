// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/btcsuite/psbtcheck/multisig"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// fundingUtxo returns the output spent by the input, from the witness UTXO
// or else from the full previous transaction.
func fundingUtxo(in *psbt.PInput, txIn *wire.TxIn) fn.Option[*wire.TxOut] {
	if in.WitnessUtxo != nil {
		return fn.Some(in.WitnessUtxo)
	}

	if in.NonWitnessUtxo == nil {
		return fn.None[*wire.TxOut]()
	}

	vout := txIn.PreviousOutPoint.Index
	if int(vout) >= len(in.NonWitnessUtxo.TxOut) {
		return fn.None[*wire.TxOut]()
	}

	return fn.Some(in.NonWitnessUtxo.TxOut[vout])
}

// checkNonWitnessUtxo makes sure the full previous transaction, if any, is
// the one the input spends from.
func checkNonWitnessUtxo(in *psbt.PInput, txIn *wire.TxIn) error {
	if in.NonWitnessUtxo == nil {
		return nil
	}

	txHash := in.NonWitnessUtxo.TxHash()
	if txHash != txIn.PreviousOutPoint.Hash {
		log.Warnf("Previous transaction %v doesn't match outpoint %v",
			txHash, txIn.PreviousOutPoint)

		return ErrFraudulentInput
	}

	return nil
}

// spentInput is what validating one of our inputs yields.
type spentInput struct {
	address    btcutil.Address
	descriptor fn.Option[*descriptor.Descriptor]
}

// validateInput rebuilds the address of the UTXO spent by one of our inputs
// from its declared keys and scripts, and finds its account descriptor.
func (v *Verifier) validateInput(in *psbt.PInput, utxo *wire.TxOut,
	xpubs []psbt.XPub) (*spentInput, error) {

	switch ClassifyScript(utxo.PkScript) {
	case ClassP2PKH:
		return v.singleKeyInput(
			descriptor.PKH, keypath.PurposeBIP0044, in, utxo, xpubs,
		)

	case ClassP2WPKH:
		return v.singleKeyInput(
			descriptor.WPKH, keypath.PurposeBIP0084, in, utxo,
			xpubs,
		)

	case ClassP2TR:
		return v.singleKeyInput(
			descriptor.TR, keypath.PurposeBIP0086, in, utxo, xpubs,
		)

	case ClassP2WSH:
		return v.witnessScriptInput(in, utxo, xpubs)

	case ClassP2SH:
		switch {
		case len(in.RedeemScript) == 0:
			return nil, ErrMissingRedeemScript

		case txscript.IsPayToWitnessPubKeyHash(in.RedeemScript):
			return v.singleKeyInput(
				descriptor.SHWPKH, keypath.PurposeBIP0049, in,
				utxo, xpubs,
			)

		case txscript.IsPayToWitnessScriptHash(in.RedeemScript):
			return v.nestedWitnessScriptInput(in, utxo, xpubs)

		default:
			return nil, ErrUnknownOutputScript
		}

	default:
		return nil, ErrUnknownOutputScript
	}
}

// singleKeyInput checks that the single declared key of the input pays to
// the UTXO.
func (v *Verifier) singleKeyInput(scriptType descriptor.ScriptType,
	purpose uint32, in *psbt.PInput, utxo *wire.TxOut,
	xpubs []psbt.XPub) (*spentInput, error) {

	var (
		pubKey      *btcec.PublicKey
		rawPath     []uint32
		fingerprint uint32
	)
	if scriptType == descriptor.TR {
		key, path, err := taprootKey(
			in.TaprootBip32Derivation, in.Bip32Derivation,
		)
		if err != nil {
			return nil, err
		}

		pubKey, rawPath = key, path
		fingerprint = v.cfg.Fingerprint
	} else {
		derivation, key, err := singleDerivation(in.Bip32Derivation)
		if err != nil {
			return nil, err
		}

		pubKey, rawPath = key, derivation.Bip32Path
		fingerprint = derivation.MasterKeyFingerprint
	}

	addr, err := descriptor.SingleKeyAddress(
		scriptType, pubKey, v.cfg.ChainParams,
	)
	if err != nil {
		return nil, err
	}

	ok, err := paysTo(addr, utxo.PkScript)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warnf("Input UTXO pays to %x, declared key gives %s",
			utxo.PkScript, addr)

		return nil, ErrFraudulentInput
	}

	desc, err := v.singleSigDescriptor(
		fingerprint, rawPath, purpose, xpubs,
	)
	if err != nil {
		return nil, err
	}

	return &spentInput{address: addr, descriptor: desc}, nil
}

// singleSigDescriptor returns the account descriptor of a single-sig key
// origin if its path is a standard one for the purpose and network.
func (v *Verifier) singleSigDescriptor(fingerprint uint32, rawPath []uint32,
	purpose uint32,
	xpubs []psbt.XPub) (fn.Option[*descriptor.Descriptor], error) {

	none := fn.None[*descriptor.Descriptor]()

	path, err := parsePath(rawPath)
	if err != nil {
		return none, err
	}

	network := keypath.NetworkKindFromParams(v.cfg.ChainParams)
	if path.IsNone() || !path.UnsafeFromSome().Matches(purpose, network) {
		log.Debugf("No descriptor for non-standard path %s",
			keypath.FormatPath(rawPath))

		return none, nil
	}

	return SingleSigDescriptor(fingerprint, path.UnsafeFromSome(), xpubs)
}

// witnessScriptInput checks that the witness script of the input hashes to
// the UTXO. Only multi-sig witness scripts are supported.
func (v *Verifier) witnessScriptInput(in *psbt.PInput, utxo *wire.TxOut,
	xpubs []psbt.XPub) (*spentInput, error) {

	addr, err := v.witnessScriptAddress(in)
	if err != nil {
		return nil, err
	}

	ok, err := paysTo(addr, utxo.PkScript)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warnf("Input UTXO pays to %x, witness script gives %s",
			utxo.PkScript, addr)

		return nil, ErrFraudulentInput
	}

	desc, err := multisigInputDescriptor(in, xpubs)
	if err != nil {
		return nil, err
	}

	return &spentInput{address: addr, descriptor: fn.Some(desc)}, nil
}

// nestedWitnessScriptInput checks that the redeem script of the input is the
// P2WSH program of its witness script and that the redeem script hashes to
// the UTXO.
func (v *Verifier) nestedWitnessScriptInput(in *psbt.PInput,
	utxo *wire.TxOut, xpubs []psbt.XPub) (*spentInput, error) {

	witnessAddr, err := v.witnessScriptAddress(in)
	if err != nil {
		return nil, err
	}

	ok, err := paysTo(witnessAddr, in.RedeemScript)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warnf("Redeem script %x doesn't commit to the witness "+
			"script, which gives %s", in.RedeemScript, witnessAddr)

		return nil, ErrFraudulentInput
	}

	addr, err := btcutil.NewAddressScriptHash(
		in.RedeemScript, v.cfg.ChainParams,
	)
	if err != nil {
		return nil, err
	}

	ok, err = paysTo(addr, utxo.PkScript)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warnf("Input UTXO pays to %x, redeem script gives %s",
			utxo.PkScript, addr)

		return nil, ErrFraudulentInput
	}

	desc, err := multisigInputDescriptor(in, xpubs)
	if err != nil {
		return nil, err
	}

	nested, err := descriptor.NewNestedSortedMulti(
		desc.Threshold, desc.Keys,
	)
	if err != nil {
		return nil, err
	}

	return &spentInput{address: addr, descriptor: fn.Some(nested)}, nil
}

// witnessScriptAddress returns the P2WSH address of the input's witness
// script.
func (v *Verifier) witnessScriptAddress(
	in *psbt.PInput) (*btcutil.AddressWitnessScriptHash, error) {

	if len(in.WitnessScript) == 0 {
		return nil, ErrMissingWitnessScript
	}

	hash := sha256.Sum256(in.WitnessScript)

	return btcutil.NewAddressWitnessScriptHash(hash[:], v.cfg.ChainParams)
}

// multisigInputDescriptor returns the wsh(sortedmulti(...)) account
// descriptor of a multi-sig witness script. Other witness scripts are not
// supported.
func multisigInputDescriptor(in *psbt.PInput,
	xpubs []psbt.XPub) (*descriptor.Descriptor, error) {

	threshold, err := multisig.Disassemble(in.WitnessScript)
	if err != nil {
		return nil, fmt.Errorf("%w: witness script is not "+
			"multi-sig: %v", ErrUnimplemented, err)
	}

	return MultisigDescriptor(threshold, xpubs, in.Bip32Derivation)
}
