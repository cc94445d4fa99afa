// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/btcsuite/psbtcheck/multisig"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ValidateP2WSH validates a pay-to-witness-script-hash output.
//
// Every key the witness script refers to, directly or by its hash, must have
// a declared origin, and the witness script must hash to the output. The
// output is a Multisig only when the witness script is a multi-sig script
// and every key shares one BIP-0048 P2WSH path. Otherwise it is Suspicious:
// the script is ours but the metadata doesn't prove a known scheme.
func ValidateP2WSH(out *psbt.POutput, txOut *wire.TxOut, xpubs []psbt.XPub,
	params *chaincfg.Params, index int) (OutputKind, error) {

	if len(out.WitnessScript) == 0 {
		return nil, outputErr(index, ErrMissingWitnessScript)
	}

	scriptKeys, err := checkWitnessScriptKeys(out, index)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(out.WitnessScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(hash[:], params)
	if err != nil {
		return nil, outputErr(index, err)
	}

	if err := matchAddress(addr, txOut, index); err != nil {
		return nil, err
	}

	path, ok, err := sharedMultisigPath(out.Bip32Derivation)
	if err != nil {
		return nil, outputErr(index, err)
	}
	if !ok {
		log.Debugf("Output %d key origins don't share a BIP-0048 path",
			index)

		return Suspicious{Address: addr}, nil
	}

	threshold, err := multisig.Disassemble(out.WitnessScript)
	if err != nil {
		log.Debugf("Output %d witness script is not multi-sig: %v",
			index, err)

		return Suspicious{Address: addr}, nil
	}

	desc, err := MultisigDescriptor(threshold, xpubs, out.Bip32Derivation)
	if err != nil {
		return nil, outputErr(index, err)
	}

	// A descriptor over a different key set describes another script.
	if len(scriptKeys) != len(desc.Keys) {
		log.Warnf("Output %d witness script has %d keys, descriptor "+
			"has %d", index, len(scriptKeys), len(desc.Keys))

		return nil, outputErr(index, ErrFraudulentOutput)
	}

	// The global xpubs must derive the very same script, otherwise the
	// descriptor we hand out pays somewhere else. This can only be checked
	// when every xpub sits at the account level.
	accountPath := path.AccountPath()
	notAtAccount := func(k descriptor.Key) bool {
		return !slices.Equal(k.Origin, accountPath)
	}
	atAccount := !slices.ContainsFunc(desc.Keys, notAtAccount)
	if path.IsForAddress() && atAccount {
		descAddr, err := desc.Address(
			path.Change.UnsafeFromSome(),
			path.AddressIndex.UnsafeFromSome(), params,
		)
		if err != nil {
			return nil, outputErr(index, err)
		}

		if descAddr.EncodeAddress() != addr.EncodeAddress() {
			log.Warnf("Output %d descriptor derives %s, output "+
				"pays to %s", index, descAddr, addr)

			return nil, outputErr(index, ErrFraudulentOutput)
		}
	}

	return Multisig{
		Threshold:  threshold,
		Address:    addr,
		Path:       path,
		Descriptor: desc,
	}, nil
}

// checkWitnessScriptKeys makes sure every key of the witness script has a
// declared origin, and returns the keys pushed by the script.
func checkWitnessScriptKeys(out *psbt.POutput, index int) ([][]byte, error) {
	pubKeys, keyHashes, err := witnessScriptKeys(out.WitnessScript)
	if err != nil {
		return nil, outputErr(index, err)
	}

	declared := make([][]byte, 0, len(out.Bip32Derivation))
	declaredHashes := make([][]byte, 0, len(out.Bip32Derivation))
	for _, derivation := range out.Bip32Derivation {
		pubKey, err := btcec.ParsePubKey(derivation.PubKey)
		if err != nil {
			return nil, outputErr(index, fmt.Errorf("%w: %v",
				ErrInvalidPubKey, err))
		}

		compressed := pubKey.SerializeCompressed()
		declared = append(declared, compressed)
		declaredHashes = append(
			declaredHashes, btcutil.Hash160(compressed),
		)
	}

	contains := func(set [][]byte, item []byte) bool {
		return slices.ContainsFunc(set, func(b []byte) bool {
			return bytes.Equal(b, item)
		})
	}

	for _, pubKey := range pubKeys {
		if !contains(declared, pubKey) {
			log.Warnf("Output %d witness script key %x has no "+
				"declared origin", index, pubKey)

			return nil, outputErr(index, ErrFraudulentOutput)
		}
	}

	for _, keyHash := range keyHashes {
		if !contains(declaredHashes, keyHash) {
			log.Warnf("Output %d witness script key hash %x has "+
				"no declared origin", index, keyHash)

			return nil, outputErr(index, ErrFraudulentOutput)
		}
	}

	return pubKeys, nil
}

// witnessScriptKeys returns the compressed public keys pushed by a segwit v0
// witness script and the key hashes it checks with OP_DUP OP_HASH160.
// Uncompressed keys are not valid in segwit v0 scripts and make the script
// invalid.
func witnessScriptKeys(script []byte) ([][]byte, [][]byte, error) {
	var (
		pubKeys   [][]byte
		keyHashes [][]byte
		prev      [2]byte
		tokenizer = txscript.MakeScriptTokenizer(0, script)
	)
	for tokenizer.Next() {
		op, data := tokenizer.Opcode(), tokenizer.Data()

		switch {
		case len(data) == btcec.PubKeyBytesLenCompressed:
			if _, err := btcec.ParsePubKey(data); err == nil {
				pubKeys = append(pubKeys, data)
			}

		case len(data) == secp256k1.PubKeyBytesLenUncompressed:
			if _, err := btcec.ParsePubKey(data); err == nil {
				return nil, nil, fmt.Errorf("%w: uncompressed "+
					"public key %x",
					ErrInvalidWitnessScript, data)
			}

		case len(data) == 20 && prev[0] == txscript.OP_DUP &&
			prev[1] == txscript.OP_HASH160:

			keyHashes = append(keyHashes, data)
		}

		prev[0], prev[1] = prev[1], op
	}
	if err := tokenizer.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidWitnessScript,
			err)
	}

	return pubKeys, keyHashes, nil
}

// sharedMultisigPath returns the path shared by every key origin when it is a
// BIP-0048 P2WSH path. False means the origins don't prove a multi-sig
// account.
func sharedMultisigPath(
	derivations []*psbt.Bip32Derivation) (keypath.Path, bool, error) {

	if len(derivations) == 0 {
		return keypath.Path{}, false, nil
	}

	rawPath := derivations[0].Bip32Path
	purpose := keypath.PurposeBIP0048 + hdkeychain.HardenedKeyStart
	if len(rawPath) == 0 || rawPath[0] != purpose {
		return keypath.Path{}, false, nil
	}

	for _, derivation := range derivations[1:] {
		if !slices.Equal(derivation.Bip32Path, rawPath) {
			return keypath.Path{}, false, nil
		}
	}

	maybePath, err := parsePath(rawPath)
	if err != nil {
		return keypath.Path{}, false, err
	}

	path, err := maybePath.UnwrapOrErr(ErrInvalidDerivationPath)
	if err != nil {
		return keypath.Path{}, false, err
	}

	isP2WSH := path.ScriptType.UnwrapOr(0) == keypath.ScriptTypeP2WSH

	return path, isP2WSH, nil
}
