// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestValidateP2WSHMultisig checks that a well formed multi-sig output is
// recognized with its account descriptor.
func TestValidateP2WSHMultisig(t *testing.T) {
	t.Parallel()

	f := newMultisigFixture(t, 1, 5)

	kind, err := ValidateP2WSH(f.output, f.txOut, f.xpubs, mainNet, 0)
	require.NoError(t, err)

	ms, ok := kind.(Multisig)
	require.True(t, ok, "got %T", kind)
	require.Equal(t, uint8(2), ms.Threshold)
	require.Equal(t, fn.Some(uint32(1)), ms.Path.Change)
	require.Equal(t, fn.Some(uint32(5)), ms.Path.AddressIndex)

	script, err := txscript.PayToAddrScript(ms.Address)
	require.NoError(t, err)
	require.Equal(t, f.txOut.PkScript, script)

	encoded := ms.Descriptor.Encode()
	require.True(t, strings.HasPrefix(encoded, "wsh(sortedmulti(2,"),
		encoded)
	require.Equal(t, 3, strings.Count(encoded, "/48'/0'/0'/2']xpub"))
	require.Equal(t, 3, strings.Count(encoded, "/<0;1>/*"))

	// The descriptor derives the very same witness script.
	witnessScript, err := ms.Descriptor.WitnessScript(1, 5)
	require.NoError(t, err)
	require.Equal(t, f.witnessScript, witnessScript)
}

// TestValidateP2WSHErrors checks the outputs that aren't proven multi-sig
// outputs of ours.
func TestValidateP2WSHErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		tweak func(t *testing.T, f *multisigFixture)

		// err is the expected error, the output is Suspicious
		// otherwise.
		err error
	}{
		{
			name: "key without origin",
			tweak: func(t *testing.T, f *multisigFixture) {
				f.output.Bip32Derivation =
					f.output.Bip32Derivation[1:]
			},
			err: ErrFraudulentOutput,
		},
		{
			name: "witness script missing",
			tweak: func(t *testing.T, f *multisigFixture) {
				f.output.WitnessScript = nil
			},
			err: ErrMissingWitnessScript,
		},
		{
			name: "witness script doesn't hash to the output",
			tweak: func(t *testing.T, f *multisigFixture) {
				f.txOut.PkScript = p2wshScript(
					t, []byte{txscript.OP_TRUE},
				)
			},
			err: ErrFraudulentOutput,
		},
		{
			name: "no global xpubs",
			tweak: func(t *testing.T, f *multisigFixture) {
				f.xpubs = nil
			},
			err: ErrMissingGlobalXPub,
		},
		{
			name: "wrong account xpub",
			tweak: func(t *testing.T, f *multisigFixture) {
				other := testMaster(t, 0x44, mainNet)
				xpub := accountXPub(
					t, other, f.xpubs[0].Bip32Path,
				)
				xpub.MasterKeyFingerprint =
					f.xpubs[0].MasterKeyFingerprint
				f.xpubs[0] = xpub
			},
			err: ErrFraudulentOutput,
		},
		{
			name: "malformed multi-sig path",
			tweak: func(t *testing.T, f *multisigFixture) {
				for _, d := range f.output.Bip32Derivation {
					d.Bip32Path = []uint32{
						hardened(48), hardened(0), 0,
					}
				}
			},
			err: ErrInvalidDerivationPath,
		},
		{
			name: "uncompressed key in the script",
			tweak: func(t *testing.T, f *multisigFixture) {
				path := bip48Path(0, 0)
				ours := pubKeyAt(t, f.masters[0], path)
				other := pubKeyAt(
					t, testMaster(t, 0x44, mainNet), path,
				)

				script, err := txscript.NewScriptBuilder().
					AddOp(txscript.OP_1).
					AddData(ours.SerializeCompressed()).
					AddData(other.SerializeUncompressed()).
					AddOp(txscript.OP_2).
					AddOp(txscript.OP_CHECKMULTISIG).
					Script()
				require.NoError(t, err)

				f.output.WitnessScript = script
				f.output.Bip32Derivation =
					f.output.Bip32Derivation[:1]
				f.txOut.PkScript = p2wshScript(t, script)
			},
			err: ErrInvalidWitnessScript,
		},
		{
			name: "declared key missing from the script",
			tweak: func(t *testing.T, f *multisigFixture) {
				extra := testMaster(t, 0x44, mainNet)
				f.masters = append(f.masters, extra)
				f.output.Bip32Derivation = append(
					f.output.Bip32Derivation,
					keyOrigin(t, extra, bip48Path(0, 0)),
				)

				// Master level xpubs skip the address
				// check, leaving the key count to catch it.
				f.xpubs = nil
				for _, master := range f.masters {
					f.xpubs = append(
						f.xpubs,
						accountXPub(t, master, nil),
					)
				}
			},
			err: ErrFraudulentOutput,
		},
		{
			name: "paths differ",
			tweak: func(t *testing.T, f *multisigFixture) {
				f.output.Bip32Derivation[2].Bip32Path =
					bip48Path(0, 99)
			},
		},
		{
			name: "single-sig purpose",
			tweak: func(t *testing.T, f *multisigFixture) {
				for _, d := range f.output.Bip32Derivation {
					d.Bip32Path = bip84Path(0, 0)
				}
			},
		},
		{
			name: "nested script type",
			tweak: func(t *testing.T, f *multisigFixture) {
				for _, d := range f.output.Bip32Derivation {
					d.Bip32Path[3] = hardened(1)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newMultisigFixture(t, 0, 0)
			tc.tweak(t, f)

			kind, err := ValidateP2WSH(
				f.output, f.txOut, f.xpubs, mainNet, 3,
			)
			if tc.err != nil {
				requireOutputErr(t, err, tc.err, 3)
				return
			}

			require.NoError(t, err)
			require.IsType(t, Suspicious{}, kind)
		})
	}
}

// TestValidateP2WSHNotMultisig checks that a witness script that isn't
// multi-sig is Suspicious even on a multi-sig path.
func TestValidateP2WSHNotMultisig(t *testing.T) {
	t.Parallel()

	master := testMaster(t, 0x11, mainNet)
	path := bip48Path(0, 0)

	witnessScript, err := txscript.NewScriptBuilder().
		AddData(pubKeyAt(t, master, path).SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	out := &psbt.POutput{
		WitnessScript: witnessScript,
		Bip32Derivation: []*psbt.Bip32Derivation{
			keyOrigin(t, master, path),
		},
	}
	txOut := wire.NewTxOut(1_000, p2wshScript(t, witnessScript))

	kind, err := ValidateP2WSH(out, txOut, nil, mainNet, 0)
	require.NoError(t, err)
	require.IsType(t, Suspicious{}, kind)
}

// TestWitnessScriptKeys checks that the keys referred to by a witness script
// must all be declared.
func TestWitnessScriptKeys(t *testing.T) {
	t.Parallel()

	master := testMaster(t, 0x11, mainNet)
	path := bip84Path(0, 0)
	pubKey := pubKeyAt(t, master, path).SerializeCompressed()

	keyHashScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(pubKey)).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	pubKeys, keyHashes, err := witnessScriptKeys(keyHashScript)
	require.NoError(t, err)
	require.Empty(t, pubKeys)
	require.Equal(t, [][]byte{btcutil.Hash160(pubKey)}, keyHashes)

	declared := &psbt.POutput{
		WitnessScript: keyHashScript,
		Bip32Derivation: []*psbt.Bip32Derivation{
			keyOrigin(t, master, path),
		},
	}
	scriptKeys, err := checkWitnessScriptKeys(declared, 0)
	require.NoError(t, err)
	require.Empty(t, scriptKeys)

	undeclared := &psbt.POutput{WitnessScript: keyHashScript}
	_, err = checkWitnessScriptKeys(undeclared, 1)
	requireOutputErr(t, err, ErrFraudulentOutput, 1)

	truncated := &psbt.POutput{WitnessScript: []byte{0x05, 0x01}}
	_, err = checkWitnessScriptKeys(truncated, 2)
	requireOutputErr(t, err, ErrInvalidWitnessScript, 2)

	// Segwit v0 scripts can't use uncompressed keys, declared or not.
	uncompressedScript, err := txscript.NewScriptBuilder().
		AddData(pubKeyAt(t, master, path).SerializeUncompressed()).
		AddOp(txscript.OP_CHECKSIG).Script()
	require.NoError(t, err)

	_, _, err = witnessScriptKeys(uncompressedScript)
	require.ErrorIs(t, err, ErrInvalidWitnessScript)

	uncompressed := &psbt.POutput{
		WitnessScript:   uncompressedScript,
		Bip32Derivation: declared.Bip32Derivation,
	}
	_, err = checkWitnessScriptKeys(uncompressed, 3)
	requireOutputErr(t, err, ErrInvalidWitnessScript, 3)
}
