// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/stretchr/testify/require"
)

var mainNet = &chaincfg.MainNetParams

// hardened returns the hardened child number of i.
func hardened(i uint32) uint32 {
	return i + hdkeychain.HardenedKeyStart
}

// bip84Path returns m/84'/0'/0'/change/index.
func bip84Path(change, index uint32) []uint32 {
	return []uint32{hardened(84), hardened(0), hardened(0), change, index}
}

// bip48Path returns m/48'/0'/0'/2'/change/index.
func bip48Path(change, index uint32) []uint32 {
	return []uint32{
		hardened(48), hardened(0), hardened(0), hardened(2), change,
		index,
	}
}

// testMaster returns a master key built from a seed filled with b.
func testMaster(t *testing.T, b byte,
	params *chaincfg.Params) *hdkeychain.ExtendedKey {

	t.Helper()

	master, err := hdkeychain.NewMaster(
		bytes.Repeat([]byte{b}, hdkeychain.RecommendedSeedLen), params,
	)
	require.NoError(t, err)

	return master
}

// testFingerprint returns the fingerprint of master.
func testFingerprint(t *testing.T, master *hdkeychain.ExtendedKey) uint32 {
	t.Helper()

	fingerprint, err := Fingerprint(master)
	require.NoError(t, err)

	return fingerprint
}

// pubKeyAt returns the public key at path below master.
func pubKeyAt(t *testing.T, master *hdkeychain.ExtendedKey,
	path []uint32) *btcec.PublicKey {

	t.Helper()

	key, err := derivePath(master, path)
	require.NoError(t, err)

	pubKey, err := key.ECPubKey()
	require.NoError(t, err)

	return pubKey
}

// keyOrigin returns the bip32 derivation of the key at path below master.
func keyOrigin(t *testing.T, master *hdkeychain.ExtendedKey,
	path []uint32) *psbt.Bip32Derivation {

	t.Helper()

	pubKey := pubKeyAt(t, master, path)

	return &psbt.Bip32Derivation{
		PubKey:               pubKey.SerializeCompressed(),
		MasterKeyFingerprint: testFingerprint(t, master),
		Bip32Path:            path,
	}
}

// taprootOrigin returns the taproot derivation of the key at path below
// master.
func taprootOrigin(t *testing.T, master *hdkeychain.ExtendedKey,
	path []uint32) *psbt.TaprootBip32Derivation {

	t.Helper()

	return &psbt.TaprootBip32Derivation{
		XOnlyPubKey: schnorr.SerializePubKey(
			pubKeyAt(t, master, path),
		),
		MasterKeyFingerprint: testFingerprint(t, master),
		Bip32Path:            path,
	}
}

// accountXPub returns the global xpub of the account at path below master.
func accountXPub(t *testing.T, master *hdkeychain.ExtendedKey,
	path []uint32) psbt.XPub {

	t.Helper()

	account, err := derivePath(master, path)
	require.NoError(t, err)

	accountPub, err := account.Neuter()
	require.NoError(t, err)

	xpub, err := EncodeXPub(accountPub, testFingerprint(t, master), path)
	require.NoError(t, err)

	return xpub
}

// singleKeyScript returns the locking script of a single key script type.
func singleKeyScript(t *testing.T, scriptType descriptor.ScriptType,
	pubKey *btcec.PublicKey) []byte {

	t.Helper()

	addr, err := descriptor.SingleKeyAddress(scriptType, pubKey, mainNet)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return script
}

// sortedMultisigScript returns an m-of-n multi-sig script over the keys,
// sorted like sortedmulti does.
func sortedMultisigScript(t *testing.T, threshold int,
	pubKeys []*btcec.PublicKey) []byte {

	t.Helper()

	serialized := make([][]byte, 0, len(pubKeys))
	for _, pubKey := range pubKeys {
		serialized = append(serialized, pubKey.SerializeCompressed())
	}
	sort.Slice(serialized, func(i, j int) bool {
		return bytes.Compare(serialized[i], serialized[j]) < 0
	})

	builder := txscript.NewScriptBuilder().AddInt64(int64(threshold))
	for _, pubKey := range serialized {
		builder.AddData(pubKey)
	}
	script, err := builder.AddInt64(int64(len(serialized))).
		AddOp(txscript.OP_CHECKMULTISIG).Script()
	require.NoError(t, err)

	return script
}

// p2wshScript returns the locking script paying to the witness script.
func p2wshScript(t *testing.T, witnessScript []byte) []byte {
	t.Helper()

	hash := sha256.Sum256(witnessScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(hash[:], mainNet)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return script
}

// multisigFixture is a 2-of-3 P2WSH multi-sig output of three BIP-0048
// accounts.
type multisigFixture struct {
	masters       []*hdkeychain.ExtendedKey
	xpubs         []psbt.XPub
	output        *psbt.POutput
	txOut         *wire.TxOut
	witnessScript []byte
}

// newMultisigFixture builds the 2-of-3 output at change/index.
func newMultisigFixture(t *testing.T, change,
	index uint32) *multisigFixture {

	t.Helper()

	f := &multisigFixture{}
	accountPath := bip48Path(0, 0)[:4]

	var pubKeys []*btcec.PublicKey
	output := &psbt.POutput{}
	for _, seed := range []byte{0x11, 0x22, 0x33} {
		master := testMaster(t, seed, mainNet)
		f.masters = append(f.masters, master)
		f.xpubs = append(f.xpubs, accountXPub(t, master, accountPath))

		path := bip48Path(change, index)
		pubKeys = append(pubKeys, pubKeyAt(t, master, path))
		output.Bip32Derivation = append(
			output.Bip32Derivation, keyOrigin(t, master, path),
		)
	}

	f.witnessScript = sortedMultisigScript(t, 2, pubKeys)
	output.WitnessScript = f.witnessScript
	f.output = output
	f.txOut = wire.NewTxOut(50_000, p2wshScript(t, f.witnessScript))

	return f
}

// inputValue is the value of the UTXO spent by newPacket.
const inputValue = 100_000

// newPacket builds a PSBT spending a P2WPKH UTXO of master at
// m/84'/0'/0'/0/0 to the given outputs.
func newPacket(t *testing.T, master *hdkeychain.ExtendedKey,
	outputs ...*wire.TxOut) *psbt.Packet {

	t.Helper()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}},
	})
	for _, out := range outputs {
		tx.AddTxOut(out)
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	path := bip84Path(0, 0)
	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(
		inputValue,
		singleKeyScript(t, descriptor.WPKH, pubKeyAt(t, master, path)),
	)
	packet.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{
		keyOrigin(t, master, path),
	}

	return packet
}

// changeOutput returns a P2WPKH output of master at m/84'/0'/0'/1/index
// and its PSBT record.
func changeOutput(t *testing.T, master *hdkeychain.ExtendedKey,
	index uint32, value int64) (*wire.TxOut, psbt.POutput) {

	t.Helper()

	path := bip84Path(1, index)
	txOut := wire.NewTxOut(
		value,
		singleKeyScript(t, descriptor.WPKH, pubKeyAt(t, master, path)),
	)

	return txOut, psbt.POutput{
		Bip32Derivation: []*psbt.Bip32Derivation{
			keyOrigin(t, master, path),
		},
	}
}
