// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/psbtcheck/multisig"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// hardened returns the hardened child number of i.
func hardened(i uint32) uint32 {
	return i + hdkeychain.HardenedKeyStart
}

// testMaster returns a master key built from a seed filled with b.
func testMaster(t *testing.T, b byte) *hdkeychain.ExtendedKey {
	t.Helper()

	master, err := hdkeychain.NewMaster(
		bytes.Repeat([]byte{b}, hdkeychain.RecommendedSeedLen),
		&chaincfg.MainNetParams,
	)
	require.NoError(t, err)

	return master
}

// derivePath derives path below key.
func derivePath(t *testing.T, key *hdkeychain.ExtendedKey,
	path []uint32) *hdkeychain.ExtendedKey {

	t.Helper()

	for _, elem := range path {
		var err error
		key, err = key.Derive(elem)
		require.NoError(t, err)
	}

	return key
}

// accountKey returns the neutered account key and its origin.
func accountKey(t *testing.T, master *hdkeychain.ExtendedKey,
	origin []uint32, branch fn.Option[uint32]) Key {

	t.Helper()

	xpub, err := derivePath(t, master, origin).Neuter()
	require.NoError(t, err)

	return Key{
		MasterFingerprint: 0xdeadbeef,
		Origin:            origin,
		XPub:              xpub,
		Branch:            branch,
	}
}

// errBadChecksum is returned by verifyChecksum on a mismatch.
var errBadChecksum = errors.New("invalid descriptor checksum")

// verifyChecksum checks the checksum of a descriptor of the form
// body#checksum and returns the body.
func verifyChecksum(desc string) (string, error) {
	body, sum, ok := strings.Cut(desc, "#")
	if !ok {
		return "", errBadChecksum
	}

	want, err := Checksum(body)
	if err != nil {
		return "", err
	}
	if want != sum {
		return "", errBadChecksum
	}

	return body, nil
}

// TestChecksum checks the checksum against a known vector and its failure
// modes.
func TestChecksum(t *testing.T) {
	t.Parallel()

	sum, err := Checksum("raw(deadbeef)")
	require.NoError(t, err)
	require.Equal(t, "89f8spxm", sum)

	body, err := verifyChecksum("raw(deadbeef)#89f8spxm")
	require.NoError(t, err)
	require.Equal(t, "raw(deadbeef)", body)

	_, err = verifyChecksum("raw(deedbeef)#89f8spxm")
	require.ErrorIs(t, err, errBadChecksum)

	_, err = verifyChecksum("raw(deadbeef)#89f8spx")
	require.ErrorIs(t, err, errBadChecksum)

	_, err = verifyChecksum("raw(deadbeef)")
	require.ErrorIs(t, err, errBadChecksum)

	_, err = Checksum("raw(é)")
	require.ErrorIs(t, err, ErrInvalidCharacter)
}

// TestSingleKeyDescriptor checks the encoding and derived addresses of the
// single-key descriptor types.
func TestSingleKeyDescriptor(t *testing.T) {
	t.Parallel()

	master := testMaster(t, 0x01)

	tests := []struct {
		name       string
		scriptType ScriptType
		purpose    uint32
		prefix     string
	}{
		{
			name:       "pkh",
			scriptType: PKH,
			purpose:    44,
			prefix:     "pkh([efbeadde/44'/0'/0']xpub",
		},
		{
			name:       "sh wpkh",
			scriptType: SHWPKH,
			purpose:    49,
			prefix:     "sh(wpkh([efbeadde/49'/0'/0']xpub",
		},
		{
			name:       "wpkh",
			scriptType: WPKH,
			purpose:    84,
			prefix:     "wpkh([efbeadde/84'/0'/0']xpub",
		},
		{
			name:       "tr",
			scriptType: TR,
			purpose:    86,
			prefix:     "tr([efbeadde/86'/0'/0']xpub",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			origin := []uint32{
				hardened(tc.purpose), hardened(0), hardened(0),
			}
			key := accountKey(t, master, origin, fn.Some[uint32](1))

			desc, err := NewSingleKey(tc.scriptType, key)
			require.NoError(t, err)

			encoded := desc.Encode()
			require.True(t, strings.HasPrefix(encoded, tc.prefix),
				encoded)
			require.Contains(t, encoded, "/1/*)")

			_, err = verifyChecksum(encoded)
			require.NoError(t, err)

			// The address must match the one built from the key
			// derived straight from the master key.
			child := derivePath(
				t, master, append(origin, 1, 7),
			)
			pubKey, err := child.ECPubKey()
			require.NoError(t, err)

			want, err := SingleKeyAddress(
				tc.scriptType, pubKey, &chaincfg.MainNetParams,
			)
			require.NoError(t, err)

			got, err := desc.Address(7, 1, &chaincfg.MainNetParams)
			require.ErrorIs(t, err, ErrBranchNotCovered)
			require.Nil(t, got)

			got, err = desc.Address(1, 7, &chaincfg.MainNetParams)
			require.NoError(t, err)
			require.Equal(
				t, want.EncodeAddress(), got.EncodeAddress(),
			)
		})
	}
}

// TestSingleKeyAddressScripts checks the script classes produced for each
// single-key type.
func TestSingleKeyAddressScripts(t *testing.T) {
	t.Parallel()

	pubKey, err := testMaster(t, 0x02).ECPubKey()
	require.NoError(t, err)

	classes := map[ScriptType]func([]byte) bool{
		PKH:    txscript.IsPayToPubKeyHash,
		SHWPKH: txscript.IsPayToScriptHash,
		WPKH:   txscript.IsPayToWitnessPubKeyHash,
		TR:     txscript.IsPayToTaproot,
	}
	for scriptType, isClass := range classes {
		addr, err := SingleKeyAddress(
			scriptType, pubKey, &chaincfg.TestNet3Params,
		)
		require.NoError(t, err)

		script, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)
		require.True(t, isClass(script), scriptType.String())
	}

	_, err = SingleKeyAddress(
		WSHSortedMulti, pubKey, &chaincfg.TestNet3Params,
	)
	require.ErrorIs(t, err, ErrUnknownScriptType)
}

// TestSortedMulti checks that the multi-signature descriptor encodes every
// key with the multipath suffix and derives the same address regardless of
// key order.
func TestSortedMulti(t *testing.T) {
	t.Parallel()

	origin := []uint32{hardened(48), hardened(0), hardened(0), hardened(2)}
	keys := []Key{
		accountKey(t, testMaster(t, 0x01), origin, fn.None[uint32]()),
		accountKey(t, testMaster(t, 0x02), origin, fn.None[uint32]()),
		accountKey(t, testMaster(t, 0x03), origin, fn.None[uint32]()),
	}

	desc, err := NewSortedMulti(2, keys)
	require.NoError(t, err)

	encoded := desc.Encode()
	require.True(t, strings.HasPrefix(encoded, "wsh(sortedmulti(2,["))
	require.Equal(t, 3, strings.Count(encoded, "/<0;1>/*"))
	require.Equal(t, 3, strings.Count(encoded, "[efbeadde/48'/0'/0'/2']"))

	script, err := desc.WitnessScript(1, 3)
	require.NoError(t, err)

	m, err := multisig.Disassemble(script)
	require.NoError(t, err)
	require.Equal(t, uint8(2), m)

	reversed, err := NewSortedMulti(2, []Key{keys[2], keys[1], keys[0]})
	require.NoError(t, err)
	require.NotEqual(t, encoded, reversed.Encode())

	addr, err := desc.Address(1, 3, &chaincfg.MainNetParams)
	require.NoError(t, err)
	addrReversed, err := reversed.Address(1, 3, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, addr.EncodeAddress(), addrReversed.EncodeAddress())

	other, err := desc.Address(0, 3, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.NotEqual(t, addr.EncodeAddress(), other.EncodeAddress())

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	require.True(t, txscript.IsPayToWitnessScriptHash(pkScript))
}

// TestNestedSortedMulti checks the P2SH wrapped multi-signature descriptor
// against its native counterpart.
func TestNestedSortedMulti(t *testing.T) {
	t.Parallel()

	origin := []uint32{hardened(48), hardened(0), hardened(0), hardened(1)}
	keys := []Key{
		accountKey(t, testMaster(t, 0x01), origin, fn.None[uint32]()),
		accountKey(t, testMaster(t, 0x02), origin, fn.None[uint32]()),
	}

	native, err := NewSortedMulti(2, keys)
	require.NoError(t, err)
	nested, err := NewNestedSortedMulti(2, keys)
	require.NoError(t, err)

	encoded := nested.Encode()
	require.True(t, strings.HasPrefix(encoded, "sh(wsh(sortedmulti(2,["))
	require.Contains(t, encoded, "/<0;1>/*)))#")
	_, err = verifyChecksum(encoded)
	require.NoError(t, err)

	nativeScript, err := native.WitnessScript(0, 9)
	require.NoError(t, err)
	nestedScript, err := nested.WitnessScript(0, 9)
	require.NoError(t, err)
	require.Equal(t, nativeScript, nestedScript)

	// The nested address pays to the P2SH of the native program.
	witnessAddr, err := native.Address(0, 9, &chaincfg.MainNetParams)
	require.NoError(t, err)
	redeemScript, err := txscript.PayToAddrScript(witnessAddr)
	require.NoError(t, err)

	addr, err := nested.Address(0, 9, &chaincfg.MainNetParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	require.True(t, txscript.IsPayToScriptHash(pkScript))

	want, err := btcutil.NewAddressScriptHash(
		redeemScript, &chaincfg.MainNetParams,
	)
	require.NoError(t, err)
	require.Equal(t, want.EncodeAddress(), addr.EncodeAddress())

	_, err = NewNestedSortedMulti(3, keys)
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

// TestDescriptorValidate covers the shape errors.
func TestDescriptorValidate(t *testing.T) {
	t.Parallel()

	master := testMaster(t, 0x04)
	origin := []uint32{hardened(48), hardened(0), hardened(0), hardened(2)}
	key := accountKey(t, master, origin, fn.None[uint32]())

	_, err := NewSortedMulti(0, []Key{key})
	require.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = NewSortedMulti(2, []Key{key})
	require.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = NewSortedMulti(1, nil)
	require.ErrorIs(t, err, ErrNoKeys)

	_, err = NewSingleKey(WPKH, Key{})
	require.ErrorIs(t, err, ErrMissingKey)

	private := key
	private.XPub = derivePath(t, master, origin)
	_, err = NewSingleKey(WPKH, private)
	require.ErrorIs(t, err, ErrPrivateKey)

	desc := &Descriptor{Type: WPKH, Keys: []Key{key, key}}
	require.ErrorIs(t, desc.Validate(), ErrTooManyKeys)

	desc = &Descriptor{Type: ScriptType(99), Keys: []Key{key}}
	require.ErrorIs(t, desc.Validate(), ErrUnknownScriptType)

	_, err = (&Descriptor{Type: WPKH, Keys: []Key{key}}).WitnessScript(
		0, 0,
	)
	require.ErrorIs(t, err, ErrUnknownScriptType)
}

// TestPlainKey checks descriptors over a plain public key.
func TestPlainKey(t *testing.T) {
	t.Parallel()

	pubKey, err := testMaster(t, 0x05).ECPubKey()
	require.NoError(t, err)

	key := Key{
		MasterFingerprint: 0x01020304,
		Origin:            []uint32{hardened(86), 5},
		PubKey:            pubKey,
	}

	desc, err := NewSingleKey(TR, key)
	require.NoError(t, err)

	// Taproot keys are written x-only, 32 bytes.
	body := desc.Body()
	require.True(t, strings.HasPrefix(body, "tr([04030201/86'/5]"), body)
	require.Len(t, body, len("tr([04030201/86'/5])")+64)

	desc, err = NewSingleKey(WPKH, key)
	require.NoError(t, err)
	require.Len(t, desc.Body(), len("wpkh([04030201/86'/5])")+66)

	addr, err := desc.Address(0, 42, &chaincfg.MainNetParams)
	require.NoError(t, err)

	want, err := SingleKeyAddress(WPKH, pubKey, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, want.EncodeAddress(), addr.EncodeAddress())
}
