// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/psbtcheck/keypath"
)

// serializedKeyLen is the length of a BIP-0032 serialized extended key
// without its base58 checksum.
const serializedKeyLen = 78

// globalXPub is a decoded global xpub of a PSBT.
type globalXPub struct {
	key         *hdkeychain.ExtendedKey
	network     keypath.NetworkKind
	fingerprint uint32
	path        []uint32
}

// decodeXPub decodes the serialized extended key of a global xpub and
// determines its network from the version bytes.
func decodeXPub(xpub psbt.XPub) (*globalXPub, error) {
	if len(xpub.ExtendedKey) != serializedKeyLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidXPub,
			len(xpub.ExtendedKey))
	}

	// hdkeychain only parses the base58check form, so add the checksum
	// back before decoding.
	checksum := chainhash.DoubleHashB(xpub.ExtendedKey)[:4]
	encoded := base58.Encode(append(
		slices.Clone(xpub.ExtendedKey), checksum...,
	))

	key, err := hdkeychain.NewKeyFromString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXPub, err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("%w: private key", ErrInvalidXPub)
	}

	var network keypath.NetworkKind
	switch {
	case key.IsForNet(&chaincfg.MainNetParams):
		network = keypath.Mainnet

	// Testnet, signet and regtest share the tpub version.
	case key.IsForNet(&chaincfg.TestNet3Params):
		network = keypath.Testnet

	default:
		return nil, fmt.Errorf("%w: unknown version", ErrInvalidXPub)
	}

	return &globalXPub{
		key:         key,
		network:     network,
		fingerprint: xpub.MasterKeyFingerprint,
		path:        xpub.Bip32Path,
	}, nil
}

// decodeXPubs decodes every global xpub of the packet, in order.
func decodeXPubs(xpubs []psbt.XPub) ([]*globalXPub, error) {
	decoded := make([]*globalXPub, 0, len(xpubs))
	for _, xpub := range xpubs {
		key, err := decodeXPub(xpub)
		if err != nil {
			return nil, err
		}

		decoded = append(decoded, key)
	}

	return decoded, nil
}

// EncodeXPub serializes an extended public key and its origin into the
// global xpub record of a PSBT.
func EncodeXPub(key *hdkeychain.ExtendedKey, fingerprint uint32,
	path []uint32) (psbt.XPub, error) {

	if key.IsPrivate() {
		return psbt.XPub{}, fmt.Errorf("%w: private key",
			ErrInvalidXPub)
	}

	decoded := base58.Decode(key.String())
	if len(decoded) != serializedKeyLen+4 {
		return psbt.XPub{}, ErrInvalidXPub
	}

	return psbt.XPub{
		ExtendedKey:          decoded[:serializedKeyLen],
		MasterKeyFingerprint: fingerprint,
		Bip32Path:            slices.Clone(path),
	}, nil
}

// Fingerprint returns the fingerprint of a master key, in the byte order
// used by PSBT key origins.
func Fingerprint(master *hdkeychain.ExtendedKey) (uint32, error) {
	pubKey, err := master.ECPubKey()
	if err != nil {
		return 0, err
	}

	id := btcutil.Hash160(pubKey.SerializeCompressed())

	return binary.LittleEndian.Uint32(id[:4]), nil
}
