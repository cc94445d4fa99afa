// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/psbtcheck/keypath"
)

// derivePath derives the key at path below key.
func derivePath(key *hdkeychain.ExtendedKey,
	path []uint32) (*hdkeychain.ExtendedKey, error) {

	var err error
	for _, child := range path {
		key, err = key.Derive(child)
		if err != nil {
			return nil, err
		}
	}

	return key, nil
}

// ownsKeys returns true if any key origin carries our fingerprint. With a
// master key, every such key must derive from it, otherwise
// ErrFraudulentKey is returned.
func (v *Verifier) ownsKeys(derivations []*psbt.Bip32Derivation,
	tapDerivations []*psbt.TaprootBip32Derivation) (bool, error) {

	owned := false
	for _, derivation := range derivations {
		if derivation.MasterKeyFingerprint != v.cfg.Fingerprint {
			continue
		}
		owned = true

		if v.cfg.MasterKey == nil {
			continue
		}

		pubKey, err := btcec.ParsePubKey(derivation.PubKey)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidPubKey,
				err)
		}

		derived, err := v.derivePubKey(derivation.Bip32Path)
		if err != nil {
			return false, err
		}

		if !derived.IsEqual(pubKey) {
			log.Warnf("Key %x doesn't derive from the master "+
				"key at %s", derivation.PubKey,
				keypath.FormatPath(derivation.Bip32Path))

			return false, ErrFraudulentKey
		}
	}

	for _, derivation := range tapDerivations {
		if derivation.MasterKeyFingerprint != v.cfg.Fingerprint {
			continue
		}
		owned = true

		if v.cfg.MasterKey == nil {
			continue
		}

		derived, err := v.derivePubKey(derivation.Bip32Path)
		if err != nil {
			return false, err
		}

		xOnly := schnorr.SerializePubKey(derived)
		if !bytes.Equal(xOnly, derivation.XOnlyPubKey) {
			log.Warnf("Taproot key %x doesn't derive from the "+
				"master key at %s", derivation.XOnlyPubKey,
				keypath.FormatPath(derivation.Bip32Path))

			return false, ErrFraudulentKey
		}
	}

	return owned, nil
}

// derivePubKey derives the public key at path below the master key.
func (v *Verifier) derivePubKey(path []uint32) (*btcec.PublicKey, error) {
	key, err := derivePath(v.cfg.MasterKey, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraudulentKey, err)
	}

	return key.ECPubKey()
}

// checkGlobalXPubs makes sure every global xpub carrying our fingerprint
// derives from the master key. It is a no-op without a master key.
func (v *Verifier) checkGlobalXPubs(xpubs []psbt.XPub) error {
	if v.cfg.MasterKey == nil {
		return nil
	}

	globals, err := decodeXPubs(xpubs)
	if err != nil {
		return err
	}

	for _, global := range globals {
		if global.fingerprint != v.cfg.Fingerprint {
			continue
		}

		derived, err := derivePath(v.cfg.MasterKey, global.path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFraudulentKey, err)
		}

		derivedPub, err := derived.ECPubKey()
		if err != nil {
			return err
		}

		globalPub, err := global.key.ECPubKey()
		if err != nil {
			return err
		}

		// Compare the key material only, the version bytes depend on
		// the network the master key was created for.
		same := derivedPub.IsEqual(globalPub) &&
			bytes.Equal(derived.ChainCode(), global.key.ChainCode())
		if !same {
			log.Warnf("Global xpub at %s doesn't derive from the "+
				"master key", keypath.FormatPath(global.path))

			return ErrFraudulentKey
		}
	}

	return nil
}

// accountXPubs returns the global xpubs of the packet, completed with the
// account xpubs of our standard key origins when the master key is known.
func (v *Verifier) accountXPubs(packet *psbt.Packet) ([]psbt.XPub, error) {
	xpubs := slices.Clone(packet.XPubs)
	if v.cfg.MasterKey == nil {
		return xpubs, nil
	}

	var paths [][]uint32
	collect := func(fingerprint uint32, rawPath []uint32) {
		if fingerprint != v.cfg.Fingerprint {
			return
		}

		// Paths that don't parse fail validation later on.
		path, err := keypath.Parse(rawPath)
		if err != nil {
			return
		}

		path.WhenSome(func(p keypath.Path) {
			paths = append(paths, p.AccountPath())
		})
	}

	for _, in := range packet.Inputs {
		for _, d := range in.Bip32Derivation {
			collect(d.MasterKeyFingerprint, d.Bip32Path)
		}
		for _, d := range in.TaprootBip32Derivation {
			collect(d.MasterKeyFingerprint, d.Bip32Path)
		}
	}
	for _, out := range packet.Outputs {
		for _, d := range out.Bip32Derivation {
			collect(d.MasterKeyFingerprint, d.Bip32Path)
		}
		for _, d := range out.TaprootBip32Derivation {
			collect(d.MasterKeyFingerprint, d.Bip32Path)
		}
	}

	for _, path := range paths {
		known := slices.ContainsFunc(xpubs, func(x psbt.XPub) bool {
			return x.MasterKeyFingerprint == v.cfg.Fingerprint &&
				slices.Equal(x.Bip32Path, path)
		})
		if known {
			continue
		}

		account, err := derivePath(v.cfg.MasterKey, path)
		if err != nil {
			return nil, err
		}

		accountPub, err := account.Neuter()
		if err != nil {
			return nil, err
		}

		xpub, err := EncodeXPub(accountPub, v.cfg.Fingerprint, path)
		if err != nil {
			return nil, err
		}

		xpubs = append(xpubs, xpub)
	}

	return xpubs, nil
}
