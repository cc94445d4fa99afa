// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package descriptor models the output descriptors this module reconstructs
// from PSBT key metadata: single-key account descriptors and sorted
// multi-signature P2WSH descriptors, encoded with their checksum.
package descriptor

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptType is the output script a descriptor expands to.
type ScriptType uint8

const (
	// PKH is a legacy pay-to-pubkey-hash descriptor, pkh(KEY).
	PKH ScriptType = iota

	// SHWPKH is a P2WPKH nested in P2SH descriptor, sh(wpkh(KEY)).
	SHWPKH

	// WPKH is a native segwit v0 key hash descriptor, wpkh(KEY).
	WPKH

	// TR is a key path only taproot descriptor, tr(KEY).
	TR

	// WSHSortedMulti is a P2WSH sorted multi-signature descriptor,
	// wsh(sortedmulti(m,KEY,...)).
	WSHSortedMulti

	// SHWSHSortedMulti is a P2WSH sorted multi-signature descriptor
	// nested in P2SH, sh(wsh(sortedmulti(m,KEY,...))).
	SHWSHSortedMulti
)

// String returns the descriptor function of the script type.
func (s ScriptType) String() string {
	switch s {
	case PKH:
		return "pkh"

	case SHWPKH:
		return "sh(wpkh)"

	case WPKH:
		return "wpkh"

	case TR:
		return "tr"

	case WSHSortedMulti:
		return "wsh(sortedmulti)"

	case SHWSHSortedMulti:
		return "sh(wsh(sortedmulti))"

	default:
		return "unknown"
	}
}

var (
	// ErrNoKeys is returned when a descriptor has no keys.
	ErrNoKeys = errors.New("descriptor has no keys")

	// ErrInvalidThreshold is returned when a multi-signature threshold is
	// zero or larger than the number of keys.
	ErrInvalidThreshold = errors.New("invalid multisig threshold")

	// ErrTooManyKeys is returned when a single-key descriptor has more
	// than one key, or a multi-signature one has more than
	// txscript.MaxPubKeysPerMultiSig keys.
	ErrTooManyKeys = errors.New("too many keys for descriptor")

	// ErrUnknownScriptType is returned for a script type outside of the
	// known set.
	ErrUnknownScriptType = errors.New("unknown descriptor script type")
)

// Descriptor is an output descriptor over one or more keys.
type Descriptor struct {
	// Type is the script the descriptor expands to.
	Type ScriptType

	// Threshold is the number of signatures required. It is only used by
	// WSHSortedMulti.
	Threshold int

	// Keys are the keys of the descriptor, in the order they are
	// encoded.
	Keys []Key
}

// NewSingleKey returns a single-key descriptor of the given type.
func NewSingleKey(scriptType ScriptType, key Key) (*Descriptor, error) {
	d := &Descriptor{
		Type: scriptType,
		Keys: []Key{key},
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// NewSortedMulti returns a wsh(sortedmulti(threshold, keys...)) descriptor.
func NewSortedMulti(threshold int, keys []Key) (*Descriptor, error) {
	d := &Descriptor{
		Type:      WSHSortedMulti,
		Threshold: threshold,
		Keys:      keys,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// NewNestedSortedMulti returns a sh(wsh(sortedmulti(threshold, keys...)))
// descriptor.
func NewNestedSortedMulti(threshold int, keys []Key) (*Descriptor, error) {
	d := &Descriptor{
		Type:      SHWSHSortedMulti,
		Threshold: threshold,
		Keys:      keys,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// isSortedMulti returns true for the multi-signature script types.
func (d *Descriptor) isSortedMulti() bool {
	return d.Type == WSHSortedMulti || d.Type == SHWSHSortedMulti
}

// Validate checks the shape of the descriptor.
func (d *Descriptor) Validate() error {
	if len(d.Keys) == 0 {
		return ErrNoKeys
	}

	for i, key := range d.Keys {
		if err := key.validate(); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
	}

	switch d.Type {
	case PKH, SHWPKH, WPKH, TR:
		if len(d.Keys) != 1 {
			return ErrTooManyKeys
		}

	case WSHSortedMulti, SHWSHSortedMulti:
		if len(d.Keys) > txscript.MaxPubKeysPerMultiSig {
			return ErrTooManyKeys
		}

		if d.Threshold < 1 || d.Threshold > len(d.Keys) {
			return fmt.Errorf("%w: %d of %d", ErrInvalidThreshold,
				d.Threshold, len(d.Keys))
		}

	default:
		return ErrUnknownScriptType
	}

	return nil
}

// Body returns the descriptor without its checksum.
func (d *Descriptor) Body() string {
	var b strings.Builder

	switch d.Type {
	case PKH:
		b.WriteString("pkh(")

	case SHWPKH:
		b.WriteString("sh(wpkh(")

	case WPKH:
		b.WriteString("wpkh(")

	case TR:
		b.WriteString("tr(")

	case WSHSortedMulti:
		b.WriteString("wsh(sortedmulti(")
		b.WriteString(strconv.Itoa(d.Threshold))
		b.WriteByte(',')

	case SHWSHSortedMulti:
		b.WriteString("sh(wsh(sortedmulti(")
		b.WriteString(strconv.Itoa(d.Threshold))
		b.WriteByte(',')
	}

	for i, key := range d.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(key.encode(d.Type == TR))
	}

	switch d.Type {
	case SHWPKH, WSHSortedMulti:
		b.WriteString("))")

	case SHWSHSortedMulti:
		b.WriteString(")))")

	default:
		b.WriteByte(')')
	}

	return b.String()
}

// Encode returns the descriptor followed by '#' and its checksum.
func (d *Descriptor) Encode() string {
	// The body only ever holds characters of the descriptor character
	// set.
	desc, err := AddChecksum(d.Body())
	if err != nil {
		return d.Body()
	}

	return desc
}

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	return d.Encode()
}

// WitnessScript returns the multi-signature witness script at the given
// branch and index. It is only defined for the sorted multi-signature types.
func (d *Descriptor) WitnessScript(branch, index uint32) ([]byte, error) {
	if !d.isSortedMulti() {
		return nil, fmt.Errorf("%w: %v has no witness script",
			ErrUnknownScriptType, d.Type)
	}

	pubKeys := make([][]byte, 0, len(d.Keys))
	for _, key := range d.Keys {
		pubKey, err := key.Derive(branch, index)
		if err != nil {
			return nil, err
		}

		pubKeys = append(pubKeys, pubKey.SerializeCompressed())
	}
	slices.SortFunc(pubKeys, bytes.Compare)

	builder := txscript.NewScriptBuilder().
		AddInt64(int64(d.Threshold))
	for _, pubKey := range pubKeys {
		builder.AddData(pubKey)
	}
	builder.AddInt64(int64(len(pubKeys))).
		AddOp(txscript.OP_CHECKMULTISIG)

	return builder.Script()
}

// Address derives the address at the given branch and index.
func (d *Descriptor) Address(branch, index uint32,
	params *chaincfg.Params) (btcutil.Address, error) {

	if d.isSortedMulti() {
		script, err := d.WitnessScript(branch, index)
		if err != nil {
			return nil, err
		}

		hash := sha256.Sum256(script)
		witnessAddr, err := btcutil.NewAddressWitnessScriptHash(
			hash[:], params,
		)
		if err != nil {
			return nil, err
		}
		if d.Type == WSHSortedMulti {
			return witnessAddr, nil
		}

		redeemScript, err := txscript.PayToAddrScript(witnessAddr)
		if err != nil {
			return nil, err
		}

		return btcutil.NewAddressScriptHash(redeemScript, params)
	}

	if len(d.Keys) != 1 {
		return nil, ErrTooManyKeys
	}

	pubKey, err := d.Keys[0].Derive(branch, index)
	if err != nil {
		return nil, err
	}

	return SingleKeyAddress(d.Type, pubKey, params)
}

// SingleKeyAddress returns the address a single-key script type pays to for
// the given public key.
func SingleKeyAddress(scriptType ScriptType, pubKey *btcec.PublicKey,
	params *chaincfg.Params) (btcutil.Address, error) {

	switch scriptType {
	case PKH:
		return btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(pubKey.SerializeCompressed()), params,
		)

	case WPKH:
		return btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubKey.SerializeCompressed()), params,
		)

	case SHWPKH:
		witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(
			btcutil.Hash160(pubKey.SerializeCompressed()), params,
		)
		if err != nil {
			return nil, err
		}

		redeemScript, err := txscript.PayToAddrScript(witnessAddr)
		if err != nil {
			return nil, err
		}

		return btcutil.NewAddressScriptHash(redeemScript, params)

	case TR:
		outputKey := txscript.ComputeTaprootKeyNoScript(pubKey)

		return btcutil.NewAddressTaproot(
			schnorr.SerializePubKey(outputKey), params,
		)

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownScriptType,
			scriptType)
	}
}
