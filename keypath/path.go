// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keypath parses BIP-0032 derivation paths that follow the BIP-0044
// family of account schemes (BIP-0044, BIP-0048, BIP-0049, BIP-0084 and
// BIP-0086).
//
// A path that does not start with one of these purposes is not an error, it
// is simply not an account path. Once the purpose is recognized though, the
// rest of the path must follow the scheme, otherwise a descriptive error is
// returned.
package keypath

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// PurposeBIP0044 is the purpose of legacy P2PKH accounts.
	PurposeBIP0044 uint32 = 44

	// PurposeBIP0048 is the purpose of multi-sig accounts.
	PurposeBIP0048 uint32 = 48

	// PurposeBIP0049 is the purpose of P2WPKH nested in P2SH accounts.
	PurposeBIP0049 uint32 = 49

	// PurposeBIP0084 is the purpose of native P2WPKH accounts.
	PurposeBIP0084 uint32 = 84

	// PurposeBIP0086 is the purpose of single key P2TR accounts.
	PurposeBIP0086 uint32 = 86
)

const (
	// ScriptTypeP2SHP2WSH is the BIP-0048 script type for P2WSH multi-sig
	// nested in P2SH.
	ScriptTypeP2SHP2WSH uint32 = 1

	// ScriptTypeP2WSH is the BIP-0048 script type for native P2WSH
	// multi-sig.
	ScriptTypeP2WSH uint32 = 2
)

const (
	// ExternalBranch is the change element of receiving addresses.
	ExternalBranch uint32 = 0

	// InternalBranch is the change element of change addresses.
	InternalBranch uint32 = 1
)

var (
	// ErrExpectedCoinType is returned when a recognized purpose is not
	// followed by a coin type.
	ErrExpectedCoinType = errors.New("expected coin type in the " +
		"derivation path")

	// ErrExpectedAccount is returned when the coin type is not followed
	// by an account.
	ErrExpectedAccount = errors.New("expected account in the " +
		"derivation path")

	// ErrExpectedScriptType is returned when a BIP-0048 account is not
	// followed by a script type.
	ErrExpectedScriptType = errors.New("expected script type in the " +
		"derivation path")

	// ErrExpectedHardened is returned when an element of the path does
	// not have the hardening expected at its position.
	ErrExpectedHardened = errors.New("expected a hardened child number " +
		"in the derivation path")
)

// Path is a parsed BIP-0044 like derivation path. The zero value is not
// meaningful, a Path can only be obtained through Parse.
type Path struct {
	// Purpose is the purpose of the account, usually the BIP number of the
	// account scheme.
	Purpose uint32

	// CoinType indicates the network, 0 for mainnet and 1 for every test
	// network.
	CoinType uint32

	// Account is the account number.
	Account uint32

	// ScriptType is only present for BIP-0048 paths.
	ScriptType fn.Option[uint32]

	// Change is 1 for change addresses, 0 for receiving addresses.
	Change fn.Option[uint32]

	// AddressIndex is the index of the address. It is only present if
	// Change is present.
	AddressIndex fn.Option[uint32]
}

// Parse parses a raw sequence of BIP-0032 child numbers, where hardened
// elements carry the hdkeychain.HardenedKeyStart offset.
//
// A None path with a nil error means the path is not an account path we know
// about, and callers should treat it as non-standard rather than invalid.
func Parse(path []uint32) (fn.Option[Path], error) {
	it := &cursor{path: path}

	// Only continue if the purpose is hardened and one of the schemes we
	// know, anything else is simply not an account path.
	purpose, err := it.hardened()
	if err != nil || purpose.IsNone() {
		return fn.None[Path](), nil
	}

	p := Path{Purpose: purpose.UnsafeFromSome()}
	if !isKnownPurpose(p.Purpose) {
		return fn.None[Path](), nil
	}

	coinType, err := it.hardened()
	if err != nil {
		return fn.None[Path](), err
	}
	p.CoinType, err = coinType.UnwrapOrErr(ErrExpectedCoinType)
	if err != nil {
		return fn.None[Path](), err
	}

	account, err := it.hardened()
	if err != nil {
		return fn.None[Path](), err
	}
	p.Account, err = account.UnwrapOrErr(ErrExpectedAccount)
	if err != nil {
		return fn.None[Path](), err
	}

	if p.Purpose == PurposeBIP0048 {
		scriptType, err := it.hardened()
		if err != nil {
			return fn.None[Path](), err
		}
		if scriptType.IsNone() {
			return fn.None[Path](), ErrExpectedScriptType
		}
		p.ScriptType = scriptType
	}

	// Change and address index are optional, but must be normal child
	// numbers when present.
	p.Change, err = it.normal()
	if err != nil {
		return fn.None[Path](), err
	}

	if p.Change.IsSome() {
		p.AddressIndex, err = it.normal()
		if err != nil {
			return fn.None[Path](), err
		}
	}

	return fn.Some(p), nil
}

// isKnownPurpose returns true for the purposes of the account schemes we
// understand.
func isKnownPurpose(purpose uint32) bool {
	switch purpose {
	case PurposeBIP0044, PurposeBIP0048, PurposeBIP0049, PurposeBIP0084,
		PurposeBIP0086:

		return true

	default:
		return false
	}
}

// cursor walks a derivation path left to right, exactly once.
type cursor struct {
	path []uint32
	pos  int
}

// next returns the next element, if any.
func (c *cursor) next() (uint32, bool) {
	if c.pos >= len(c.path) {
		return 0, false
	}

	elem := c.path[c.pos]
	c.pos++

	return elem, true
}

// hardened consumes the next element, which must be hardened. The returned
// value has the hardening offset removed.
func (c *cursor) hardened() (fn.Option[uint32], error) {
	elem, ok := c.next()
	if !ok {
		return fn.None[uint32](), nil
	}

	if elem < hdkeychain.HardenedKeyStart {
		return fn.None[uint32](), ErrExpectedHardened
	}

	return fn.Some(elem - hdkeychain.HardenedKeyStart), nil
}

// normal consumes the next element, which must not be hardened.
func (c *cursor) normal() (fn.Option[uint32], error) {
	elem, ok := c.next()
	if !ok {
		return fn.None[uint32](), nil
	}

	if elem >= hdkeychain.HardenedKeyStart {
		return fn.None[uint32](), ErrExpectedHardened
	}

	return fn.Some(elem), nil
}

// IsForAddress returns true if the path derives an address and not only an
// account.
func (p Path) IsForAddress() bool {
	return p.Change.IsSome() && p.AddressIndex.IsSome()
}

// Matches returns true if the path has the given purpose and its coin type
// is the standard one for the network kind.
func (p Path) Matches(purpose uint32, network NetworkKind) bool {
	if p.Purpose != purpose {
		return false
	}

	return p.IsValidForNetworkKind(network).UnwrapOr(false)
}

// ToNetworkKind returns the network kind implied by the coin type. Coin types
// other than 0 and 1 return None since they neither prove nor disprove
// anything about the network.
func (p Path) ToNetworkKind() fn.Option[NetworkKind] {
	switch p.CoinType {
	case 0:
		return fn.Some(Mainnet)

	case 1:
		return fn.Some(Testnet)

	default:
		return fn.None[NetworkKind]()
	}
}

// IsValidForNetworkKind returns whether the coin type matches the network
// kind, or None if the coin type is non-standard.
func (p Path) IsValidForNetworkKind(network NetworkKind) fn.Option[bool] {
	return fn.MapOption(func(kind NetworkKind) bool {
		return kind == network
	})(p.ToNetworkKind())
}

// IsChange returns whether the path is for a change address, or None if the
// path has no change element.
func (p Path) IsChange() fn.Option[bool] {
	return fn.MapOption(func(change uint32) bool {
		return change == InternalBranch
	})(p.Change)
}

// KeychainKind returns the keychain the path belongs to, or None if the path
// has no change element.
func (p Path) KeychainKind() fn.Option[KeychainKind] {
	return fn.MapOption(func(isChange bool) KeychainKind {
		if isChange {
			return Internal
		}

		return External
	})(p.IsChange())
}

// AccountPath returns the hardened account level prefix of the path, which
// is where the account extended public key lives.
func (p Path) AccountPath() []uint32 {
	account := []uint32{
		p.Purpose + hdkeychain.HardenedKeyStart,
		p.CoinType + hdkeychain.HardenedKeyStart,
		p.Account + hdkeychain.HardenedKeyStart,
	}

	p.ScriptType.WhenSome(func(scriptType uint32) {
		account = append(
			account, scriptType+hdkeychain.HardenedKeyStart,
		)
	})

	return account
}

// Elements returns the raw child numbers of the path.
func (p Path) Elements() []uint32 {
	elems := p.AccountPath()

	p.Change.WhenSome(func(change uint32) {
		elems = append(elems, change)
	})
	p.AddressIndex.WhenSome(func(index uint32) {
		elems = append(elems, index)
	})

	return elems
}

// String returns the path in the usual m/84'/0'/0'/0/0 notation.
func (p Path) String() string {
	return FormatPath(p.Elements())
}
