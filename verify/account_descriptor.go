// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"slices"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// MultisigDescriptor rebuilds the wsh(sortedmulti(...)) account descriptor of
// a multi-sig output from the global xpubs of the PSBT.
//
// For every key origin, the account xpub is the global xpub with the same
// master fingerprint whose own path is a strict prefix of the key's path. Each
// account key is described on both branches, /<0;1>/*. Keys are listed in the
// order of their encoded xpubs so that every address of the account, in any
// record order, yields the same descriptor.
func MultisigDescriptor(threshold uint8, xpubs []psbt.XPub,
	derivations []*psbt.Bip32Derivation) (*descriptor.Descriptor, error) {

	globals, err := decodeXPubs(xpubs)
	if err != nil {
		return nil, err
	}

	keys := make([]descriptor.Key, 0, len(derivations))
	for _, derivation := range derivations {
		fingerprint, path := derivation.MasterKeyFingerprint,
			derivation.Bip32Path
		idx := slices.IndexFunc(globals, func(x *globalXPub) bool {
			return x.fingerprint == fingerprint &&
				isStrictPrefix(x.path, path)
		})
		if idx == -1 {
			return nil, &MissingXPubError{Path: path}
		}

		account := globals[idx]
		keys = append(keys, descriptor.Key{
			MasterFingerprint: account.fingerprint,
			Origin:            account.path,
			XPub:              account.key,
			Branch:            fn.None[uint32](),
		})
	}

	slices.SortFunc(keys, func(a, b descriptor.Key) int {
		return strings.Compare(a.XPub.String(), b.XPub.String())
	})

	return descriptor.NewSortedMulti(int(threshold), keys)
}

// SingleSigDescriptor returns the account descriptor of a single-sig address
// path when its account xpub is among the global xpubs. The descriptor only
// covers the branch of the path, or both branches if the path stops at the
// account.
//
// None is returned when the purpose isn't a single-sig one or the xpub is not
// there.
func SingleSigDescriptor(fingerprint uint32, path keypath.Path,
	xpubs []psbt.XPub) (fn.Option[*descriptor.Descriptor], error) {

	none := fn.None[*descriptor.Descriptor]()

	scriptType, ok := singleSigScriptType(path.Purpose)
	if !ok {
		return none, nil
	}

	globals, err := decodeXPubs(xpubs)
	if err != nil {
		return none, err
	}

	accountPath := path.AccountPath()
	idx := slices.IndexFunc(globals, func(x *globalXPub) bool {
		return x.fingerprint == fingerprint &&
			slices.Equal(x.path, accountPath)
	})
	if idx == -1 {
		return none, nil
	}

	desc, err := descriptor.NewSingleKey(scriptType, descriptor.Key{
		MasterFingerprint: fingerprint,
		Origin:            accountPath,
		XPub:              globals[idx].key,
		Branch:            path.Change,
	})
	if err != nil {
		return none, err
	}

	return fn.Some(desc), nil
}

// singleSigScriptType maps a single-sig purpose to its script type.
func singleSigScriptType(purpose uint32) (descriptor.ScriptType, bool) {
	switch purpose {
	case keypath.PurposeBIP0044:
		return descriptor.PKH, true

	case keypath.PurposeBIP0049:
		return descriptor.SHWPKH, true

	case keypath.PurposeBIP0084:
		return descriptor.WPKH, true

	case keypath.PurposeBIP0086:
		return descriptor.TR, true

	default:
		return 0, false
	}
}

// isStrictPrefix returns true if prefix is a strict prefix of path.
func isStrictPrefix(prefix, path []uint32) bool {
	return len(prefix) < len(path) &&
		slices.Equal(prefix, path[:len(prefix)])
}
