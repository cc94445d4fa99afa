// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
)

// ValidateP2SH validates a pay-to-script-hash output. Only P2WPKH nested in
// P2SH is supported, recognized by a BIP-0049 purpose on the first key
// origin. Anything else is ErrUnimplemented.
func ValidateP2SH(out *psbt.POutput, txOut *wire.TxOut,
	params *chaincfg.Params, index int) (OutputKind, error) {

	if len(out.Bip32Derivation) == 0 {
		return nil, outputErr(index, ErrExpectedKeys)
	}

	path := out.Bip32Derivation[0].Bip32Path
	nested := len(path) > 0 &&
		path[0] == keypath.PurposeBIP0049+hdkeychain.HardenedKeyStart
	if !nested {
		return nil, outputErr(index, fmt.Errorf("%w: p2sh output with "+
			"path %s", ErrUnimplemented, keypath.FormatPath(path)))
	}

	return validateSingleKey(
		descriptor.SHWPKH, keypath.PurposeBIP0049, out, txOut, params,
		index,
	)
}
