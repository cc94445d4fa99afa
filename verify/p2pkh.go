// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
)

// ValidateP2PKH validates a pay-to-pubkey-hash output against its single
// declared key. The output is tagged with its path when it is a BIP-0044
// address path.
func ValidateP2PKH(out *psbt.POutput, txOut *wire.TxOut,
	params *chaincfg.Params, index int) (OutputKind, error) {

	return validateSingleKey(
		descriptor.PKH, keypath.PurposeBIP0044, out, txOut, params,
		index,
	)
}
