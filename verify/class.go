// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import "github.com/btcsuite/btcd/txscript"

// ScriptClass is the pattern of a locking script, computed once per output
// to pick its validator.
type ScriptClass uint8

const (
	// ClassOther is any script not listed below.
	ClassOther ScriptClass = iota

	// ClassP2PKH is a pay-to-pubkey-hash script.
	ClassP2PKH

	// ClassP2SH is a pay-to-script-hash script.
	ClassP2SH

	// ClassP2WPKH is a segwit v0 pay-to-witness-pubkey-hash script.
	ClassP2WPKH

	// ClassP2WSH is a segwit v0 pay-to-witness-script-hash script.
	ClassP2WSH

	// ClassP2TR is a segwit v1 pay-to-taproot script.
	ClassP2TR

	// ClassOpReturn is a script starting with OP_RETURN.
	ClassOpReturn

	// ClassP2PK is a bare pay-to-pubkey script.
	ClassP2PK
)

// String returns the name of the script class.
func (c ScriptClass) String() string {
	switch c {
	case ClassP2PKH:
		return "p2pkh"

	case ClassP2SH:
		return "p2sh"

	case ClassP2WPKH:
		return "p2wpkh"

	case ClassP2WSH:
		return "p2wsh"

	case ClassP2TR:
		return "p2tr"

	case ClassOpReturn:
		return "op_return"

	case ClassP2PK:
		return "p2pk"

	default:
		return "other"
	}
}

// ClassifyScript returns the class of a locking script.
func ClassifyScript(script []byte) ScriptClass {
	switch {
	case len(script) > 0 && script[0] == txscript.OP_RETURN:
		return ClassOpReturn

	case txscript.IsPayToTaproot(script):
		return ClassP2TR

	case txscript.IsPayToWitnessPubKeyHash(script):
		return ClassP2WPKH

	case txscript.IsPayToWitnessScriptHash(script):
		return ClassP2WSH

	case txscript.IsPayToPubKeyHash(script):
		return ClassP2PKH

	case txscript.IsPayToScriptHash(script):
		return ClassP2SH

	case txscript.GetScriptClass(script) == txscript.PubKeyTy:
		return ClassP2PK

	default:
		return ClassOther
	}
}
