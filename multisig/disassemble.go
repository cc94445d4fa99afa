// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package multisig disassembles bare m-of-n OP_CHECKMULTISIG scripts, as
// found in P2WSH witness scripts and P2SH redeem scripts.
package multisig

import (
	"errors"

	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrExpectedPushnum is returned when an OP_1 to OP_16 opcode was
	// expected.
	ErrExpectedPushnum = errors.New("expected OP_PUSHNUM")

	// ErrExpectedCheckMultisig is returned when the keys and the total
	// are not followed by OP_CHECKMULTISIG.
	ErrExpectedCheckMultisig = errors.New("expected OP_CHECKMULTISIG")

	// ErrExpectedEOF is returned when the script continues after
	// OP_CHECKMULTISIG.
	ErrExpectedEOF = errors.New("expected end of script")

	// ErrMalformedPublicKey is returned when a data push is not a valid
	// public key.
	ErrMalformedPublicKey = errors.New("malformed public key")

	// ErrMalformedScript is returned when the script can't be tokenized.
	ErrMalformedScript = errors.New("malformed script")

	// ErrInvalidTotalPublicKeysLength is returned when the n of the
	// script doesn't match the number of public keys pushed.
	ErrInvalidTotalPublicKeysLength = errors.New("invalid total public " +
		"keys length")

	// ErrUnexpectedEOF is returned when the script ends early.
	ErrUnexpectedEOF = errors.New("unexpected end of script")
)

// Disassemble parses a multi-sig script of the form
//
//	OP_m <pubkey 1> ... <pubkey n> OP_n OP_CHECKMULTISIG
//
// and returns m, the number of signatures required. The script is walked
// once, left to right, and anything that deviates from the template is an
// error, including trailing opcodes.
func Disassemble(script []byte) (uint8, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	if err := advance(&tokenizer); err != nil {
		return 0, err
	}
	m, err := pushnum(tokenizer.Opcode())
	if err != nil {
		return 0, err
	}

	// Consume public keys until the first opcode that isn't a data push,
	// which must then be the total.
	var numPubKeys int
	for {
		if err := advance(&tokenizer); err != nil {
			return 0, err
		}

		if !isDataPush(tokenizer.Opcode()) {
			break
		}

		err := checkPubKey(tokenizer.Opcode(), tokenizer.Data())
		if err != nil {
			return 0, err
		}
		numPubKeys++
	}

	n, err := pushnum(tokenizer.Opcode())
	if err != nil {
		return 0, err
	}
	if int(n) != numPubKeys {
		return 0, ErrInvalidTotalPublicKeysLength
	}

	if err := advance(&tokenizer); err != nil {
		return 0, err
	}
	if tokenizer.Opcode() != txscript.OP_CHECKMULTISIG {
		return 0, ErrExpectedCheckMultisig
	}

	// Anything after OP_CHECKMULTISIG, parseable or not, is rejected.
	if tokenizer.Next() || tokenizer.Err() != nil {
		return 0, ErrExpectedEOF
	}

	return m, nil
}

// advance moves the tokenizer to the next opcode.
func advance(tokenizer *txscript.ScriptTokenizer) error {
	if tokenizer.Next() {
		return nil
	}

	if tokenizer.Err() != nil {
		return ErrMalformedScript
	}

	return ErrUnexpectedEOF
}

// pushnum decodes OP_1 through OP_16.
func pushnum(opcode byte) (uint8, error) {
	if opcode < txscript.OP_1 || opcode > txscript.OP_16 {
		return 0, ErrExpectedPushnum
	}

	return opcode - (txscript.OP_1 - 1), nil
}

// isDataPush returns true for opcodes that push data, including OP_0 which
// pushes an empty item.
func isDataPush(opcode byte) bool {
	return opcode <= txscript.OP_PUSHDATA4
}

// checkPubKey makes sure a data push holds a minimally pushed public key.
func checkPubKey(opcode byte, data []byte) error {
	switch len(data) {
	case secp256k1.PubKeyBytesLenCompressed,
		secp256k1.PubKeyBytesLenUncompressed:

	default:
		return ErrMalformedPublicKey
	}

	// Keys are always short enough to be pushed with OP_DATA_X, so any
	// other push is non-minimal.
	if int(opcode) != len(data) {
		return ErrMalformedScript
	}

	if _, err := secp256k1.ParsePubKey(data); err != nil {
		return ErrMalformedPublicKey
	}

	return nil
}
