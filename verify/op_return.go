// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"bytes"
	"unicode/utf8"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ParseOpReturn decodes the pushes of an OP_RETURN output. The caller must
// make sure the script starts with OP_RETURN.
//
// Decoding never fails. Data pushes become a Message when they are valid
// UTF-8 and Binary otherwise. The first instruction that is not a data push,
// or that can't be parsed, ends decoding and the script from that instruction
// on is returned as a single Unknown part.
func ParseOpReturn(txOut *wire.TxOut) OpReturn {
	script := txOut.PkScript
	if len(script) > 0 && script[0] == txscript.OP_RETURN {
		script = script[1:]
	}

	var (
		parts     []OpReturnPart
		tokenizer = txscript.MakeScriptTokenizer(0, script)
		start     int32
	)
	for tokenizer.Next() {
		if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
			break
		}

		data := tokenizer.Data()
		if utf8.Valid(data) {
			parts = append(parts, Message(data))
		} else {
			parts = append(parts, Binary(bytes.Clone(data)))
		}

		start = tokenizer.ByteIndex()
	}

	// Either a non-push opcode or a parse error stopped the loop before
	// the end of the script.
	if int(start) < len(script) {
		parts = append(parts, Unknown(bytes.Clone(script[start:])))
	}

	return OpReturn{Parts: parts}
}
