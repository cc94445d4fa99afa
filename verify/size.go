// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/btcsuite/psbtcheck/multisig"
	"github.com/btcsuite/psbtcheck/pkg/btcunit"
)

const (
	// witnessInputSize is the non-witness size of a segwit input: the
	// outpoint, an empty script sig and the sequence.
	witnessInputSize = 32 + 4 + 1 + 4

	// nestedWitnessInputSize is the non-witness size of a P2SH-P2WSH
	// input, whose script sig pushes the 34 byte redeem script.
	nestedWitnessInputSize = 32 + 4 + 1 + 1 + 34 + 4

	// maxSigSize is the size of a DER signature with its sighash flag.
	maxSigSize = 73

	// witnessHeaderWeight is the weight of the segwit marker and flag.
	witnessHeaderWeight = 2

	// bytesPerKb is the size relay fees are expressed for.
	bytesPerKb = 1000
)

// inputCounts tallies the inputs of a transaction by spent script type.
type inputCounts struct {
	p2pkh        int
	p2tr         int
	p2wpkh       int
	nestedP2WPKH int

	// multisigWeight is the weight of the P2WSH multi-sig inputs, nested
	// or not, which txsizes knows nothing about.
	multisigWeight uint64
	multisigInputs int
}

// add counts an input spending utxo. Inputs of a type that can't be sized
// are left out of the estimate.
func (c *inputCounts) add(in *psbt.PInput, utxo *wire.TxOut) {
	switch ClassifyScript(utxo.PkScript) {
	case ClassP2PKH:
		c.p2pkh++

	case ClassP2TR:
		c.p2tr++

	case ClassP2WPKH:
		c.p2wpkh++

	case ClassP2SH:
		switch {
		case txscript.IsPayToWitnessPubKeyHash(in.RedeemScript):
			c.nestedP2WPKH++

		case txscript.IsPayToWitnessScriptHash(in.RedeemScript):
			c.addMultisig(in.WitnessScript, nestedWitnessInputSize)
		}

	case ClassP2WSH:
		c.addMultisig(in.WitnessScript, witnessInputSize)
	}
}

// addMultisig counts a multi-sig input whose non-witness part is inputSize
// bytes.
func (c *inputCounts) addMultisig(witnessScript []byte, inputSize uint64) {
	threshold, err := multisig.Disassemble(witnessScript)
	if err != nil {
		return
	}

	c.multisigInputs++
	c.multisigWeight += p2wshMultisigWeight(
		threshold, witnessScript, inputSize,
	)
}

// p2wshMultisigWeight is the weight of a P2WSH multi-sig input signed by
// threshold keys.
func p2wshMultisigWeight(threshold uint8, witnessScript []byte,
	inputSize uint64) uint64 {

	scriptLen := uint64(len(witnessScript))

	// Item count, the empty dummy element, the signatures and the
	// witness script.
	witness := 1 + 1 + uint64(threshold)*(1+maxSigSize) +
		uint64(wire.VarIntSerializeSize(scriptLen)) + scriptLen

	return inputSize*blockchain.WitnessScaleFactor + witness
}

// estimateSize estimates the virtual size of the signed transaction.
func (c *inputCounts) estimateSize(txOuts []*wire.TxOut) btcunit.VByte {
	vsize := txsizes.EstimateVirtualSize(
		c.p2pkh, c.p2tr, c.p2wpkh, c.nestedP2WPKH, txOuts, 0,
	)
	weight := uint64(vsize) * blockchain.WitnessScaleFactor

	// txsizes only adds the segwit header for the inputs it counted.
	if c.multisigInputs > 0 && c.p2tr+c.p2wpkh+c.nestedP2WPKH == 0 {
		weight += witnessHeaderWeight
	}

	return btcunit.NewWeightUnit(weight + c.multisigWeight).ToVB()
}
