// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/btcsuite/psbtcheck/pkg/btcunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// InputDetails describes an input spending one of our UTXOs.
type InputDetails struct {
	// Index is the index of the input in the transaction.
	Index int

	// OutPoint is the UTXO spent.
	OutPoint wire.OutPoint

	// Amount is the value of the UTXO.
	Amount btcutil.Amount

	// Address is the address of the UTXO, rebuilt from our keys.
	Address btcutil.Address
}

// OutputDetails describes one output of the transaction.
type OutputDetails struct {
	// Index is the index of the output in the transaction.
	Index int

	// Amount is the value of the output.
	Amount btcutil.Amount

	// Kind is what the output turned out to be.
	Kind OutputKind

	// IsDust is true if the output is too small to be relayed. OP_RETURN
	// outputs are never reported as dust.
	IsDust bool
}

// TxDetails is the summary of a verified PSBT.
type TxDetails struct {
	// Network is the network implied by the PSBT metadata, if any.
	Network fn.Option[keypath.NetworkKind]

	// Inputs are the inputs spending our UTXOs, in transaction order.
	Inputs []InputDetails

	// Outputs are all the outputs of the transaction, in order.
	Outputs []OutputDetails

	// TotalWithSelfSend is the sum of every output.
	TotalWithSelfSend btcutil.Amount

	// TotalSelfSend is the sum of the outputs paying back to us.
	TotalSelfSend btcutil.Amount

	// Fee is the fee paid by the transaction.
	Fee btcutil.Amount

	// VSize is the estimated size of the signed transaction.
	VSize btcunit.VByte

	// FeeRate is the fee rate for the estimated size.
	FeeRate btcunit.SatPerVByte

	// BelowRelayFee is true if FeeRate is lower than the relay fee of the
	// config, so the transaction would not propagate.
	BelowRelayFee bool

	// Descriptors are the account descriptors discovered in the PSBT,
	// without duplicates, in discovery order.
	Descriptors []*descriptor.Descriptor
}

// Total returns the amount leaving the wallet, OP_RETURN outputs included.
func (d *TxDetails) Total() btcutil.Amount {
	return max(d.TotalWithSelfSend-d.TotalSelfSend, 0)
}

// IsSelfSend returns true if every output pays back to the wallet.
func (d *TxDetails) IsSelfSend() bool {
	return d.Total() == 0
}

// addDescriptor records a descriptor unless an equal one was already found.
func (d *TxDetails) addDescriptor(desc *descriptor.Descriptor) {
	encoded := desc.Encode()
	for _, known := range d.Descriptors {
		if known.Encode() == encoded {
			return
		}
	}

	d.Descriptors = append(d.Descriptors, desc)
}
