// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/psbtcheck/descriptor"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// OutputKind is what an output turned out to be after validation. It is one
// of SingleSig, Multisig, OpReturn, Suspicious or External.
type OutputKind interface {
	// IsSelfSend returns true if the output pays back to the wallet.
	IsSelfSend() bool

	outputKind()
}

// SingleSig is an output paying to a single key we declared.
type SingleSig struct {
	// Path is the account path of the key, if it is a standard address
	// path for the script type and network. The address is proven by the
	// script match even when this is None.
	Path fn.Option[keypath.Path]

	// Address is the address of the output.
	Address btcutil.Address
}

// IsSelfSend returns true.
func (SingleSig) IsSelfSend() bool { return true }

func (SingleSig) outputKind() {}

// Multisig is a P2WSH multi-signature output whose keys all follow the same
// BIP-0048 path.
type Multisig struct {
	// Threshold is the number of signatures required.
	Threshold uint8

	// Address is the address of the output.
	Address btcutil.Address

	// Path is the shared BIP-0048 path of the keys.
	Path keypath.Path

	// Descriptor is the account descriptor rebuilt from the global xpubs.
	Descriptor *descriptor.Descriptor
}

// IsSelfSend returns true.
func (Multisig) IsSelfSend() bool { return true }

func (Multisig) outputKind() {}

// OpReturn is a data carrier output.
type OpReturn struct {
	// Parts are the decoded pushes of the script.
	Parts []OpReturnPart
}

// IsSelfSend returns false.
func (OpReturn) IsSelfSend() bool { return false }

func (OpReturn) outputKind() {}

// Suspicious is an output whose script matches the declared keys but whose
// derivation metadata doesn't prove a known wallet scheme.
type Suspicious struct {
	// Address is the address of the output.
	Address btcutil.Address
}

// IsSelfSend returns true, the keys are ours even if the path isn't.
func (Suspicious) IsSelfSend() bool { return true }

func (Suspicious) outputKind() {}

// External is an output that carries none of our keys.
type External struct {
	// Address is the address of the output.
	Address btcutil.Address
}

// IsSelfSend returns false.
func (External) IsSelfSend() bool { return false }

func (External) outputKind() {}

// OutputAddress returns the address of the output kind, or None for
// OP_RETURN outputs.
func OutputAddress(kind OutputKind) fn.Option[btcutil.Address] {
	switch k := kind.(type) {
	case SingleSig:
		return fn.Some(k.Address)

	case Multisig:
		return fn.Some(k.Address)

	case Suspicious:
		return fn.Some(k.Address)

	case External:
		return fn.Some(k.Address)

	default:
		return fn.None[btcutil.Address]()
	}
}

// OpReturnPart is one decoded piece of an OP_RETURN script. It is one of
// Message, Binary or Unknown.
type OpReturnPart interface {
	opReturnPart()
}

// Message is a data push that is valid UTF-8.
type Message string

func (Message) opReturnPart() {}

// Binary is a data push that is not valid UTF-8.
type Binary []byte

func (Binary) opReturnPart() {}

// Unknown holds the rest of the script from the first instruction that is
// not a data push.
type Unknown []byte

func (Unknown) opReturnPart() {}
