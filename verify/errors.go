// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"errors"
	"fmt"

	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNetworkInconsistency is returned when the key metadata of a PSBT
	// implies more than one Bitcoin network.
	ErrNetworkInconsistency = errors.New("the Bitcoin network used in " +
		"the PSBT is not consistent")

	// ErrNetworkMismatch is returned when the network implied by the PSBT
	// differs from the configured one.
	ErrNetworkMismatch = errors.New("the PSBT is for a different network")

	// ErrInvalidDerivationPath is returned when a derivation path starts
	// like a standard account path but doesn't conform to it.
	ErrInvalidDerivationPath = errors.New("derivation path does not " +
		"conform to standard")

	// ErrMultipleKeysNotExpected is returned when a single-sig script
	// type declares more than one key.
	ErrMultipleKeysNotExpected = errors.New("multiple keys were not " +
		"expected")

	// ErrExpectedKeys is returned when a script needs key origins but
	// none were declared.
	ErrExpectedKeys = errors.New("no keys found")

	// ErrFraudulentOutput is returned when the declared keys of an output
	// don't produce its locking script.
	ErrFraudulentOutput = errors.New("output is fraudulent")

	// ErrFraudulentInput is returned when an input's previous output
	// doesn't match its declared keys or outpoint.
	ErrFraudulentInput = errors.New("input is fraudulent")

	// ErrFraudulentKey is returned when a key carrying our fingerprint is
	// not derived from our master key.
	ErrFraudulentKey = errors.New("key is not derived from the master " +
		"key")

	// ErrCantSign is returned when no input carries our fingerprint.
	ErrCantSign = errors.New("no input matches the wallet fingerprint")

	// ErrMissingWitnessScript is returned for a P2WSH script without a
	// witness script.
	ErrMissingWitnessScript = errors.New("witness script is missing")

	// ErrInvalidWitnessScript is returned when a witness script can't be
	// parsed.
	ErrInvalidWitnessScript = errors.New("witness script is invalid")

	// ErrMissingRedeemScript is returned for a P2SH input without a
	// redeem script.
	ErrMissingRedeemScript = errors.New("redeem script is missing")

	// ErrMissingGlobalXPub is returned when no global xpub covers a key
	// origin.
	ErrMissingGlobalXPub = errors.New("missing global extended public " +
		"key")

	// ErrInvalidXPub is returned when a global xpub can't be decoded.
	ErrInvalidXPub = errors.New("invalid global extended public key")

	// ErrInvalidPubKey is returned when a declared public key can't be
	// parsed.
	ErrInvalidPubKey = errors.New("invalid public key")

	// ErrInvalidTaprootKey is returned when a taproot key can't be
	// parsed or doesn't match the declared internal key.
	ErrInvalidTaprootKey = errors.New("invalid taproot key")

	// ErrUnimplemented is returned for script patterns that can't be
	// validated yet.
	ErrUnimplemented = errors.New("not yet implemented")

	// ErrUnknownOutputScript is returned for output scripts of an unknown
	// type.
	ErrUnknownOutputScript = errors.New("unknown output script type")

	// ErrDeprecatedOutputType is returned for P2PK outputs.
	ErrDeprecatedOutputType = errors.New("deprecated output type")

	// ErrMissingInputUtxo is returned when an input carrying our keys has
	// no funding UTXO.
	ErrMissingInputUtxo = errors.New("funding utxo is missing")

	// ErrMissingInput is returned when the input records of the PSBT
	// don't line up with the inputs of the unsigned transaction.
	ErrMissingInput = errors.New("input is missing")

	// ErrMissingOutput is returned when the PSBT has more output records
	// than the unsigned transaction has outputs.
	ErrMissingOutput = errors.New("output is missing")

	// ErrNegativeFee is returned when the outputs spend more than the
	// inputs fund.
	ErrNegativeFee = errors.New("outputs exceed inputs")

	// ErrSuspiciousOutput is returned for suspicious outputs when the
	// verifier is configured to reject them.
	ErrSuspiciousOutput = errors.New("output is suspicious")
)

// OutputError is an error tied to one output of the PSBT.
type OutputError struct {
	// Index is the index of the output.
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OutputError) Error() string {
	return fmt.Sprintf("output %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *OutputError) Unwrap() error {
	return e.Err
}

// InputError is an error tied to one input of the PSBT.
type InputError struct {
	// Index is the index of the input.
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("input %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *InputError) Unwrap() error {
	return e.Err
}

// PathError is an ErrInvalidDerivationPath carrying the path and the reason
// it was rejected.
type PathError struct {
	// Path is the offending derivation path.
	Path []uint32

	// Err is the path parsing error.
	Err error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrInvalidDerivationPath,
		keypath.FormatPath(e.Path), e.Err)
}

// Unwrap returns both ErrInvalidDerivationPath and the parsing error.
func (e *PathError) Unwrap() []error {
	return []error{ErrInvalidDerivationPath, e.Err}
}

// MissingXPubError is an ErrMissingGlobalXPub carrying the key origin path
// no global xpub was found for.
type MissingXPubError struct {
	// Path is the key origin path.
	Path []uint32
}

// Error implements the error interface.
func (e *MissingXPubError) Error() string {
	return fmt.Sprintf("%v for derivation path %s", ErrMissingGlobalXPub,
		keypath.FormatPath(e.Path))
}

// Unwrap returns ErrMissingGlobalXPub.
func (e *MissingXPubError) Unwrap() error {
	return ErrMissingGlobalXPub
}

// outputErr wraps err with the output index.
func outputErr(index int, err error) error {
	return &OutputError{Index: index, Err: err}
}

// inputErr wraps err with the input index.
func inputErr(index int, err error) error {
	return &InputError{Index: index, Err: err}
}

// parsePath parses a key origin path, wrapping parse failures in a
// PathError.
func parsePath(path []uint32) (fn.Option[keypath.Path], error) {
	parsed, err := keypath.Parse(path)
	if err != nil {
		return fn.None[keypath.Path](), &PathError{
			Path: path,
			Err:  err,
		}
	}

	return parsed, nil
}
