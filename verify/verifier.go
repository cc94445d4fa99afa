// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/btcsuite/psbtcheck/pkg/btcunit"
	"github.com/davecgh/go-spew/spew"
)

// Verifier checks PSBTs on behalf of one wallet and summarizes what they do.
// It only holds its config and is safe for concurrent use.
type Verifier struct {
	cfg     Config
	network keypath.NetworkKind
}

// NewVerifier returns a verifier for the wallet described by cfg. The config
// is validated and copied.
func NewVerifier(cfg *Config) (*Verifier, error) {
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &Verifier{
		cfg:     c,
		network: keypath.NetworkKindFromParams(c.ChainParams),
	}, nil
}

// Verify validates a PSBT against the wallet and returns its summary.
//
// The following checks are performed, in order:
//   - The packet must be sane and every PSBT record must line up with the
//     unsigned transaction.
//   - The key metadata must imply at most one network, the wallet's.
//   - With a master key, every key and global xpub carrying our fingerprint
//     must derive from it.
//   - At least one input must carry our fingerprint.
//   - The UTXO of each of our inputs must pay to its declared keys.
//   - Each output carrying our keys must pay to them.
//
// Suspicious outputs are logged, or rejected if the config says so.
func (v *Verifier) Verify(packet *psbt.Packet) (*TxDetails, error) {
	if err := packet.SanityCheck(); err != nil {
		return nil, err
	}

	tx := packet.UnsignedTx
	if len(packet.Inputs) != len(tx.TxIn) {
		index := min(len(packet.Inputs), len(tx.TxIn))
		return nil, inputErr(index, ErrMissingInput)
	}

	network, err := ValidateNetwork(packet)
	if err != nil {
		return nil, err
	}
	if network.UnwrapOr(v.network) != v.network {
		return nil, fmt.Errorf("%w: PSBT is for %v, wallet is on %v",
			ErrNetworkMismatch, network.UnsafeFromSome(), v.network)
	}

	if err := v.checkGlobalXPubs(packet.XPubs); err != nil {
		return nil, err
	}

	xpubs, err := v.accountXPubs(packet)
	if err != nil {
		return nil, err
	}

	details := &TxDetails{Network: network}

	var counts inputCounts
	canSign := false
	for i := range packet.Inputs {
		in, txIn := &packet.Inputs[i], tx.TxIn[i]

		if err := checkNonWitnessUtxo(in, txIn); err != nil {
			return nil, inputErr(i, err)
		}

		utxo := fundingUtxo(in, txIn)
		utxo.WhenSome(func(out *wire.TxOut) {
			counts.add(in, out)
		})

		ours, err := v.ownsKeys(
			in.Bip32Derivation, in.TaprootBip32Derivation,
		)
		if err != nil {
			return nil, inputErr(i, err)
		}
		if !ours {
			continue
		}
		canSign = true

		out, err := utxo.UnwrapOrErr(ErrMissingInputUtxo)
		if err != nil {
			return nil, inputErr(i, err)
		}

		spent, err := v.validateInput(in, out, xpubs)
		if err != nil {
			return nil, inputErr(i, err)
		}

		details.Inputs = append(details.Inputs, InputDetails{
			Index:    i,
			OutPoint: txIn.PreviousOutPoint,
			Amount:   btcutil.Amount(out.Value),
			Address:  spent.address,
		})
		spent.descriptor.WhenSome(details.addDescriptor)
	}

	if !canSign {
		return nil, ErrCantSign
	}

	for i := range packet.Outputs {
		if i >= len(tx.TxOut) {
			return nil, outputErr(i, ErrMissingOutput)
		}

		output, err := v.verifyOutput(
			&packet.Outputs[i], tx.TxOut[i], xpubs, i, details,
		)
		if err != nil {
			return nil, err
		}

		details.Outputs = append(details.Outputs, *output)
		details.TotalWithSelfSend += output.Amount
		if output.Kind.IsSelfSend() {
			details.TotalSelfSend += output.Amount
		}
	}

	if err := v.addFee(packet, &counts, details); err != nil {
		return nil, err
	}

	log.Debugf("Verified PSBT %v: total=%v, self_send=%v, fee=%v, "+
		"fee_rate=%v", tx.TxHash(), details.Total(),
		details.TotalSelfSend, details.Fee, details.FeeRate)
	log.Tracef("PSBT %v details: %v", tx.TxHash(),
		newLogClosure(func() string {
			return spew.Sdump(details)
		}))

	return details, nil
}

// verifyOutput classifies one output, validating it if it carries our keys.
func (v *Verifier) verifyOutput(out *psbt.POutput, txOut *wire.TxOut,
	xpubs []psbt.XPub, index int,
	details *TxDetails) (*OutputDetails, error) {

	ours, err := v.ownsKeys(out.Bip32Derivation, out.TaprootBip32Derivation)
	if err != nil {
		return nil, outputErr(index, err)
	}

	class := ClassifyScript(txOut.PkScript)

	var kind OutputKind
	if ours {
		kind, err = ValidateOutput(
			class, out, txOut, xpubs, v.cfg.ChainParams, index,
		)
	} else {
		kind, err = externalOutput(
			class, txOut, v.cfg.ChainParams, index,
		)
	}
	if err != nil {
		return nil, err
	}

	switch k := kind.(type) {
	case Suspicious:
		if v.cfg.RejectSuspicious {
			return nil, outputErr(index, ErrSuspiciousOutput)
		}

		log.Warnf("Output %d to %v carries our keys on a non-standard "+
			"path", index, k.Address)
		log.Tracef("Suspicious output %d: %v", index,
			newLogClosure(func() string {
				return spew.Sdump(out)
			}))

	case Multisig:
		details.addDescriptor(k.Descriptor)

	case SingleSig:
		if k.Path.IsNone() {
			break
		}

		desc, err := SingleSigDescriptor(
			v.cfg.Fingerprint, k.Path.UnsafeFromSome(), xpubs,
		)
		if err != nil {
			return nil, outputErr(index, err)
		}
		desc.WhenSome(details.addDescriptor)
	}

	_, isOpReturn := kind.(OpReturn)

	return &OutputDetails{
		Index:  index,
		Amount: btcutil.Amount(txOut.Value),
		Kind:   kind,
		IsDust: !isOpReturn &&
			txrules.IsDustOutput(txOut, v.cfg.DustRelayFee),
	}, nil
}

// externalOutput classifies an output carrying none of our keys.
func externalOutput(class ScriptClass, txOut *wire.TxOut,
	params *chaincfg.Params, index int) (OutputKind, error) {

	switch class {
	case ClassOpReturn:
		return ParseOpReturn(txOut), nil

	case ClassP2PKH, ClassP2SH, ClassP2WPKH, ClassP2WSH, ClassP2TR:
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(
			txOut.PkScript, params,
		)
		if err != nil || len(addrs) != 1 {
			return nil, outputErr(index, ErrUnknownOutputScript)
		}

		return External{Address: addrs[0]}, nil

	default:
		return nil, outputErr(index, ErrUnknownOutputScript)
	}
}

// addFee fills in the fee, the estimated size and the fee rate.
func (v *Verifier) addFee(packet *psbt.Packet, counts *inputCounts,
	details *TxDetails) error {

	inputSum, err := psbt.SumUtxoInputValues(packet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingInputUtxo, err)
	}

	var outputSum int64
	for _, txOut := range packet.UnsignedTx.TxOut {
		outputSum += txOut.Value
	}

	fee := btcutil.Amount(inputSum - outputSum)
	if fee < 0 {
		return fmt.Errorf("%w: inputs %v, outputs %v", ErrNegativeFee,
			btcutil.Amount(inputSum), btcutil.Amount(outputSum))
	}

	details.Fee = fee
	details.VSize = counts.estimateSize(packet.UnsignedTx.TxOut)
	details.FeeRate = btcunit.CalcSatPerVByte(fee, details.VSize)

	relayRate := btcunit.CalcSatPerVByte(
		v.cfg.DustRelayFee, btcunit.NewVByte(bytesPerKb),
	)
	if details.FeeRate.LessThan(relayRate) {
		details.BelowRelayFee = true
		log.Warnf("PSBT %v pays %v, relay needs %v at %v",
			packet.UnsignedTx.TxHash(), fee,
			relayRate.FeeForVByte(details.VSize), relayRate)
	}

	return nil
}
