// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

var (
	// ErrInvalidConfig is returned when the verifier config is invalid.
	ErrInvalidConfig = errors.New("invalid verifier config")
)

// Config holds the wallet side parameters of a Verifier.
type Config struct {
	// ChainParams is the network the wallet is on.
	ChainParams *chaincfg.Params

	// Fingerprint is the master key fingerprint of the wallet, in the
	// byte order of PSBT key origins. It can be left zero when MasterKey
	// is set.
	Fingerprint uint32

	// MasterKey is the optional private master key of the wallet. When
	// set, every key origin carrying our fingerprint must derive from it
	// and the account xpubs of our paths don't need to be in the PSBT.
	MasterKey *hdkeychain.ExtendedKey

	// RejectSuspicious makes Verify fail on Suspicious outputs instead of
	// only logging them.
	RejectSuspicious bool

	// DustRelayFee is the relay fee per kB. Outputs are checked for dust
	// against it and a lower fee rate is flagged in the details.
	DustRelayFee btcutil.Amount
}

// DefaultConfig returns a config for a watch-only wallet with the given
// fingerprint on the given network.
func DefaultConfig(params *chaincfg.Params, fingerprint uint32) *Config {
	return &Config{
		ChainParams:  params,
		Fingerprint:  fingerprint,
		DustRelayFee: txrules.DefaultRelayFeePerKb,
	}
}

// Validate checks the config, filling in the fingerprint from the master key
// when it is zero.
//
// The following checks are performed:
//   - The chain params must be set.
//   - The dust relay fee must not be negative.
//   - The master key, if any, must be a private key at depth 0.
//   - The fingerprint must match the master key, if any, and can only be
//     zero without one.
func (c *Config) Validate() error {
	if c.ChainParams == nil {
		return fmt.Errorf("%w: chain params are required",
			ErrInvalidConfig)
	}

	if c.DustRelayFee < 0 {
		return fmt.Errorf("%w: negative dust relay fee",
			ErrInvalidConfig)
	}

	if c.MasterKey == nil {
		if c.Fingerprint == 0 {
			return fmt.Errorf("%w: fingerprint or master key is "+
				"required", ErrInvalidConfig)
		}

		return nil
	}

	if !c.MasterKey.IsPrivate() {
		return fmt.Errorf("%w: master key must be private",
			ErrInvalidConfig)
	}

	if c.MasterKey.Depth() != 0 {
		return fmt.Errorf("%w: master key has depth %d",
			ErrInvalidConfig, c.MasterKey.Depth())
	}

	fingerprint, err := Fingerprint(c.MasterKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	switch c.Fingerprint {
	case 0:
		c.Fingerprint = fingerprint

	case fingerprint:

	default:
		return fmt.Errorf("%w: fingerprint %08x doesn't match the "+
			"master key", ErrInvalidConfig, c.Fingerprint)
	}

	return nil
}
