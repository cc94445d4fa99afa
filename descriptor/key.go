// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/psbtcheck/keypath"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrMissingKey is returned for a key with neither an extended nor a
	// plain public key.
	ErrMissingKey = errors.New("descriptor key has no public key")

	// ErrPrivateKey is returned when a descriptor key is an extended
	// private key.
	ErrPrivateKey = errors.New("descriptor key must be public")

	// ErrBranchNotCovered is returned when deriving a branch a
	// single-branch key doesn't describe.
	ErrBranchNotCovered = errors.New("branch not covered by key")
)

// Key is a descriptor key together with its origin.
type Key struct {
	// MasterFingerprint is the fingerprint of the master key, in the
	// byte order used by PSBT key origins.
	MasterFingerprint uint32

	// Origin is the derivation path from the master key to XPub, or to
	// PubKey when XPub is nil.
	Origin []uint32

	// XPub is the extended public key. When set, the key describes a
	// range of children below it.
	XPub *hdkeychain.ExtendedKey

	// Branch restricts an extended key to one branch, encoded as
	// /branch/*. When none, both branches are described with the
	// multipath /<0;1>/*.
	Branch fn.Option[uint32]

	// PubKey is a plain public key, used when XPub is nil.
	PubKey *btcec.PublicKey
}

// validate checks that the key holds exactly the data it needs.
func (k Key) validate() error {
	switch {
	case k.XPub != nil:
		if k.XPub.IsPrivate() {
			return ErrPrivateKey
		}

		return nil

	case k.PubKey != nil:
		return nil

	default:
		return ErrMissingKey
	}
}

// FingerprintHex returns the master fingerprint as eight hex characters.
func (k Key) FingerprintHex() string {
	var fp [4]byte
	binary.LittleEndian.PutUint32(fp[:], k.MasterFingerprint)

	return hex.EncodeToString(fp[:])
}

// encode returns the key expression, [fingerprint/origin]key/children.
// Plain keys are written x-only when xOnly is set.
func (k Key) encode(xOnly bool) string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(k.FingerprintHex())
	b.WriteString(strings.TrimPrefix(keypath.FormatPath(k.Origin), "m"))
	b.WriteByte(']')

	if k.XPub == nil {
		if xOnly {
			b.WriteString(hex.EncodeToString(
				schnorr.SerializePubKey(k.PubKey),
			))
		} else {
			b.WriteString(hex.EncodeToString(
				k.PubKey.SerializeCompressed(),
			))
		}

		return b.String()
	}

	b.WriteString(k.XPub.String())
	k.Branch.WhenSome(func(branch uint32) {
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(branch), 10))
	})
	if k.Branch.IsNone() {
		b.WriteString("/<0;1>")
	}
	b.WriteString("/*")

	return b.String()
}

// Derive returns the public key at branch/index below the key. Plain keys
// always return themselves.
func (k Key) Derive(branch, index uint32) (*btcec.PublicKey, error) {
	if k.XPub == nil {
		if k.PubKey == nil {
			return nil, ErrMissingKey
		}

		return k.PubKey, nil
	}

	if k.Branch.UnwrapOr(branch) != branch {
		return nil, fmt.Errorf("%w: %d", ErrBranchNotCovered, branch)
	}

	branchKey, err := k.XPub.Derive(branch)
	if err != nil {
		return nil, err
	}

	child, err := branchKey.Derive(index)
	if err != nil {
		return nil, err
	}

	return child.ECPubKey()
}
