// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"math"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

// ratePrecision is the number of decimals of a formatted fee rate, enough to
// show 1 sat/kvb.
const ratePrecision = 3

// SatPerVByte is a fee rate. It is kept as an exact ratio of satoshis per
// weight unit and only rounded when a fee is computed or it is printed.
type SatPerVByte struct {
	satsPerWU *big.Rat
}

// NewSatPerVByte returns a fee rate of rate sat/vb.
func NewSatPerVByte(rate btcutil.Amount) SatPerVByte {
	return CalcSatPerVByte(rate, NewVByte(1))
}

// CalcSatPerVByte returns the fee rate paid by fee for a transaction of the
// given size. An empty transaction pays a zero rate.
func CalcSatPerVByte(fee btcutil.Amount, size VByte) SatPerVByte {
	if size.wu == 0 {
		return SatPerVByte{satsPerWU: new(big.Rat)}
	}

	return SatPerVByte{satsPerWU: big.NewRat(
		int64(fee), clampInt64(size.wu),
	)}
}

// FeeForVByte returns the fee paid at this rate by a transaction of the given
// size, rounded down.
func (s SatPerVByte) FeeForVByte(size VByte) btcutil.Amount {
	fee := new(big.Rat).Mul(s.rat(), new(big.Rat).SetInt64(
		clampInt64(size.wu),
	))

	return btcutil.Amount(new(big.Int).Quo(fee.Num(), fee.Denom()).Int64())
}

// LessThan returns true if s is lower than other.
func (s SatPerVByte) LessThan(other SatPerVByte) bool {
	return s.rat().Cmp(other.rat()) < 0
}

// String returns the rate in sat/vb.
func (s SatPerVByte) String() string {
	perVByte := new(big.Rat).Mul(
		s.rat(), big.NewRat(blockchain.WitnessScaleFactor, 1),
	)

	return perVByte.FloatString(ratePrecision) + " sat/vb"
}

// rat returns the rate in sat/wu, zero for the zero value.
func (s SatPerVByte) rat() *big.Rat {
	if s.satsPerWU == nil {
		return new(big.Rat)
	}

	return s.satsPerWU
}

// clampInt64 converts a size to int64. Sizes are bound by consensus, anything
// larger is capped.
func clampInt64(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(u)
}
