// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides transaction size and fee rate units.
package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
)

// WeightUnit is a transaction size in weight units, base size * 3 + total
// size.
type WeightUnit struct {
	wu uint64
}

// NewWeightUnit returns a size of val weight units.
func NewWeightUnit(val uint64) WeightUnit {
	return WeightUnit{wu: val}
}

// ToVB converts the size to virtual bytes.
func (w WeightUnit) ToVB() VByte {
	return VByte{wu: w.wu}
}

// Uint64 returns the size in weight units.
func (w WeightUnit) Uint64() uint64 {
	return w.wu
}

// String returns the size with its unit.
func (w WeightUnit) String() string {
	return fmt.Sprintf("%d wu", w.wu)
}

// VByte is a transaction size in virtual bytes. It keeps the weight so
// converting back and forth is lossless.
type VByte struct {
	wu uint64
}

// NewVByte returns a size of val virtual bytes.
func NewVByte(val uint64) VByte {
	return VByte{wu: val * blockchain.WitnessScaleFactor}
}

// ToWU converts the size to weight units.
func (v VByte) ToWU() WeightUnit {
	return WeightUnit{wu: v.wu}
}

// Uint64 returns the size in virtual bytes, rounded up.
func (v VByte) Uint64() uint64 {
	return (v.wu + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor
}

// String returns the size with its unit.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", v.Uint64())
}
