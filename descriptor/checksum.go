// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"errors"
	"strings"
)

const (
	// inputCharset is the character set a descriptor may be written in,
	// ordered so that the most common characters land in the low 32
	// positions.
	inputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
		"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
		"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

	// checksumCharset is the bech32 alphabet used for the checksum.
	checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

	// checksumLength is the number of characters in a checksum.
	checksumLength = 8
)

var (
	// ErrInvalidCharacter is returned when a descriptor contains a
	// character outside of the descriptor character set.
	ErrInvalidCharacter = errors.New("invalid descriptor character")
)

// polyMod feeds one 5-bit value into the checksum generator.
func polyMod(c uint64, val int) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ uint64(val)

	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}

	return c
}

// Checksum computes the eight character checksum of a descriptor body, the
// part before '#'.
func Checksum(desc string) (string, error) {
	var (
		c        uint64 = 1
		cls      int
		clsCount int
	)
	for _, ch := range desc {
		pos := strings.IndexRune(inputCharset, ch)
		if pos == -1 {
			return "", ErrInvalidCharacter
		}

		// Every character contributes its position within a group of
		// 32, and every three characters contribute their groups.
		c = polyMod(c, pos&31)
		cls = cls*3 + (pos >> 5)

		clsCount++
		if clsCount == 3 {
			c = polyMod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polyMod(c, cls)
	}

	for range checksumLength {
		c = polyMod(c, 0)
	}
	c ^= 1

	var sum [checksumLength]byte
	for j := range sum {
		sum[j] = checksumCharset[(c>>(5*(7-j)))&31]
	}

	return string(sum[:]), nil
}

// AddChecksum returns desc with its checksum appended after a '#'.
func AddChecksum(desc string) (string, error) {
	sum, err := Checksum(desc)
	if err != nil {
		return "", err
	}

	return desc + "#" + sum, nil
}
