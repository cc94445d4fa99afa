// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keypath

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// FormatPath formats raw child numbers as m/a'/b/c, using ' for hardened
// elements.
func FormatPath(path []uint32) string {
	var b strings.Builder
	b.WriteString("m")

	for _, elem := range path {
		b.WriteByte('/')

		if elem >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(elem-hdkeychain.HardenedKeyStart), 10,
			))
			b.WriteByte('\'')

			continue
		}

		b.WriteString(strconv.FormatUint(uint64(elem), 10))
	}

	return b.String()
}
