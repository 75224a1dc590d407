// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"math/bits"
	"strconv"
	"strings"
)

// ShannonsPerCKByte is the number of shannons in one CKByte. A cell must hold
// one CKByte of capacity for every byte it occupies.
const ShannonsPerCKByte = 100_000_000

// Capacity is an amount of native ledger currency measured in shannons.
type Capacity uint64

// CKBytes returns the capacity of n whole CKBytes.
func CKBytes(n uint64) Capacity {
	return Capacity(n * ShannonsPerCKByte)
}

// ToCKB returns the capacity as a floating point number of CKBytes. It is
// only meant for display.
func (c Capacity) ToCKB() float64 {
	return float64(c) / ShannonsPerCKByte
}

// String formats the capacity in CKBytes without losing precision, e.g.
// "61 CKB" or "0.00001 CKB".
func (c Capacity) String() string {
	whole := uint64(c) / ShannonsPerCKByte
	frac := uint64(c) % ShannonsPerCKByte

	s := strconv.FormatUint(whole, 10)
	if frac != 0 {
		f := strconv.FormatUint(frac, 10)
		f = strings.Repeat("0", 8-len(f)) + f
		s += "." + strings.TrimRight(f, "0")
	}

	return s + " CKB"
}

// AddCapacity returns a+b and false if the sum overflows.
func AddCapacity(a, b Capacity) (Capacity, bool) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	return Capacity(sum), carry == 0
}

// SumCapacity adds all values, reporting false on overflow.
func SumCapacity(values ...Capacity) (Capacity, bool) {
	var total Capacity
	for _, v := range values {
		var ok bool
		total, ok = AddCapacity(total, v)
		if !ok {
			return 0, false
		}
	}

	return total, true
}
