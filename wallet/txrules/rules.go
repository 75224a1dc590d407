// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"errors"
	"fmt"
	"math"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/txsizes"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// DefaultFeeRate is the ledger's default minimum fee rate in shannons per
// 1000 serialized bytes.
const DefaultFeeRate wire.Capacity = 1000

// Transaction rule violations
var (
	ErrCapacityTooLow   = errors.New("output capacity below occupied capacity")
	ErrCapacityOverflow = errors.New("capacity overflows u64")
)

// MinCapacity returns the capacity a cell must hold to store n bytes beyond
// its capacity field. The result is
//
//	(txsizes.CapacityFieldSize + n) * wire.ShannonsPerCKByte
//
// and saturates at the largest capacity instead of wrapping. Negative sizes
// are treated as zero.
func MinCapacity(n int) wire.Capacity {
	if n < 0 {
		n = 0
	}

	bytes := uint64(txsizes.CapacityFieldSize) + uint64(n)
	if bytes > math.MaxUint64/wire.ShannonsPerCKByte {
		return wire.Capacity(math.MaxUint64)
	}

	return wire.Capacity(bytes * wire.ShannonsPerCKByte)
}

// MinCellCapacity returns the minimum capacity of a cell with the given
// scripts and data length.
func MinCellCapacity(lock wire.Script, typ *wire.Script,
	dataLen int) wire.Capacity {

	return MinCapacity(txsizes.CellSize(lock, typ, dataLen))
}

// MinOutputCapacity returns the minimum capacity of c.
func MinOutputCapacity(c wire.Cell) wire.Capacity {
	return MinCellCapacity(c.Lock, c.Type, len(c.Data))
}

// CheckOutput fails with ErrCapacityTooLow when a cell cannot pay for the
// bytes it occupies.
func CheckOutput(c wire.Cell) error {
	min := MinOutputCapacity(c)
	if c.Capacity < min {
		desc := fmt.Sprintf("output holds %v, needs %v", c.Capacity, min)
		return protoerr.New(protoerr.ErrValidation, desc,
			ErrCapacityTooLow)
	}

	return nil
}

// FeeForSerializeSize calculates the required fee for a transaction of some
// arbitrary size given a fee rate in shannons per 1000 bytes.
func FeeForSerializeSize(feeRate wire.Capacity,
	txSerializeSize int) wire.Capacity {

	fee := feeRate * wire.Capacity(txSerializeSize) / 1000

	if fee == 0 && feeRate > 0 {
		fee = feeRate
	}

	return fee
}
