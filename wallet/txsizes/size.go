// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsizes provides the serialized sizes the ledger charges for:
// the bytes a cell occupies and the bytes a transaction adds to a block.
package txsizes

import "github.com/WilfredTA/ReuseCoin/wire"

// Cell and witness sizes.
const (
	// CapacityFieldSize is the size of the capacity field every cell
	// occupies.
	CapacityFieldSize = 8

	// ScriptOverhead is the occupied size of a script without its args.
	// It is calculated as:
	//
	//   - 32 bytes code hash
	//   - 1 byte hash type
	ScriptOverhead = wire.HashSize + 1

	// Secp256k1LockSize is the occupied size of a default secp256k1
	// blake160 lock. It is calculated as:
	//
	//   - 33 bytes script overhead
	//   - 20 bytes pubkey hash args
	Secp256k1LockSize = ScriptOverhead + wire.Blake160Size

	// TokenTypeSize is the occupied size of a token type script. It is
	// calculated as:
	//
	//   - 33 bytes script overhead
	//   - 32 bytes governance lock hash args
	TokenTypeSize = ScriptOverhead + wire.HashSize

	// TokenDataSize is the size of a token amount, a u128.
	TokenDataSize = 16

	// Secp256k1SignatureSize is the size of a recoverable signature:
	//
	//   - 32 bytes r
	//   - 32 bytes s
	//   - 1 byte recovery id
	Secp256k1SignatureSize = 32 + 32 + 1

	// Secp256k1WitnessSize is the size of a WitnessArgs carrying one
	// signature. It is calculated as:
	//
	//   - 4 bytes table size
	//   - 3 * 4 bytes field offsets
	//   - 4 bytes lock length
	//   - 65 bytes signature
	Secp256k1WitnessSize = 4 + 3*4 + 4 + Secp256k1SignatureSize

	// BlockTxOverhead is the offset a transaction adds to the block that
	// includes it. The ledger charges fees on the serialized size plus
	// this value.
	BlockTxOverhead = 4
)

// ScriptSize returns the occupied size of a script.
func ScriptSize(s wire.Script) int {
	return ScriptOverhead + len(s.Args)
}

// OptScriptSize is ScriptSize for an optional script.
func OptScriptSize(s *wire.Script) int {
	if s == nil {
		return 0
	}
	return ScriptSize(*s)
}

// CellSize returns the number of bytes a cell occupies beyond its capacity
// field: the lock, the optional type and the data.
func CellSize(lock wire.Script, typ *wire.Script, dataLen int) int {
	return ScriptSize(lock) + OptScriptSize(typ) + dataLen
}

// OccupiedSize returns the full occupied size of a cell, capacity field
// included.
func OccupiedSize(c wire.Cell) int {
	return CapacityFieldSize + CellSize(c.Lock, c.Type, len(c.Data))
}

// EstimateSerializeSize returns the fee-relevant size of tx once it is
// signed: each input gets a witness slot and the first lockGroups slots
// carry a secp256k1 WitnessArgs. Existing witnesses are ignored.
func EstimateSerializeSize(tx *wire.Transaction, lockGroups int) int {
	sized := *tx
	sized.Witnesses = make([][]byte, len(tx.Inputs))

	placeholder := make([]byte, Secp256k1WitnessSize)
	for i := 0; i < lockGroups && i < len(sized.Witnesses); i++ {
		sized.Witnesses[i] = placeholder
	}

	return sized.SerializeSize() + BlockTxOverhead
}
