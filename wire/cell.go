// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "bytes"

// CellOutput is the header of a cell: its capacity and the scripts guarding
// it.
type CellOutput struct {
	Capacity Capacity
	Lock     Script
	Type     *Script
}

// Copy returns a deep copy of the output.
func (o CellOutput) Copy() CellOutput {
	return CellOutput{
		Capacity: o.Capacity,
		Lock:     o.Lock.Copy(),
		Type:     CopyScript(o.Type),
	}
}

// Cell is an output together with its data.
type Cell struct {
	CellOutput
	Data []byte
}

// NewCell returns a cell. The scripts and data are copied.
func NewCell(capacity Capacity, lock Script, typ *Script, data []byte) Cell {
	return Cell{
		CellOutput: CellOutput{
			Capacity: capacity,
			Lock:     lock.Copy(),
			Type:     CopyScript(typ),
		},
		Data: bytes.Clone(data),
	}
}

// Copy returns a deep copy of the cell.
func (c Cell) Copy() Cell {
	return Cell{CellOutput: c.CellOutput.Copy(), Data: bytes.Clone(c.Data)}
}

// DataHash returns the ckbhash of the cell data. Scripts with a data hash
// type reference code cells by this value.
func (c Cell) DataHash() Hash {
	return CKBHash(c.Data)
}

// IsPlain reports whether the cell holds only native capacity: no type
// script and no data.
func (c Cell) IsPlain() bool {
	return c.Type == nil && len(c.Data) == 0
}
