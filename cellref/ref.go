// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cellref turns the outputs of committed transactions into typed
// handles: an InputRef that may be consumed once, and a DepRef that may be
// referenced any number of times. A Tracker remembers which references a
// run has already consumed.
package cellref

import "github.com/WilfredTA/ReuseCoin/wire"

// CodeID names code the way a script references it: by the hash of a cell's
// data or type script, together with the matching hash type.
type CodeID struct {
	Hash     wire.Hash
	HashType wire.HashType
}

// Matches reports whether a script with the given code hash and hash type
// resolves to this code. The data and data1 hash types both resolve through
// the data hash.
func (c CodeID) Matches(s wire.Script) bool {
	if s.CodeHash != c.Hash {
		return false
	}

	switch c.HashType {
	case wire.HashTypeType:
		return s.HashType == wire.HashTypeType
	default:
		return s.HashType == wire.HashTypeData ||
			s.HashType == wire.HashTypeData1
	}
}

// Ref is a produced cell: its out point and its content.
type Ref struct {
	OutPoint wire.OutPoint
	Cell     wire.Cell
}

// NewRef returns a reference to a cell known to live at op.
func NewRef(op wire.OutPoint, cell wire.Cell) Ref {
	return Ref{OutPoint: op, Cell: cell.Copy()}
}

// AsInput returns a handle that spends the cell.
func (r Ref) AsInput() InputRef {
	return InputRef{OutPoint: r.OutPoint, Cell: r.Cell.Copy()}
}

// AsDep returns a handle that references the cell as a dependency. A code
// dep provides the cell's data hash and, when the cell has a type script,
// its type hash. Dep groups provide whatever the caller lists.
func (r Ref) AsDep(depType wire.DepType, provides ...CodeID) (DepRef, error) {
	dep, err := wire.NewCellDep(r.OutPoint, depType)
	if err != nil {
		return DepRef{}, err
	}

	if depType == wire.DepTypeCode {
		provides = append(provides, CodeID{
			Hash:     r.Cell.DataHash(),
			HashType: wire.HashTypeData,
		})
		if r.Cell.Type != nil {
			provides = append(provides, CodeID{
				Hash:     r.Cell.Type.Hash(),
				HashType: wire.HashTypeType,
			})
		}
	}

	return DepRef{Dep: dep, Provides: provides}, nil
}

// InputRef is a spendable reference. The Tracker ensures a run consumes it
// at most once.
type InputRef struct {
	OutPoint wire.OutPoint
	Cell     wire.Cell
}

// DepRef is a read-only dependency reference and the code it makes
// available to the transaction.
type DepRef struct {
	Dep      wire.CellDep
	Provides []CodeID
}

// NewDepGroupRef returns a dep group reference providing the listed code,
// typically a system script resolved through the genesis dep group.
func NewDepGroupRef(op wire.OutPoint, provides ...CodeID) DepRef {
	return DepRef{
		Dep: wire.CellDep{
			OutPoint: op,
			DepType:  wire.DepTypeDepGroup,
		},
		Provides: append([]CodeID(nil), provides...),
	}
}

// Resolves reports whether the dep provides the code s references.
func (d DepRef) Resolves(s wire.Script) bool {
	for _, c := range d.Provides {
		if c.Matches(s) {
			return true
		}
	}
	return false
}
