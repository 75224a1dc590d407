// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownDepType is returned when a cell dep is built with a dep type the
// ledger does not define.
var ErrUnknownDepType = errors.New("unknown cell dep type")

// OutPoint identifies a cell by the transaction that created it and its
// output position.
type OutPoint struct {
	TxHash Hash
	Index  uint32
}

// NewOutPoint returns an out point for output index of tx.
func NewOutPoint(txHash Hash, index uint32) OutPoint {
	return OutPoint{TxHash: txHash, Index: index}
}

// String returns the "hash:index" form.
func (o OutPoint) String() string {
	return o.TxHash.String() + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// ParseOutPoint is the inverse of OutPoint.String.
func ParseOutPoint(s string) (OutPoint, error) {
	hashStr, idxStr, ok := strings.Cut(s, ":")
	if !ok {
		return OutPoint{}, fmt.Errorf("invalid out point %q: missing "+
			"index", s)
	}

	hash, err := NewHashFromStr(hashStr)
	if err != nil {
		return OutPoint{}, err
	}

	idx, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return OutPoint{}, fmt.Errorf("invalid out point %q: %w", s, err)
	}

	return NewOutPoint(hash, uint32(idx)), nil
}

// DepType says how a dependency cell is loaded.
type DepType byte

const (
	// DepTypeCode loads the cell's data as code.
	DepTypeCode DepType = 0

	// DepTypeDepGroup expands the cell's data, a list of out points, into
	// further code deps.
	DepTypeDepGroup DepType = 1
)

// String returns the name used by the ledger's JSON interface.
func (d DepType) String() string {
	switch d {
	case DepTypeCode:
		return "code"
	case DepTypeDepGroup:
		return "dep_group"
	default:
		return fmt.Sprintf("unknown(%d)", byte(d))
	}
}

// Validate returns ErrUnknownDepType for values outside the enum.
func (d DepType) Validate() error {
	switch d {
	case DepTypeCode, DepTypeDepGroup:
		return nil
	}

	return fmt.Errorf("%w: %d", ErrUnknownDepType, byte(d))
}

// ParseDepType is the inverse of DepType.String.
func ParseDepType(s string) (DepType, error) {
	switch s {
	case "code":
		return DepTypeCode, nil
	case "dep_group", "depGroup":
		return DepTypeDepGroup, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownDepType, s)
}

// CellDep is a read-only reference to a cell that provides code or a group
// of code cells to a transaction.
type CellDep struct {
	OutPoint OutPoint
	DepType  DepType
}

// NewCellDep builds a cell dep, rejecting an invalid dep type.
func NewCellDep(op OutPoint, depType DepType) (CellDep, error) {
	if err := depType.Validate(); err != nil {
		return CellDep{}, err
	}

	return CellDep{OutPoint: op, DepType: depType}, nil
}

// CellInput consumes the cell at PreviousOutput.
type CellInput struct {
	Since          uint64
	PreviousOutput OutPoint
}
