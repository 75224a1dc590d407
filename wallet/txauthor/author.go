// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor provides transaction skeleton assembly: it wires deps,
// inputs and outputs together, pays the fee, adds native change and patches
// self-referential TypeID args.
package txauthor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wallet/txrules"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrInsufficientCapacity is returned when the inputs cannot pay for
	// the outputs, the fee and, if one is needed, a change cell.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrMissingDependency is returned when a script the transaction
	// executes is not provided by any of its deps.
	ErrMissingDependency = errors.New("script code not provided by any dep")

	// ErrNoOutputs is returned for an intent without outputs.
	ErrNoOutputs = errors.New("intent has no outputs")

	// ErrNoInputs is returned when neither fixed inputs nor a funding
	// source is given.
	ErrNoInputs = errors.New("intent has no inputs")

	// ErrMissingChangeLock is returned when a change output is needed but
	// the intent names no change lock.
	ErrMissingChangeLock = errors.New("change needed but no change lock")

	// ErrOutputIndex is returned for an output index outside the
	// transaction.
	ErrOutputIndex = errors.New("output index out of range")
)

// SumOutputCapacity sums up the capacity of the given cells.
func SumOutputCapacity(outputs []wire.Cell) (wire.Capacity, error) {
	var total wire.Capacity
	for _, o := range outputs {
		var ok bool
		total, ok = wire.AddCapacity(total, o.Capacity)
		if !ok {
			return 0, protoerr.New(protoerr.ErrValidation,
				"output capacity", txrules.ErrCapacityOverflow)
		}
	}
	return total, nil
}

// InputSource provides inputs referencing spendable cells to fund a
// transaction with some target capacity. It may be called repeatedly with
// growing targets and returns a complete selection each time. If the target
// can not be satisfied, this can be signaled by returning a total less than
// the target or by returning a more detailed error implementing
// InputSourceError.
type InputSource func(target wire.Capacity) (total wire.Capacity,
	inputs []cellref.InputRef, err error)

// InputSourceError describes the failure to provide enough input capacity
// from live cells to meet a target. A typed error is used so input sources
// can provide their own implementations describing the reason for the
// error.
type InputSourceError interface {
	error
	InputSourceError()
}

// Default implementation of InputSourceError.
type insufficientFundsError struct {
	target    wire.Capacity
	available wire.Capacity
}

func (insufficientFundsError) InputSourceError() {}

func (e insufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient capacity available to construct "+
		"transaction: target %v, available %v", e.target, e.available)
}

// NewInsufficientFundsError returns the default InputSourceError.
func NewInsufficientFundsError(target,
	available wire.Capacity) InputSourceError {

	return insufficientFundsError{target: target, available: available}
}

// Intent describes the transaction a phase wants: its outputs in order, the
// deps and inputs it must carry, and how native capacity is balanced.
type Intent struct {
	// Outputs are the cells to create, in order. Output i of the intent
	// is output i of the transaction.
	Outputs []wire.Cell

	// Deps are the cell deps. Duplicates are dropped, keeping the first
	// occurrence.
	Deps []cellref.DepRef

	// Inputs are spent first, in this order.
	Inputs []cellref.InputRef

	// Funding, if set, supplies additional plain inputs appended after
	// Inputs when they do not cover the outputs and fee.
	Funding InputSource

	// ChangeLock receives surplus capacity in a change cell appended
	// after Outputs.
	ChangeLock *wire.Script

	// FeeRate is the fee rate in shannons per 1000 bytes.
	FeeRate wire.Capacity

	// TypeIDOutput names the output whose type args must be the TypeID
	// derived from the first input and the output's own index.
	TypeIDOutput fn.Option[int]
}

// Skeleton is an assembled, unsigned transaction together with the cells
// its inputs spend.
type Skeleton struct {
	Tx *wire.Transaction

	// InputCells holds the cell spent by each input, in input order.
	InputCells []wire.Cell

	// Inputs are the references spent, in input order.
	Inputs []cellref.InputRef

	TotalInput  wire.Capacity
	Fee         wire.Capacity
	ChangeIndex int // negative if no change
}

// Copy returns a deep copy of the skeleton.
func (s *Skeleton) Copy() *Skeleton {
	c := &Skeleton{
		Tx:          s.Tx.Copy(),
		TotalInput:  s.TotalInput,
		Fee:         s.Fee,
		ChangeIndex: s.ChangeIndex,
	}
	for _, cell := range s.InputCells {
		c.InputCells = append(c.InputCells, cell.Copy())
	}
	for _, in := range s.Inputs {
		c.Inputs = append(c.Inputs, cellref.InputRef{
			OutPoint: in.OutPoint,
			Cell:     in.Cell.Copy(),
		})
	}
	return c
}

// OutputCells returns the transaction outputs with their data.
func (s *Skeleton) OutputCells() []wire.Cell {
	cells := make([]wire.Cell, len(s.Tx.Outputs))
	for i := range cells {
		cells[i] = s.Tx.Output(i)
	}
	return cells
}

// WithTypeArgs returns a new skeleton whose output index has its type
// script args replaced. The receiver is left untouched. The patched output
// is checked against its minimum capacity again since args of a different
// length change its occupied size.
func (s *Skeleton) WithTypeArgs(index int, args []byte) (*Skeleton, error) {
	if index < 0 || index >= len(s.Tx.Outputs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutputIndex, index,
			len(s.Tx.Outputs))
	}
	if s.Tx.Outputs[index].Type == nil {
		return nil, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("output %d has no type script", index), nil)
	}

	patched := s.Copy()
	typ := patched.Tx.Outputs[index].Type.WithArgs(args)
	patched.Tx.Outputs[index].Type = &typ

	if err := txrules.CheckOutput(patched.Tx.Output(index)); err != nil {
		return nil, fmt.Errorf("output %d: %w", index, err)
	}

	return patched, nil
}

// TypeIDArgs derives the identity of output index of a transaction whose
// first input spends first: the ckbhash of the 36 byte identity record of
// the out point followed by the output index as a little endian u64.
func TypeIDArgs(first wire.OutPoint, index uint64) wire.Hash {
	return wire.CKBHash(
		layout.EncodeIdentity(first),
		binary.LittleEndian.AppendUint64(nil, index),
	)
}

// typeIDPlaceholder reserves the size of the final args so capacity is
// computed on the real occupied size.
var typeIDPlaceholder = make([]byte, wire.HashSize)

// Build assembles the skeleton described by intent.
//
// Deps are deduplicated preserving first-seen order and input order is
// preserved exactly, fixed inputs first. Every type script of an output and
// every lock and type script of an input must be provided by a dep, or the
// build fails with ErrMissingDependency. Tokens are not balanced here; the
// caller lays out token outputs.
//
// The fee is computed from the size of the signed transaction. When the
// inputs exceed the outputs plus the fee, a change cell locked by
// ChangeLock is appended and its index returned in ChangeIndex. The surplus
// must cover the change cell's own minimum capacity: if it does not, more
// funding is requested, and failing that the surplus is paid as fee and no
// change is made. ErrInsufficientCapacity is returned only when the inputs
// cannot cover the outputs and the fee.
//
// When TypeIDOutput is set the build runs in two passes: the output is laid
// out with a placeholder, inputs are fixed, then the identity is computed
// from the first input and a new skeleton carrying it is returned.
func Build(intent *Intent) (*Skeleton, error) {
	if len(intent.Outputs) == 0 {
		return nil, protoerr.New(protoerr.ErrValidation,
			"build", ErrNoOutputs)
	}
	if len(intent.Inputs) == 0 && intent.Funding == nil {
		return nil, protoerr.New(protoerr.ErrValidation,
			"build", ErrNoInputs)
	}

	outputs := make([]wire.Cell, len(intent.Outputs))
	for i, o := range intent.Outputs {
		outputs[i] = o.Copy()
	}

	typeIDIndex := intent.TypeIDOutput.UnwrapOr(-1)
	if intent.TypeIDOutput.IsSome() {
		if typeIDIndex < 0 || typeIDIndex >= len(outputs) {
			return nil, fmt.Errorf("type id: %w: %d", ErrOutputIndex,
				typeIDIndex)
		}
		if outputs[typeIDIndex].Type == nil {
			return nil, protoerr.New(protoerr.ErrValidation,
				"type id output has no type script", nil)
		}
		typ := outputs[typeIDIndex].Type.WithArgs(typeIDPlaceholder)
		outputs[typeIDIndex].Type = &typ
	}

	for i, o := range outputs {
		if err := txrules.CheckOutput(o); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	deps := dedupDeps(intent.Deps)
	for i, o := range outputs {
		if o.Type != nil && !resolves(deps, *o.Type) {
			return nil, missingDep("output", i, "type", *o.Type)
		}
	}

	state, err := newInputState(intent, outputs, deps)
	if err != nil {
		return nil, err
	}
	if err := state.selectInputs(); err != nil {
		return nil, err
	}

	for i, in := range state.inputs() {
		if !resolves(deps, in.Cell.Lock) {
			return nil, missingDep("input", i, "lock", in.Cell.Lock)
		}
		if in.Cell.Type != nil && !resolves(deps, *in.Cell.Type) {
			return nil, missingDep("input", i, "type", *in.Cell.Type)
		}
	}

	skel := state.skeleton()
	if typeIDIndex < 0 {
		return skel, nil
	}

	args := TypeIDArgs(skel.Tx.Inputs[0].PreviousOutput,
		uint64(typeIDIndex))

	return skel.WithTypeArgs(typeIDIndex, args[:])
}

func dedupDeps(deps []cellref.DepRef) []cellref.DepRef {
	seen := make(map[wire.CellDep]int, len(deps))
	out := make([]cellref.DepRef, 0, len(deps))
	for _, d := range deps {
		if i, ok := seen[d.Dep]; ok {
			// Keep the first position but the union of what the
			// duplicates claim to provide.
			out[i].Provides = append(out[i].Provides, d.Provides...)
			continue
		}
		seen[d.Dep] = len(out)
		out = append(out, cellref.DepRef{
			Dep:      d.Dep,
			Provides: append([]cellref.CodeID(nil), d.Provides...),
		})
	}
	return out
}

func resolves(deps []cellref.DepRef, s wire.Script) bool {
	for _, d := range deps {
		if d.Resolves(s) {
			return true
		}
	}
	return false
}

func missingDep(kind string, i int, role string, s wire.Script) error {
	desc := fmt.Sprintf("%s %d %s script %v", kind, i, role, s)
	return protoerr.New(protoerr.ErrMissingDependency, desc,
		ErrMissingDependency)
}
