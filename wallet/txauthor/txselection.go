// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"errors"
	"fmt"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/txrules"
	"github.com/WilfredTA/ReuseCoin/wallet/txsizes"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// maxFundingRounds bounds how often the funding source is asked for a
// larger selection. Each round only grows the fee by the size of the inputs
// added in the previous one, so a handful of rounds always converges.
const maxFundingRounds = 16

// txSelectionError is defined so that we can signal the missing capacity
// to the calling software.
type txSelectionError struct {
	targetAmount wire.Capacity
	txFee        wire.Capacity
	availableAmt wire.Capacity
	reason       string
}

func (txSelectionError) InputSourceError() {}

func (e txSelectionError) Error() string {
	return fmt.Sprintf("insufficient capacity available to construct "+
		"transaction: outputs: %v, minimum fee: %v, available: %v (%s)",
		e.targetAmount, e.txFee, e.availableAmt, e.reason)
}

// inputState holds the current state of the transaction including all
// inputs which were selected so far.
type inputState struct {
	// feeRate is the fee rate used for fee calculation.
	feeRate wire.Capacity

	// txFee is the fee of the current transaction state.
	txFee wire.Capacity

	// changeCapacity is what the change cell receives, zero if the
	// transaction has no change.
	changeCapacity wire.Capacity
	hasChange      bool

	// outputs are the outputs of the transaction not including the
	// change.
	outputs     []wire.Cell
	outputTotal wire.Capacity

	deps []cellref.DepRef

	// fixed are the caller's inputs, funding the ones the funding source
	// added after them.
	fixed        []cellref.InputRef
	fixedTotal   wire.Capacity
	funding      []cellref.InputRef
	fundingTotal wire.Capacity
	source       InputSource

	changeLock *wire.Script
}

func newInputState(intent *Intent, outputs []wire.Cell,
	deps []cellref.DepRef) (*inputState, error) {

	outputTotal, err := SumOutputCapacity(outputs)
	if err != nil {
		return nil, err
	}

	var fixedTotal wire.Capacity
	for _, in := range intent.Inputs {
		var ok bool
		fixedTotal, ok = wire.AddCapacity(fixedTotal, in.Cell.Capacity)
		if !ok {
			return nil, protoerr.New(protoerr.ErrValidation,
				"input capacity", txrules.ErrCapacityOverflow)
		}
	}

	return &inputState{
		feeRate:     intent.FeeRate,
		outputs:     outputs,
		outputTotal: outputTotal,
		deps:        deps,
		fixed:       intent.Inputs,
		fixedTotal:  fixedTotal,
		source:      intent.Funding,
		changeLock:  wire.CopyScript(intent.ChangeLock),
	}, nil
}

func (s *inputState) inputs() []cellref.InputRef {
	all := make([]cellref.InputRef, 0, len(s.fixed)+len(s.funding))
	all = append(all, s.fixed...)
	return append(all, s.funding...)
}

func (s *inputState) inputTotal() wire.Capacity {
	return s.fixedTotal + s.fundingTotal
}

// lockGroups counts the distinct input locks, each of which gets one
// signature-sized witness in the estimate.
func (s *inputState) lockGroups() int {
	groups := make(map[wire.Hash]struct{})
	for _, in := range s.inputs() {
		groups[in.Cell.Lock.Hash()] = struct{}{}
	}
	return len(groups)
}

// changeCell returns the change cell carrying capacity.
func (s *inputState) changeCell(capacity wire.Capacity) wire.Cell {
	return wire.NewCell(capacity, *s.changeLock, nil, nil)
}

// minChange is the smallest change cell that can exist.
func (s *inputState) minChange() wire.Capacity {
	if s.changeLock == nil {
		return 0
	}
	return txrules.MinOutputCapacity(s.changeCell(0))
}

// draft lays out the unsigned transaction for the current selection.
func (s *inputState) draft(change bool, changeCapacity wire.Capacity) *wire.Transaction {
	tx := wire.NewTransaction()
	for _, d := range s.deps {
		tx.AddCellDep(d.Dep)
	}
	for _, in := range s.inputs() {
		tx.AddInput(in.OutPoint)
	}
	for _, o := range s.outputs {
		tx.AddOutput(o)
	}
	if change {
		tx.AddOutput(s.changeCell(changeCapacity))
	}
	return tx
}

// feeEstimate is the fee of the current selection with or without a change
// output.
func (s *inputState) feeEstimate(change bool) wire.Capacity {
	size := txsizes.EstimateSerializeSize(s.draft(change, 0), s.lockGroups())
	return txrules.FeeForSerializeSize(s.feeRate, size)
}

// settle decides whether the current selection pays for the outputs, with
// or without change. It reports false when more input is needed, together
// with the target the inputs must reach.
func (s *inputState) settle() (bool, wire.Capacity) {
	total := s.inputTotal()

	feeNoChange := s.feeEstimate(false)
	if total == s.outputTotal+feeNoChange {
		s.txFee = feeNoChange
		s.hasChange = false
		s.changeCapacity = 0
		return true, 0
	}

	if s.changeLock == nil {
		// Without a change lock the inputs must match exactly.
		s.txFee = feeNoChange
		return false, s.outputTotal + feeNoChange
	}

	feeChange := s.feeEstimate(true)
	target := s.outputTotal + feeChange + s.minChange()
	s.txFee = feeChange
	if total >= target {
		s.hasChange = true
		s.changeCapacity = total - s.outputTotal - feeChange
		return true, 0
	}

	return false, target
}

// absorbSurplus settles a selection whose surplus over the outputs and fee
// is too small to form a change cell. The surplus is left to the fee.
func (s *inputState) absorbSurplus() bool {
	total := s.inputTotal()
	if s.changeLock == nil || total < s.outputTotal+s.feeEstimate(false) {
		return false
	}

	s.txFee = total - s.outputTotal
	s.hasChange = false
	s.changeCapacity = 0

	log.Debugf("Surplus of %v is below the minimum change cell, paying "+
		"fee %v", total-s.outputTotal, s.txFee)

	return true
}

// selectInputs asks the funding source for inputs until the selection pays
// for the outputs and fee. When no more funding is available and the
// selection covers the outputs but not a change cell, the surplus goes to
// the fee.
func (s *inputState) selectInputs() error {
	for round := 0; ; round++ {
		done, target := s.settle()
		if done {
			return nil
		}

		total := s.inputTotal()
		if s.changeLock == nil && total > target {
			return protoerr.New(protoerr.ErrValidation,
				fmt.Sprintf("surplus of %v", total-target),
				ErrMissingChangeLock)
		}
		if s.source == nil || round >= maxFundingRounds {
			if s.absorbSurplus() {
				return nil
			}
			return s.insufficient(total, "no further funding")
		}

		var fundTarget wire.Capacity
		if target > s.fixedTotal {
			fundTarget = target - s.fixedTotal
		}

		fundTotal, funding, err := s.source(fundTarget)
		if err != nil {
			var isErr InputSourceError
			if errors.As(err, &isErr) {
				if s.absorbSurplus() {
					return nil
				}
				return protoerr.New(
					protoerr.ErrValidation, err.Error(),
					ErrInsufficientCapacity,
				)
			}
			return err
		}
		progress := len(funding) != len(s.funding) ||
			fundTotal != s.fundingTotal

		s.funding = funding
		s.fundingTotal = fundTotal

		switch {
		case fundTotal < fundTarget:
			// The funding source is exhausted; settle with what it
			// gave if that covers the outputs.
			if done, _ := s.settle(); done || s.absorbSurplus() {
				return nil
			}
			return s.insufficient(s.inputTotal(),
				"funding source exhausted")

		case !progress:
			if s.absorbSurplus() {
				return nil
			}
			return s.insufficient(total, "funding source made no "+
				"progress")
		}
	}
}

func (s *inputState) insufficient(available wire.Capacity,
	reason string) error {

	err := txSelectionError{
		targetAmount: s.outputTotal,
		txFee:        s.txFee,
		availableAmt: available,
		reason:       reason,
	}
	return protoerr.New(protoerr.ErrValidation, err.Error(),
		ErrInsufficientCapacity)
}

// skeleton returns the final skeleton of a settled selection.
func (s *inputState) skeleton() *Skeleton {
	tx := s.draft(s.hasChange, s.changeCapacity)

	inputs := s.inputs()
	skel := &Skeleton{
		Tx:          tx,
		Inputs:      make([]cellref.InputRef, len(inputs)),
		InputCells:  make([]wire.Cell, len(inputs)),
		TotalInput:  s.inputTotal(),
		Fee:         s.txFee,
		ChangeIndex: -1,
	}
	for i, in := range inputs {
		skel.Inputs[i] = cellref.InputRef{
			OutPoint: in.OutPoint,
			Cell:     in.Cell.Copy(),
		}
		skel.InputCells[i] = in.Cell.Copy()
	}
	if s.hasChange {
		skel.ChangeIndex = len(s.outputs)
	}

	log.Debugf("Assembled tx %v: %d inputs, %d outputs, fee %v, "+
		"change index %d", tx.Hash(), len(tx.Inputs), len(tx.Outputs),
		s.txFee, skel.ChangeIndex)

	return skel
}
