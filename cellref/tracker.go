// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cellref

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// ErrDoubleSpend is returned when a run tries to consume a reference it has
// already consumed.
var ErrDoubleSpend = errors.New("cell reference already consumed")

// Tracker records the references issued and consumed during one run. It is
// safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	issued map[wire.OutPoint]wire.Cell
	spent  map[wire.OutPoint]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		issued: make(map[wire.OutPoint]wire.Cell),
		spent:  make(map[wire.OutPoint]struct{}),
	}
}

// Track records output index of a committed transaction and returns its
// reference. The cell content is supplied by the caller, who built the
// transaction.
func (t *Tracker) Track(txHash wire.Hash, index uint32, cell wire.Cell) Ref {
	ref := NewRef(wire.NewOutPoint(txHash, index), cell)

	t.mu.Lock()
	t.issued[ref.OutPoint] = ref.Cell.Copy()
	t.mu.Unlock()

	return ref
}

// TrackOutputs records every output of tx, committed under txHash.
func (t *Tracker) TrackOutputs(txHash wire.Hash, tx *wire.Transaction) []Ref {
	refs := make([]Ref, len(tx.Outputs))
	for i := range tx.Outputs {
		refs[i] = t.Track(txHash, uint32(i), tx.Output(i))
	}
	return refs
}

// Lookup returns an issued cell.
func (t *Tracker) Lookup(op wire.OutPoint) (Ref, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cell, ok := t.issued[op]
	if !ok {
		return Ref{}, false
	}
	return NewRef(op, cell), true
}

// Spend atomically marks every input consumed. If any of them, or any
// duplicate within the call, was already consumed nothing is marked and
// ErrDoubleSpend is returned.
func (t *Tracker) Spend(inputs ...InputRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[wire.OutPoint]struct{}, len(inputs))
	for _, in := range inputs {
		_, spent := t.spent[in.OutPoint]
		_, dup := seen[in.OutPoint]
		if spent || dup {
			desc := fmt.Sprintf("input %v", in.OutPoint)
			return protoerr.New(protoerr.ErrDoubleSpend, desc,
				ErrDoubleSpend)
		}
		seen[in.OutPoint] = struct{}{}
	}

	for op := range seen {
		t.spent[op] = struct{}{}
	}

	return nil
}

// Release returns reservations made by Spend for a transaction that was
// never committed.
func (t *Tracker) Release(inputs ...InputRef) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, in := range inputs {
		delete(t.spent, in.OutPoint)
	}
}

// IsSpent reports whether op has been consumed in this run.
func (t *Tracker) IsSpent(op wire.OutPoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.spent[op]
	return ok
}

// Spent returns the consumed set in a stable order.
func (t *Tracker) Spent() []wire.OutPoint {
	t.mu.Lock()
	ops := make([]wire.OutPoint, 0, len(t.spent))
	for op := range t.spent {
		ops = append(ops, op)
	}
	t.mu.Unlock()

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].String() < ops[j].String()
	})

	return ops
}

// Restore marks ops consumed, for a run resumed from persisted state.
func (t *Tracker) Restore(ops []wire.OutPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, op := range ops {
		t.spent[op] = struct{}{}
	}
}

// NumIssued returns the number of references tracked so far.
func (t *Tracker) NumIssued() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.issued)
}
