// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DeployTypeIDCode deploys the identity type code stored under name into a
// cell locked by the owner.
func (w *Workflow) DeployTypeIDCode(ctx context.Context, prev State,
	name string) (State, error) {

	if err := guard(prev, EventDeployTypeIDCode); err != nil {
		return State{}, err
	}

	code, err := w.deployCode(ctx, EventDeployTypeIDCode, name, w.cfg.Owner)
	if err != nil {
		return State{}, err
	}

	return w.advance(ctx, prev, EventDeployTypeIDCode, func(s *State) {
		s.TypeIDCode = code
	})
}

// CreateTypeIDCell creates a cell holding data whose type args are the
// identity derived from the transaction's first input.
func (w *Workflow) CreateTypeIDCell(ctx context.Context, prev State,
	data []byte) (State, error) {

	if err := guard(prev, EventCreateTypeID); err != nil {
		return State{}, err
	}

	typ := prev.TypeIDCode.Script(make([]byte, wire.HashSize))
	cell := sized(wire.NewCell(0, w.cfg.Owner, &typ, data))

	deps, err := codeDeps(prev.TypeIDCode)
	if err != nil {
		return State{}, err
	}
	intent := w.newIntent(ctx, cell)
	intent.Deps = append(intent.Deps, deps...)
	intent.TypeIDOutput = fn.Some(0)

	c, err := w.commit(ctx, EventCreateTypeID, intent)
	if err != nil {
		return State{}, err
	}

	ref := c.outputs[0]
	var id wire.Hash
	copy(id[:], ref.Cell.Type.Args)

	log.Infof("Type id cell %v created at %v", id, ref.OutPoint)

	return w.advance(ctx, prev, EventCreateTypeID, func(s *State) {
		s.TypeID = &TypeIDCell{ID: id, Ref: ref}
	})
}

// UpdateTypeIDCell replaces the data of the identity cell. The cell is
// spent and recreated with the same type script, so its identity is
// unchanged.
func (w *Workflow) UpdateTypeIDCell(ctx context.Context, prev State,
	data []byte) (State, error) {

	if err := guard(prev, EventUpdateTypeID); err != nil {
		return State{}, err
	}

	current := prev.TypeID
	cell := sized(wire.NewCell(0, current.Ref.Cell.Lock,
		current.Ref.Cell.Type, data))

	deps, err := codeDeps(prev.TypeIDCode)
	if err != nil {
		return State{}, err
	}
	intent := w.newIntent(ctx, cell)
	intent.Deps = append(intent.Deps, deps...)
	intent.Inputs = []cellref.InputRef{current.Ref.AsInput()}

	c, err := w.commit(ctx, EventUpdateTypeID, intent)
	if err != nil {
		return State{}, err
	}

	log.Infof("Type id cell %v updated to version %d", current.ID,
		current.Version+1)

	return w.advance(ctx, prev, EventUpdateTypeID, func(s *State) {
		s.TypeID = &TypeIDCell{
			ID:      current.ID,
			Ref:     c.outputs[0],
			Version: current.Version + 1,
		}
	})
}
