// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet drives a reuse coin run: it deploys the token definition,
// mints the fee token, deploys the wallet lock, creates the payment wallet,
// deploys the reusable script and pays for its uses. Every phase assembles a
// transaction, reserves its inputs, signs, submits and waits for the ledger
// to commit it before returning the next State.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wallet/txrules"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
)

var (
	// errNoTokenCell is returned by phases that move tokens when the run
	// holds no token cell.
	errNoTokenCell = protoerr.New(protoerr.ErrMissingDependency,
		"no token cell", ErrPhaseOrder)

	// ErrInvalidAmount is returned for a negative or zero token amount
	// where a positive one is required.
	ErrInvalidAmount = errors.New("invalid token amount")

	// ErrFeeMismatch is returned when the fee offered for a use differs
	// from the wallet's token rate.
	ErrFeeMismatch = errors.New("fee does not match the wallet token rate")

	// ErrInsufficientTokens is returned when the owner's token cell holds
	// less than a phase needs to move.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrNotSecp256k1Lock is returned when the run owner is not guarded by
	// the default lock.
	ErrNotSecp256k1Lock = errors.New("owner lock is not the default " +
		"secp256k1 lock")

	// ErrNoScriptAnchor is returned when a unique wallet has no owner cell
	// to anchor its reusable script on.
	ErrNoScriptAnchor = errors.New("no owner cell to anchor the " +
		"reusable script")

	// ErrScriptTypeMismatch is returned when a reusable script would be
	// deployed with a type other than the one its wallet is bound to.
	ErrScriptTypeMismatch = errors.New("reusable script type does not " +
		"match the wallet")
)

// Config houses the collaborators of a Workflow.
type Config struct {
	// Params are the parameters of the network the run targets.
	Params *netparams.Params

	Signer    Signer
	Submitter Submitter
	Cells     CellCollector
	Codes     CodeStore

	// Owner is the run's default lock. It funds every transaction,
	// receives native change, governs the token and owns the wallet.
	Owner wire.Script

	// FeeRate in shannons per 1000 bytes. txrules.DefaultFeeRate is used
	// when zero.
	FeeRate wire.Capacity

	// Tracker records the references of the run. A new tracker is used
	// when nil.
	Tracker *cellref.Tracker

	// Journal, if set, records every state reached.
	Journal Journal
}

// Workflow runs the phases of the protocol. It is safe for concurrent use,
// although a single run is meant to advance one phase at a time.
type Workflow struct {
	cfg     Config
	tracker *cellref.Tracker
}

// New returns a Workflow using the collaborators in cfg.
func New(cfg Config) (*Workflow, error) {
	switch {
	case cfg.Params == nil:
		return nil, errors.New("network params are required")
	case cfg.Signer == nil:
		return nil, errors.New("signer is required")
	case cfg.Submitter == nil:
		return nil, errors.New("submitter is required")
	case cfg.Cells == nil:
		return nil, errors.New("cell collector is required")
	case cfg.Codes == nil:
		return nil, errors.New("code store is required")
	}
	if !cfg.Params.IsSecp256k1Lock(cfg.Owner) {
		return nil, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("owner %v", cfg.Owner), ErrNotSecp256k1Lock)
	}

	if cfg.FeeRate == 0 {
		cfg.FeeRate = txrules.DefaultFeeRate
	}
	cfg.Owner = cfg.Owner.Copy()

	w := &Workflow{cfg: cfg, tracker: cfg.Tracker}
	if w.tracker == nil {
		w.tracker = cellref.NewTracker()
	}

	return w, nil
}

// Start returns the initial state of a new run.
func (w *Workflow) Start() State {
	s := NewState(uuid.New())
	log.Infof("Starting run %v for owner %v", s.RunID, w.cfg.Owner.Hash())
	return s
}

// Tracker returns the reference tracker of the workflow.
func (w *Workflow) Tracker() *cellref.Tracker {
	return w.tracker
}

// Owner returns the run's default lock.
func (w *Workflow) Owner() wire.Script {
	return w.cfg.Owner.Copy()
}

// sized returns c carrying exactly its minimum capacity.
func sized(c wire.Cell) wire.Cell {
	c.Capacity = txrules.MinOutputCapacity(c)
	return c
}

// funding returns an input source over the plain live cells of lock that
// the run has not consumed yet, other than those in skip. The live set is
// fetched once per transaction.
func (w *Workflow) funding(ctx context.Context, lock wire.Script,
	skip ...wire.OutPoint) txauthor.InputSource {

	var (
		live    []cellref.Ref
		fetched bool
	)
	return func(target wire.Capacity) (wire.Capacity, []cellref.InputRef,
		error) {

		if !fetched {
			refs, err := w.cfg.Cells.LiveCells(ctx, lock)
			if err != nil {
				return 0, nil, fmt.Errorf("live cells: %w", err)
			}
			live, fetched = refs, true
		}

		var (
			total  wire.Capacity
			inputs []cellref.InputRef
		)
		for _, r := range live {
			if total >= target {
				break
			}
			if !r.Cell.IsPlain() || w.tracker.IsSpent(r.OutPoint) ||
				slices.Contains(skip, r.OutPoint) {

				continue
			}
			inputs = append(inputs, r.AsInput())
			total += r.Cell.Capacity
		}
		return total, inputs, nil
	}
}

// newIntent returns an intent creating outputs, funded by and returning
// change to the owner, with the default lock's dep group.
func (w *Workflow) newIntent(ctx context.Context,
	outputs ...wire.Cell) *txauthor.Intent {

	owner := w.cfg.Owner.Copy()
	return &txauthor.Intent{
		Outputs:    outputs,
		Deps:       []cellref.DepRef{w.cfg.Params.Secp256k1Dep()},
		Funding:    w.funding(ctx, owner),
		ChangeLock: &owner,
		FeeRate:    w.cfg.FeeRate,
	}
}

// codeDeps returns the code deps of the given code cells.
func codeDeps(cells ...*CodeCell) ([]cellref.DepRef, error) {
	deps := make([]cellref.DepRef, 0, len(cells))
	for _, c := range cells {
		dep, err := c.Dep()
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// committed is a transaction the ledger has committed.
type committed struct {
	skel    *txauthor.Skeleton
	tx      *wire.Transaction
	hash    wire.Hash
	outputs []cellref.Ref
}

// skelCheck validates an assembled skeleton before any of its inputs are
// reserved.
type skelCheck func(*txauthor.Skeleton) error

// conserves returns a check that the skeleton neither creates nor destroys
// tokens of the definition code tokenCode.
func conserves(tokenCode wire.Hash) skelCheck {
	return func(skel *txauthor.Skeleton) error {
		return txrules.CheckTokenConservation(
			skel.InputCells, skel.OutputCells(), tokenCode,
		)
	}
}

// checkUnspent fails with a DoubleSpend error if any of the inputs was
// already consumed by the run.
func (w *Workflow) checkUnspent(inputs []cellref.InputRef) error {
	for _, in := range inputs {
		if w.tracker.IsSpent(in.OutPoint) {
			desc := fmt.Sprintf("input %v", in.OutPoint)
			return protoerr.New(protoerr.ErrDoubleSpend, desc,
				cellref.ErrDoubleSpend)
		}
	}
	return nil
}

// commit assembles, reserves, signs and submits the transaction described
// by intent and waits for the ledger to commit it.
//
// The inputs are released again when the transaction is not accepted by
// the ledger. Once submitted, they stay reserved unless the ledger rejects
// the transaction, since it may still commit.
func (w *Workflow) commit(ctx context.Context, op string,
	intent *txauthor.Intent, checks ...skelCheck) (*committed, error) {

	if err := w.checkUnspent(intent.Inputs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	skel, err := txauthor.Build(intent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, check := range checks {
		if err := check(skel); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := w.tracker.Spend(skel.Inputs...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := w.cfg.Signer.Sign(ctx, skel)
	if err != nil {
		w.tracker.Release(skel.Inputs...)
		return nil, fmt.Errorf("%s: sign: %w", op, err)
	}

	log.Tracef("%s transaction: %v", op, newLogClosure(func() string {
		return spew.Sdump(tx)
	}))

	txHash, err := w.cfg.Submitter.Submit(ctx, tx)
	if err != nil {
		w.tracker.Release(skel.Inputs...)
		return nil, fmt.Errorf("%s: submit: %w", op, err)
	}

	log.Debugf("%s: submitted %v spending %d %s, fee %v", op, txHash,
		len(tx.Inputs), pickNoun(len(tx.Inputs), "input", "inputs"),
		skel.Fee)

	if err := w.cfg.Submitter.WaitForCommit(ctx, txHash); err != nil {
		if errors.Is(err, protoerr.ErrConsensusRejected) {
			w.tracker.Release(skel.Inputs...)
		}
		return nil, fmt.Errorf("%s: commit %v: %w", op, txHash, err)
	}

	outputs := w.tracker.TrackOutputs(txHash, tx)

	log.Infof("%s: committed %v with %d %s", op, txHash, len(outputs),
		pickNoun(len(outputs), "output", "outputs"))

	return &committed{
		skel:    skel,
		tx:      tx,
		hash:    txHash,
		outputs: outputs,
	}, nil
}

// advance returns the state following prev once event committed, with
// update applied, and hands it to the journal.
func (w *Workflow) advance(ctx context.Context, prev State, event string,
	update func(*State)) (State, error) {

	phase, err := nextPhase(ctx, prev, event)
	if err != nil {
		return State{}, err
	}

	next := prev.with(func(s *State) {
		update(s)
		s.Phase = phase
	})

	if w.cfg.Journal != nil {
		err := w.cfg.Journal.Record(ctx, next, w.tracker.Spent())
		if err != nil {
			// The phase is committed on the ledger, so the new
			// state is returned regardless.
			log.Errorf("Unable to record run %v after %s: %v",
				next.RunID, event, err)
		}
	}

	return next, nil
}

// readCode returns the non-empty code stored under name.
func (w *Workflow) readCode(op, name string) ([]byte, error) {
	code, err := w.cfg.Codes.ReadBytes(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(code) == 0 {
		return nil, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("%s: code %q is empty", op, name), nil)
	}
	return code, nil
}

// deployCode deploys the code stored under name into a cell locked by
// lock.
func (w *Workflow) deployCode(ctx context.Context, op, name string,
	lock wire.Script) (*CodeCell, error) {

	code, err := w.readCode(op, name)
	if err != nil {
		return nil, err
	}

	cell := sized(wire.NewCell(0, lock, nil, code))
	c, err := w.commit(ctx, op, w.newIntent(ctx, cell))
	if err != nil {
		return nil, err
	}

	return newCodeCell(c.outputs[0]), nil
}
