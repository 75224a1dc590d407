// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/txrules"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// ErrUnknownTx is returned when waiting on a transaction the simulated
// ledger never accepted.
var ErrUnknownTx = errors.New("unknown transaction")

// ScriptGroup is the set of inputs and outputs sharing one script, the unit
// a script runs for.
type ScriptGroup struct {
	Script wire.Script

	// IsLock is set for lock script groups, which only hold inputs.
	IsLock bool

	// Inputs and Outputs are indices into the transaction.
	Inputs  []int
	Outputs []int

	Tx *ResolvedTx
}

// ResolvedTx is a transaction together with the cells it spends and
// loads.
type ResolvedTx struct {
	Tx   *wire.Transaction
	Hash wire.Hash

	// Inputs holds the cell spent by each input.
	Inputs []wire.Cell

	// Deps holds the cell loaded by each code dep, in dep order. Dep
	// group entries are not expanded.
	Deps []wire.Cell

	Outputs []wire.Cell
}

// ScriptError is the non-zero exit code of a script.
type ScriptError struct {
	Code   int64
	Script string
}

// Error formats the error the way the node reports verification failures.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("ValidationFailure: see error code %d (%s)",
		e.Code, e.Script)
}

// ScriptRule is a native implementation of an on-chain script that the
// simulated ledger runs in place of the script's code.
type ScriptRule struct {
	Name     string
	CodeHash wire.Hash
	HashType wire.HashType
	Verify   func(g *ScriptGroup) error
}

func (r ScriptRule) matches(s wire.Script) bool {
	id := cellref.CodeID{Hash: r.CodeHash, HashType: r.HashType}
	return id.Matches(s)
}

func (r ScriptRule) fail(code int64) error {
	return &ScriptError{Code: code, Script: r.Name}
}

// SimLedger is an in-process ledger that validates and commits
// transactions synchronously. Scripts with a registered rule are run; any
// other script whose code is provided by a dep succeeds.
type SimLedger struct {
	params  *netparams.Params
	rules   []ScriptRule
	minRate wire.Capacity

	mu     sync.Mutex
	live   map[wire.OutPoint]wire.Cell
	order  []wire.OutPoint
	dead   map[wire.OutPoint]struct{}
	txs    map[wire.Hash]*wire.Transaction
	groups map[wire.OutPoint][]cellref.CodeID
	funds  uint32
	hook   func(*wire.Transaction) error
}

// A compile-time assertion to ensure SimLedger meets the Interface
// interface.
var _ Interface = (*SimLedger)(nil)

// NewSimLedger returns a ledger whose genesis holds the default lock dep
// group of params.
func NewSimLedger(params *netparams.Params, rules ...ScriptRule) *SimLedger {
	l := &SimLedger{
		params:  params,
		rules:   append([]ScriptRule{Secp256k1Rule(params)}, rules...),
		minRate: txrules.DefaultFeeRate,
		live:    make(map[wire.OutPoint]wire.Cell),
		dead:    make(map[wire.OutPoint]struct{}),
		txs:     make(map[wire.Hash]*wire.Transaction),
		groups:  make(map[wire.OutPoint][]cellref.CodeID),
	}
	l.groups[params.Secp256k1DepGroup] = []cellref.CodeID{{
		Hash:     params.Secp256k1CodeHash,
		HashType: wire.HashTypeType,
	}}
	return l
}

// BackEnd returns the name of the driver.
func (l *SimLedger) BackEnd() string {
	return "simnet"
}

// SetMinFeeRate sets the pool's minimum fee rate in shannons per 1000
// bytes.
func (l *SimLedger) SetMinFeeRate(rate wire.Capacity) {
	l.mu.Lock()
	l.minRate = rate
	l.mu.Unlock()
}

// SetSubmitHook installs a function run before every submission. A
// non-nil error it returns is returned by Submit as a network failure.
func (l *SimLedger) SetSubmitHook(hook func(*wire.Transaction) error) {
	l.mu.Lock()
	l.hook = hook
	l.mu.Unlock()
}

// Fund creates a live plain cell out of thin air, as a faucet would.
func (l *SimLedger) Fund(lock wire.Script, capacity wire.Capacity) wire.OutPoint {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.funds++
	seed := fmt.Sprintf("simnet faucet %d", l.funds)
	op := wire.NewOutPoint(wire.CKBHash([]byte(seed)), 0)
	l.addLive(op, wire.NewCell(capacity, lock, nil, nil))

	log.Debugf("Funded %v with %v", op, capacity)
	return op
}

func (l *SimLedger) addLive(op wire.OutPoint, c wire.Cell) {
	l.live[op] = c.Copy()
	l.order = append(l.order, op)
}

func resolveErr(op wire.OutPoint, state string) error {
	rpcErr := &RPCError{
		Code: CodeTxFailedToResolve,
		Message: fmt.Sprintf("TransactionFailedToResolve: "+
			"Resolve failed %s(%v)", state, op),
	}
	return mapRPCErr("send_transaction", rpcErr)
}

func verifyErr(format string, args ...any) error {
	rpcErr := &RPCError{
		Code: CodeTxFailedToVerify,
		Message: "TransactionFailedToVerify: Verification failed " +
			fmt.Sprintf(format, args...),
	}
	return mapRPCErr("send_transaction", rpcErr)
}

// cellState must be called with the lock held.
func (l *SimLedger) cellState(op wire.OutPoint) string {
	if _, ok := l.dead[op]; ok {
		return "Dead"
	}
	return "Unknown"
}

// Submit validates tx against the live set and, if it passes, commits it.
func (l *SimLedger) Submit(ctx context.Context,
	tx *wire.Transaction) (wire.Hash, error) {

	if err := ctx.Err(); err != nil {
		return wire.Hash{}, protoerr.New(protoerr.ErrNetwork,
			"send_transaction", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hook != nil {
		if err := l.hook(tx); err != nil {
			return wire.Hash{}, protoerr.New(protoerr.ErrNetwork,
				"send_transaction", err)
		}
	}

	txHash := tx.Hash()
	if _, ok := l.txs[txHash]; ok {
		log.Debugf("Transaction %v already committed", txHash)
		return txHash, nil
	}

	if err := tx.Validate(); err != nil {
		return wire.Hash{}, verifyErr("%v", err)
	}

	rtx, provided, err := l.resolve(tx, txHash)
	if err != nil {
		return wire.Hash{}, err
	}
	if err := l.checkCapacity(rtx); err != nil {
		return wire.Hash{}, err
	}
	if err := l.runScripts(rtx, provided); err != nil {
		return wire.Hash{}, err
	}

	for _, in := range tx.Inputs {
		delete(l.live, in.PreviousOutput)
		l.dead[in.PreviousOutput] = struct{}{}
	}
	for i := range tx.Outputs {
		l.addLive(wire.NewOutPoint(txHash, uint32(i)), tx.Output(i))
	}
	l.txs[txHash] = tx.Copy()

	log.Infof("Committed transaction %v (%d inputs, %d outputs)",
		txHash, len(tx.Inputs), len(tx.Outputs))

	return txHash, nil
}

// resolve must be called with the lock held.
func (l *SimLedger) resolve(tx *wire.Transaction,
	txHash wire.Hash) (*ResolvedTx, []cellref.CodeID, error) {

	rtx := &ResolvedTx{Tx: tx, Hash: txHash}

	var provided []cellref.CodeID
	for _, dep := range tx.CellDeps {
		if dep.DepType == wire.DepTypeDepGroup {
			ids, ok := l.groups[dep.OutPoint]
			if !ok {
				return nil, nil, resolveErr(dep.OutPoint,
					l.cellState(dep.OutPoint))
			}
			provided = append(provided, ids...)
			continue
		}

		cell, ok := l.live[dep.OutPoint]
		if !ok {
			return nil, nil, resolveErr(dep.OutPoint,
				l.cellState(dep.OutPoint))
		}
		rtx.Deps = append(rtx.Deps, cell.Copy())

		ref := cellref.NewRef(dep.OutPoint, cell)
		d, err := ref.AsDep(wire.DepTypeCode)
		if err != nil {
			return nil, nil, verifyErr("%v", err)
		}
		provided = append(provided, d.Provides...)
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		op := in.PreviousOutput
		if _, dup := seen[op]; dup {
			return nil, nil, verifyErr("DuplicateInput(%v)", op)
		}
		seen[op] = struct{}{}

		cell, ok := l.live[op]
		if !ok {
			return nil, nil, resolveErr(op, l.cellState(op))
		}
		rtx.Inputs = append(rtx.Inputs, cell.Copy())
	}
	if len(rtx.Inputs) == 0 {
		return nil, nil, verifyErr("Empty(Inputs)")
	}

	for i := range tx.Outputs {
		rtx.Outputs = append(rtx.Outputs, tx.Output(i))
	}

	return rtx, provided, nil
}

// checkCapacity must be called with the lock held.
func (l *SimLedger) checkCapacity(rtx *ResolvedTx) error {
	var in, out wire.Capacity
	for _, c := range rtx.Inputs {
		var ok bool
		if in, ok = wire.AddCapacity(in, c.Capacity); !ok {
			return verifyErr("CapacityOverflow")
		}
	}
	for i, c := range rtx.Outputs {
		if err := txrules.CheckOutput(c); err != nil {
			return verifyErr("InsufficientCellCapacity(Outputs[%d])",
				i)
		}
		var ok bool
		if out, ok = wire.AddCapacity(out, c.Capacity); !ok {
			return verifyErr("CapacityOverflow")
		}
	}
	if out > in {
		return verifyErr("OutputsSumOverflow(inputs %v, outputs %v)",
			in, out)
	}

	size := rtx.Tx.SerializeSize()
	minFee := txrules.FeeForSerializeSize(l.minRate, size)
	if in-out < minFee {
		rpcErr := &RPCError{
			Code: CodePoolRejectedMinFeeRate,
			Message: fmt.Sprintf("PoolRejectedTransactionByMinFeeRate: "+
				"fee %v below %v", in-out, minFee),
		}
		return mapRPCErr("send_transaction", rpcErr)
	}

	return nil
}

func scriptProvided(provided []cellref.CodeID, s wire.Script) bool {
	for _, id := range provided {
		if id.Matches(s) {
			return true
		}
	}
	return false
}

// scriptGroups returns the lock groups of the inputs followed by the type
// groups of inputs and outputs, each in order of first appearance.
func scriptGroups(rtx *ResolvedTx) []*ScriptGroup {
	var (
		groups []*ScriptGroup
		locks  = make(map[wire.Hash]*ScriptGroup)
		types  = make(map[wire.Hash]*ScriptGroup)
	)
	for i, c := range rtx.Inputs {
		h := c.Lock.Hash()
		g, ok := locks[h]
		if !ok {
			g = &ScriptGroup{Script: c.Lock, IsLock: true, Tx: rtx}
			locks[h] = g
			groups = append(groups, g)
		}
		g.Inputs = append(g.Inputs, i)
	}

	typeGroup := func(s wire.Script) *ScriptGroup {
		h := s.Hash()
		g, ok := types[h]
		if !ok {
			g = &ScriptGroup{Script: s, Tx: rtx}
			types[h] = g
			groups = append(groups, g)
		}
		return g
	}
	for i, c := range rtx.Inputs {
		if c.Type != nil {
			g := typeGroup(*c.Type)
			g.Inputs = append(g.Inputs, i)
		}
	}
	for i, c := range rtx.Outputs {
		if c.Type != nil {
			g := typeGroup(*c.Type)
			g.Outputs = append(g.Outputs, i)
		}
	}

	return groups
}

// runScripts must be called with the lock held.
func (l *SimLedger) runScripts(rtx *ResolvedTx,
	provided []cellref.CodeID) error {

	for _, g := range scriptGroups(rtx) {
		if !scriptProvided(provided, g.Script) {
			return verifyErr("ScriptNotFound(code_hash: %v)",
				g.Script.CodeHash)
		}

		for _, r := range l.rules {
			if !r.matches(g.Script) {
				continue
			}
			if err := r.Verify(g); err != nil {
				log.Debugf("Script %s failed for tx %v: %v",
					r.Name, rtx.Hash, err)
				return verifyErr("Script(%v)", err)
			}
		}
	}

	return nil
}

// WaitForCommit returns once the transaction is committed. Accepted
// transactions are committed immediately.
func (l *SimLedger) WaitForCommit(ctx context.Context,
	txHash wire.Hash) error {

	if err := ctx.Err(); err != nil {
		return protoerr.New(protoerr.ErrNetwork,
			fmt.Sprintf("waiting for %v", txHash), err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.txs[txHash]; !ok {
		return protoerr.New(protoerr.ErrNetwork,
			fmt.Sprintf("waiting for %v", txHash), ErrUnknownTx)
	}
	return nil
}

// LiveCells returns the live cells locked by lock in creation order.
func (l *SimLedger) LiveCells(_ context.Context,
	lock wire.Script) ([]cellref.Ref, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	var refs []cellref.Ref
	kept := l.order[:0]
	for _, op := range l.order {
		cell, ok := l.live[op]
		if !ok {
			continue
		}
		kept = append(kept, op)
		if cell.Lock.Equal(lock) {
			refs = append(refs, cellref.NewRef(op, cell))
		}
	}
	l.order = kept

	return refs, nil
}

// LiveCell returns a live cell.
func (l *SimLedger) LiveCell(_ context.Context,
	op wire.OutPoint) (wire.Cell, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	cell, ok := l.live[op]
	if !ok {
		return wire.Cell{}, protoerr.New(protoerr.ErrMissingDependency,
			fmt.Sprintf("cell %v is %s", op, l.cellState(op)),
			ErrDeadCell)
	}
	return cell.Copy(), nil
}

// Transaction returns a committed transaction.
func (l *SimLedger) Transaction(txHash wire.Hash) (*wire.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[txHash]
	if !ok {
		return nil, false
	}
	return tx.Copy(), true
}
