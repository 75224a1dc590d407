// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/signer"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wallet/txrules"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

var (
	testTokenCode  = []byte("simulated token definition code")
	testTypeIDCode = []byte("simulated type id code")
)

type simHarness struct {
	t      *testing.T
	params *netparams.Params
	ledger *SimLedger
	keys   *signer.Keyring
	lock   wire.Script
}

func newSimHarness(t *testing.T) *simHarness {
	t.Helper()

	params := &netparams.SimNetParams
	keys := signer.NewKeyring(params)
	_, lock, err := keys.NewKey()
	require.NoError(t, err)

	ledger := NewSimLedger(params,
		TokenRule(wire.CKBHash(testTokenCode)),
		TypeIDRule(wire.CKBHash(testTypeIDCode)),
	)
	ledger.Fund(lock, wire.CKBytes(100_000))

	return &simHarness{
		t:      t,
		params: params,
		ledger: ledger,
		keys:   keys,
		lock:   lock,
	}
}

func (h *simHarness) funding() txauthor.InputSource {
	return func(target wire.Capacity) (wire.Capacity,
		[]cellref.InputRef, error) {

		refs, err := h.ledger.LiveCells(context.Background(), h.lock)
		if err != nil {
			return 0, nil, err
		}

		var (
			total  wire.Capacity
			inputs []cellref.InputRef
		)
		for _, r := range refs {
			if total >= target {
				break
			}
			if !r.Cell.IsPlain() {
				continue
			}
			inputs = append(inputs, r.AsInput())
			total += r.Cell.Capacity
		}
		return total, inputs, nil
	}
}

func (h *simHarness) intent(outputs ...wire.Cell) *txauthor.Intent {
	return &txauthor.Intent{
		Outputs:    outputs,
		Deps:       []cellref.DepRef{h.params.Secp256k1Dep()},
		Funding:    h.funding(),
		ChangeLock: &h.lock,
		FeeRate:    txrules.DefaultFeeRate,
	}
}

func (h *simHarness) build(intent *txauthor.Intent) *wire.Transaction {
	h.t.Helper()

	skel, err := txauthor.Build(intent)
	require.NoError(h.t, err)
	tx, err := h.keys.Sign(context.Background(), skel)
	require.NoError(h.t, err)
	return tx
}

func (h *simHarness) submit(intent *txauthor.Intent) (*wire.Transaction,
	error) {

	h.t.Helper()

	tx := h.build(intent)
	_, err := h.ledger.Submit(context.Background(), tx)
	return tx, err
}

// sized returns c with exactly its minimum capacity.
func sized(c wire.Cell) wire.Cell {
	c.Capacity = txrules.MinOutputCapacity(c)
	return c
}

func (h *simHarness) deploy(code []byte) cellref.DepRef {
	h.t.Helper()

	tx, err := h.submit(h.intent(sized(wire.NewCell(0, h.lock, nil, code))))
	require.NoError(h.t, err)

	ref := cellref.NewRef(tx.OutPoint(0), tx.Output(0))
	dep, err := ref.AsDep(wire.DepTypeCode)
	require.NoError(h.t, err)
	return dep
}

func requireReason(t *testing.T, err error, reason int64) {
	t.Helper()

	require.ErrorIs(t, err, protoerr.ErrConsensusRejected)
	got, ok := protoerr.ReasonCode(err)
	require.True(t, ok)
	require.Equal(t, reason, got)
}

func TestSimLedgerCommit(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	ctx := context.Background()

	out := wire.NewCell(wire.CKBytes(1000), h.lock, nil, nil)
	tx, err := h.submit(h.intent(out))
	require.NoError(t, err)
	require.NoError(t, h.ledger.WaitForCommit(ctx, tx.Hash()))

	got, ok := h.ledger.Transaction(tx.Hash())
	require.True(t, ok)
	require.Equal(t, tx.Hash(), got.Hash())

	cell, err := h.ledger.LiveCell(ctx, tx.OutPoint(0))
	require.NoError(t, err)
	require.Equal(t, wire.CKBytes(1000), cell.Capacity)

	refs, err := h.ledger.LiveCells(ctx, h.lock)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, tx.OutPoint(0), refs[0].OutPoint)
	require.Equal(t, tx.OutPoint(1), refs[1].OutPoint)

	// Resubmitting is accepted without effect.
	h2, err := h.ledger.Submit(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), h2)

	// Spending the funding cell again fails to resolve.
	spent := tx.Inputs[0].PreviousOutput
	_, err = h.ledger.LiveCell(ctx, spent)
	require.ErrorIs(t, err, ErrDeadCell)

	again := h.intent(wire.NewCell(wire.CKBytes(100), h.lock, nil, nil))
	again.Funding = nil
	again.Inputs = []cellref.InputRef{{
		OutPoint: spent,
		Cell:     wire.NewCell(wire.CKBytes(100_000), h.lock, nil, nil),
	}}
	_, err = h.submit(again)
	requireReason(t, err, CodeTxFailedToResolve)
	require.ErrorIs(t, err, ErrDeadCell)
}

func TestSimLedgerUnknownTx(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	err := h.ledger.WaitForCommit(context.Background(),
		wire.CKBHash([]byte("nope")))
	require.ErrorIs(t, err, protoerr.ErrNetwork)
	require.ErrorIs(t, err, ErrUnknownTx)
}

func TestSimLedgerSignatures(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	ctx := context.Background()
	out := wire.NewCell(wire.CKBytes(1000), h.lock, nil, nil)

	skel, err := txauthor.Build(h.intent(out))
	require.NoError(t, err)

	// Unsigned.
	_, err = h.ledger.Submit(ctx, skel.Tx)
	requireReason(t, err, ExitEncoding)

	// Signed by a key that does not own the lock.
	other := signer.NewKeyring(h.params)
	priv, _, err := other.NewKey()
	require.NoError(t, err)
	forged := skel.Copy()
	for i := range forged.InputCells {
		forged.InputCells[i].Lock = h.params.Secp256k1Lock(
			signer.PubkeyHash(priv.PubKey()),
		)
	}
	tx, err := other.Sign(ctx, forged)
	require.NoError(t, err)
	_, err = h.ledger.Submit(ctx, tx)
	requireReason(t, err, ExitPubkeyHash)

	// Correctly signed.
	tx, err = h.keys.Sign(ctx, skel)
	require.NoError(t, err)
	_, err = h.ledger.Submit(ctx, tx)
	require.NoError(t, err)
}

func TestSimLedgerTokenGovernance(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	tokenDep := h.deploy(testTokenCode)

	amount, err := layout.EncodeAmount(big.NewInt(250_000))
	require.NoError(t, err)

	tokenCell := func(governance wire.Script) wire.Cell {
		gov := governance.Hash()
		typ := wire.Script{
			CodeHash: wire.CKBHash(testTokenCode),
			HashType: wire.HashTypeData,
			Args:     gov[:],
		}
		return sized(wire.NewCell(0, h.lock, &typ, amount))
	}

	// Minting under someone else's governance lock is refused.
	stranger := h.params.Secp256k1Lock([wire.Blake160Size]byte{9})
	intent := h.intent(tokenCell(stranger))
	intent.Deps = append(intent.Deps, tokenDep)
	_, err = h.submit(intent)
	requireReason(t, err, ExitTokenAmount)

	// The governance lock's owner may mint.
	intent = h.intent(tokenCell(h.lock))
	intent.Deps = append(intent.Deps, tokenDep)
	_, err = h.submit(intent)
	require.NoError(t, err)
}

func TestSimLedgerTypeID(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	typeIDDep := h.deploy(testTypeIDCode)

	typ := wire.Script{
		CodeHash: wire.CKBHash(testTypeIDCode),
		HashType: wire.HashTypeData,
		Args:     make([]byte, wire.HashSize),
	}
	cell := sized(wire.NewCell(0, h.lock, &typ, []byte("v1")))

	// Zero args are not the identity of this transaction.
	intent := h.intent(cell)
	intent.Deps = append(intent.Deps, typeIDDep)
	_, err := h.submit(intent)
	requireReason(t, err, ExitTypeIDViolation)

	intent = h.intent(cell)
	intent.Deps = append(intent.Deps, typeIDDep)
	intent.TypeIDOutput = fn.Some(0)
	tx, err := h.submit(intent)
	require.NoError(t, err)

	want := txauthor.TypeIDArgs(tx.Inputs[0].PreviousOutput, 0)
	require.Equal(t, want[:], tx.Outputs[0].Type.Args)
}

func TestSimLedgerScriptNotFound(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	codeDep := h.deploy([]byte("unrelated code"))

	// Claim the code dep provides the default lock so assembly succeeds.
	codeDep.Provides = append(codeDep.Provides,
		h.params.Secp256k1Dep().Provides...)

	intent := h.intent(wire.NewCell(wire.CKBytes(100), h.lock, nil, nil))
	intent.Deps = []cellref.DepRef{codeDep}
	_, err := h.submit(intent)
	requireReason(t, err, CodeTxFailedToVerify)
}

func TestSimLedgerMinFeeRate(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	h.ledger.SetMinFeeRate(txrules.DefaultFeeRate * 10)

	_, err := h.submit(h.intent(
		wire.NewCell(wire.CKBytes(100), h.lock, nil, nil),
	))
	requireReason(t, err, CodePoolRejectedMinFeeRate)
}

func TestSimLedgerCapacity(t *testing.T) {
	t.Parallel()

	h := newSimHarness(t)
	tx := h.build(h.intent(wire.NewCell(wire.CKBytes(100), h.lock, nil, nil)))

	// Growing an output past the inputs.
	tx.Outputs[0].Capacity = wire.CKBytes(1_000_000)
	_, err := h.ledger.Submit(context.Background(), tx)
	requireReason(t, err, CodeTxFailedToVerify)

	// Shrinking an output below its occupied size.
	tx.Outputs[0].Capacity = wire.CKBytes(10)
	_, err = h.ledger.Submit(context.Background(), tx)
	requireReason(t, err, CodeTxFailedToVerify)
}
