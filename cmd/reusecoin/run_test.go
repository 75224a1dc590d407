// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/chain"
	"github.com/WilfredTA/ReuseCoin/codestore"
	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/runstore"
	"github.com/WilfredTA/ReuseCoin/signer"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/stretchr/testify/require"
)

var testCodes = map[string][]byte{
	defaultTokenDefCode:   []byte("token definition"),
	defaultWalletLockCode: []byte("wallet lock"),
	defaultScriptCode:     []byte("reusable script"),
	defaultTypeIDCode:     []byte("type id"),
}

type simEnv struct {
	ledger *chain.SimLedger
	keys   *signer.Keyring
	owner  wire.Script
}

func newSimEnv(t *testing.T) *simEnv {
	t.Helper()

	params := &netparams.SimNetParams
	keys := signer.NewKeyring(params)
	_, owner, err := keys.NewKey()
	require.NoError(t, err)

	ledger := chain.NewSimLedger(params,
		chain.TokenRule(wire.CKBHash(testCodes[defaultTokenDefCode])),
		chain.WalletRule(wire.CKBHash(testCodes[defaultWalletLockCode])),
		chain.PaymentRule(wire.CKBHash(testCodes[defaultScriptCode])),
		chain.TypeIDRule(wire.CKBHash(testCodes[defaultTypeIDCode])),
	)
	for i := 0; i < simnetFundingCells; i++ {
		ledger.Fund(owner, wire.CKBytes(simnetFundingCapacity))
	}

	return &simEnv{ledger: ledger, keys: keys, owner: owner}
}

func (e *simEnv) workflow(t *testing.T, tracker *cellref.Tracker,
	journal wallet.Journal) *wallet.Workflow {

	t.Helper()

	w, err := wallet.New(wallet.Config{
		Params:    &netparams.SimNetParams,
		Signer:    e.keys,
		Submitter: e.ledger,
		Cells:     e.ledger,
		Codes:     codestore.NewMemory(testCodes),
		Owner:     e.owner,
		Tracker:   tracker,
		Journal:   journal,
	})
	require.NoError(t, err)
	return w
}

func testPlan(uses int) *runPlan {
	return &runPlan{
		codes: codeNames{
			tokenDef:   defaultTokenDefCode,
			walletLock: defaultWalletLockCode,
			script:     defaultScriptCode,
			typeID:     defaultTypeIDCode,
		},
		issue: big.NewInt(defaultIssue),
		wallet: wallet.WalletParams{
			CKBRate:   defaultCKBRate,
			TokenRate: big.NewInt(defaultTokenRate),
			Deposit:   big.NewInt(defaultDeposit),
		},
		uses: uses,
	}
}

func TestAdvanceFullRun(t *testing.T) {
	t.Parallel()

	env := newSimEnv(t)
	w := env.workflow(t, nil, nil)

	_, recipient, err := signer.NewKeyring(&netparams.SimNetParams).NewKey()
	require.NoError(t, err)

	plan := testPlan(2)
	plan.typeIDData = []byte("first")
	plan.recipient = &recipient
	plan.transfer = big.NewInt(500)

	ctx := context.Background()
	s, err := advance(ctx, w, w.Start(), plan)
	require.NoError(t, err)
	require.Equal(t, wallet.PhaseScriptUsed, s.Phase)
	require.Equal(t, 2, s.Usage.Count)
	require.NotNil(t, s.TypeID)
	require.Equal(t, []byte("first"), s.TypeID.Ref.Cell.Data)
	require.Equal(t, "500", s.LastTransfer.Amount.String())

	// Two uses at the token rate moved the fee into the wallet.
	require.Equal(t, int64(defaultDeposit+2*defaultTokenRate),
		s.Wallet.Amount.Int64())

	// A plan that is already met only writes the type id cell again.
	plan.recipient = nil
	plan.typeIDData = []byte("second")
	again, err := advance(ctx, w, s, plan)
	require.NoError(t, err)
	require.Equal(t, 2, again.Usage.Count)
	require.Equal(t, []byte("second"), again.TypeID.Ref.Cell.Data)
	require.Equal(t, s.TypeID.ID, again.TypeID.ID)
}

func TestAdvanceResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSimEnv(t)

	store, err := runstore.Open(filepath.Join(t.TempDir(), runsDBName),
		time.Second)
	require.NoError(t, err)
	defer store.Close()

	// The fourth submission, creating the wallet, fails to reach the
	// node.
	var submits atomic.Int32
	env.ledger.SetSubmitHook(func(*wire.Transaction) error {
		if submits.Add(1) == 4 {
			return errors.New("node unreachable")
		}
		return nil
	})

	w := env.workflow(t, nil, store)
	stopped, err := advance(ctx, w, w.Start(), testPlan(1))
	require.ErrorIs(t, err, protoerr.ErrNetwork)
	require.Equal(t, wallet.PhaseWalletLockDeployed, stopped.Phase)
	require.Equal(t, 5, exitCode(err))

	// A new process picks the run up from the store.
	tracker := cellref.NewTracker()
	s, err := loadRun(store, tracker, stopped.RunID.String())
	require.NoError(t, err)
	require.Equal(t, stopped.Phase, s.Phase)
	require.ElementsMatch(t, w.Tracker().Spent(), tracker.Spent())

	resumed := env.workflow(t, tracker, store)
	s, err = advance(ctx, resumed, s, testPlan(1))
	require.NoError(t, err)
	require.Equal(t, wallet.PhaseScriptUsed, s.Phase)
	require.Equal(t, stopped.RunID, s.RunID)

	recorded, _, err := store.Load(s.RunID)
	require.NoError(t, err)
	require.Equal(t, wallet.PhaseScriptUsed, recorded.Phase)

	_, err = loadRun(store, cellref.NewTracker(), "not a uuid")
	require.ErrorIs(t, err, protoerr.ErrValidation)
}

// TestAdvanceUniqueResume runs a unique wallet whose script deployment
// fails once, and resumes it from the store.
func TestAdvanceUniqueResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newSimEnv(t)

	store, err := runstore.Open(filepath.Join(t.TempDir(), runsDBName),
		time.Second)
	require.NoError(t, err)
	defer store.Close()

	// The type id code is deployed ahead of the wallet, so the sixth
	// submission is the script deployment.
	var submits atomic.Int32
	env.ledger.SetSubmitHook(func(*wire.Transaction) error {
		if submits.Add(1) == 6 {
			return errors.New("node unreachable")
		}
		return nil
	})

	plan := testPlan(1)
	plan.wallet.Unique = true

	w := env.workflow(t, nil, store)
	stopped, err := advance(ctx, w, w.Start(), plan)
	require.ErrorIs(t, err, protoerr.ErrNetwork)
	require.Equal(t, wallet.PhaseWalletCreated, stopped.Phase)
	require.NotNil(t, stopped.TypeIDCode)
	require.True(t, stopped.ScriptAnchor.IsSome())

	tracker := cellref.NewTracker()
	s, err := loadRun(store, tracker, stopped.RunID.String())
	require.NoError(t, err)
	require.True(t, s.ScriptAnchor.IsSome())

	resumed := env.workflow(t, tracker, store)
	s, err = advance(ctx, resumed, s, plan)
	require.NoError(t, err)
	require.Equal(t, wallet.PhaseScriptUsed, s.Phase)
	require.True(t, s.ScriptAnchor.IsNone())

	bound := s.Wallet.Config.ReusableScriptTypeHash
	require.NotNil(t, bound)
	require.NotNil(t, s.Script.Ref.Cell.Type)
	require.Equal(t, *bound, s.Script.Ref.Cell.Type.Hash())
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  error
		want int
	}{
		{err: errors.New("plain"), want: 1},
		{err: protoerr.New(protoerr.ErrValidation, "", nil), want: 2},
		{
			err:  protoerr.New(protoerr.ErrMissingDependency, "", nil),
			want: 3,
		},
		{err: protoerr.New(protoerr.ErrDoubleSpend, "", nil), want: 4},
		{err: protoerr.New(protoerr.ErrNetwork, "", nil), want: 5},
		{err: protoerr.Rejected("", -31, nil), want: 6},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.want, exitCode(tc.err), tc.err.Error())
	}
}
