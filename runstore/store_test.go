// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package runstore

import (
	"bytes"
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/stretchr/testify/require"
)

func testScript(b byte, hashType wire.HashType, args int) wire.Script {
	return wire.Script{
		CodeHash: wire.Hash{b},
		HashType: hashType,
		Args:     bytes.Repeat([]byte{b}, args),
	}
}

func testRef(b byte, typ *wire.Script, data []byte) cellref.Ref {
	lock := testScript(b, wire.HashTypeType, 20)
	cell := wire.NewCell(wire.CKBytes(uint64(b)*100), lock, typ, data)
	return cellref.NewRef(wire.NewOutPoint(wire.Hash{b, b}, uint32(b)), cell)
}

func testCode(b byte) *wallet.CodeCell {
	code := bytes.Repeat([]byte{b}, 64)
	return &wallet.CodeCell{
		DataHash: wire.CKBHash(code),
		Ref:      testRef(b, nil, code),
	}
}

// fullState returns a state with every phase output set.
func fullState(t *testing.T, unique bool) wallet.State {
	t.Helper()

	tokenType := testCode(1).Script(bytes.Repeat([]byte{9}, 32))
	amount := func(v int64) []byte {
		b, err := layout.EncodeAmount(big.NewInt(v))
		require.NoError(t, err)
		return b
	}

	cfg := layout.WalletConfig{
		OwnerPubkeyHash: [wire.Blake160Size]byte{7},
		CKBRate:         100_000_000,
		TokenRate:       big.NewInt(100),
		TokenTypeHash:   tokenType.Hash(),
	}
	if unique {
		h := wire.Hash{0xaa}
		cfg.ReusableScriptTypeHash = &h
	}
	walletLock := testCode(3).Script(bytes.Repeat([]byte{3}, 76))
	if unique {
		walletLock = testCode(3).Script(bytes.Repeat([]byte{3}, 108))
	}
	usageType := testCode(5).Script(bytes.Repeat([]byte{5}, 32))
	typeIDType := testCode(6).Script(bytes.Repeat([]byte{6}, 32))

	s := wallet.NewState(uuid.New())
	s.Phase = wallet.PhaseScriptUsed
	s.TokenDef = testCode(1)
	s.Token = &wallet.Token{
		TypeScript: tokenType,
		Issued:     testRef(2, &tokenType, amount(250_000)),
		Amount:     big.NewInt(250_000),
	}
	s.WalletLock = testCode(3)
	s.Wallet = &wallet.Wallet{
		Config: cfg,
		Lock:   walletLock,
		Ref:    testRef(4, &tokenType, amount(1_200)),
		Amount: big.NewInt(1_200),
	}
	s.Script = &wallet.ReusableScript{
		CodeCell:            *testCode(5),
		BoundWalletLockHash: walletLock.Hash(),
	}
	s.Usage = &wallet.Usage{Proof: testRef(7, &usageType, nil), Count: 2}
	s.TokenCell = fn.Some(testRef(8, &tokenType, amount(248_800)))
	s.TypeIDCode = testCode(6)
	s.TypeID = &wallet.TypeIDCell{
		ID:      wire.Hash{6, 6},
		Ref:     testRef(10, &typeIDType, []byte("v2")),
		Version: 1,
	}
	recipient := testScript(11, wire.HashTypeType, 20)
	s.LastTransfer = &wallet.Transfer{
		Recipient: recipient,
		Sent:      testRef(11, &tokenType, amount(0)),
		Amount:    big.NewInt(0),
	}

	return s
}

func TestStateEncoding(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		state func(t *testing.T) wallet.State
	}{
		{
			name: "fresh run",
			state: func(t *testing.T) wallet.State {
				return wallet.NewState(uuid.New())
			},
		},
		{
			name: "all outputs",
			state: func(t *testing.T) wallet.State {
				return fullState(t, false)
			},
		},
		{
			name: "unique wallet",
			state: func(t *testing.T) wallet.State {
				return fullState(t, true)
			},
		},
		{
			name: "unique wallet holding its anchor",
			state: func(t *testing.T) wallet.State {
				s := fullState(t, true)
				s.Phase = wallet.PhaseWalletCreated
				s.Script = nil
				s.Usage = nil
				s.ScriptAnchor = fn.Some(testRef(12, nil, nil))
				return s
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := tc.state(t)
			b, err := encodeState(s)
			require.NoError(t, err)

			got, err := decodeState(b)
			require.NoError(t, err)

			// Re-encoding the decoded state must reproduce the
			// original bytes exactly.
			again, err := encodeState(got)
			require.NoError(t, err)
			require.Equal(t, b, again)

			require.Equal(t, s.RunID, got.RunID)
			require.Equal(t, s.Phase, got.Phase)
			require.Equal(t, s.TokenCell.IsSome(),
				got.TokenCell.IsSome())
			require.Equal(t, s.ScriptAnchor.IsSome(),
				got.ScriptAnchor.IsSome())
			s.ScriptAnchor.WhenSome(func(want cellref.Ref) {
				anchor := got.ScriptAnchor.UnwrapOr(cellref.Ref{})
				require.Equal(t, want.OutPoint, anchor.OutPoint)
				require.True(t, want.Cell.Lock.Equal(anchor.Cell.Lock))
			})
			if s.Wallet == nil {
				require.Nil(t, got.TokenDef)
				require.Nil(t, got.Wallet)
				require.Nil(t, got.LastTransfer)
				return
			}

			require.Equal(t, s.TokenDef.DataHash, got.TokenDef.DataHash)
			require.Equal(t, s.Token.Amount.String(),
				got.Token.Amount.String())
			require.True(t, s.Token.TypeScript.Equal(
				got.Token.TypeScript))
			require.Equal(t, s.Wallet.Config.TokenRate.String(),
				got.Wallet.Config.TokenRate.String())
			require.Equal(t, s.Wallet.Config.ReusableScriptTypeHash,
				got.Wallet.Config.ReusableScriptTypeHash)
			require.Equal(t, s.Wallet.Ref.OutPoint,
				got.Wallet.Ref.OutPoint)
			require.Equal(t, s.Wallet.Ref.Cell.Data,
				got.Wallet.Ref.Cell.Data)
			if s.Script != nil {
				require.Equal(t, s.Script.BoundWalletLockHash,
					got.Script.BoundWalletLockHash)
				require.Equal(t, 2, got.Usage.Count)
				require.Nil(t, got.Usage.Proof.Cell.Data)
			} else {
				require.Nil(t, got.Script)
				require.Nil(t, got.Usage)
			}
			require.Equal(t, 1, got.TypeID.Version)
			require.Equal(t, []byte("v2"), got.TypeID.Ref.Cell.Data)
			require.Equal(t, "0", got.LastTransfer.Amount.String())

			held := got.TokenCell.UnwrapOr(cellref.Ref{})
			require.Equal(t, s.TokenCell.UnwrapOr(cellref.Ref{}).OutPoint,
				held.OutPoint)
			require.Equal(t, s.TokenCell.UnwrapOr(cellref.Ref{}).Cell.Capacity,
				held.Cell.Capacity)
		})
	}
}

func TestDecodeCorrupt(t *testing.T) {
	t.Parallel()

	phase := uint8(wallet.PhaseInit)
	noRunID, err := encodeStream(
		tlv.MakePrimitiveRecord(typeStatePhase, &phase),
	)
	require.NoError(t, err)

	runID := make([]byte, 16)
	badPhase := uint8(200)
	unknownPhase, err := encodeStream(
		tlv.MakePrimitiveRecord(typeStateRunID, &runID),
		tlv.MakePrimitiveRecord(typeStatePhase, &badPhase),
	)
	require.NoError(t, err)

	testCases := []struct {
		name string
		b    []byte
	}{
		{name: "truncated", b: []byte{0x01}},
		{name: "missing run id", b: noRunID},
		{name: "unknown phase", b: unknownPhase},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeState(tc.b)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}

	_, err = decodeSpent(make([]byte, identitySize+1))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestSpentEncoding(t *testing.T) {
	t.Parallel()

	ops := []wire.OutPoint{
		wire.NewOutPoint(wire.Hash{1}, 0),
		wire.NewOutPoint(wire.Hash{2}, 7),
	}
	got, err := decodeSpent(encodeSpent(ops))
	require.NoError(t, err)
	require.Equal(t, ops, got)

	got, err = decodeSpent(encodeSpent(nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(path, time.Second)
	require.NoError(t, err)
	return s
}

func TestStoreRecordLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs", "runs.db")
	s := openTestStore(t, path)

	fresh := wallet.NewState(uuid.New())
	require.NoError(t, s.Record(ctx, fresh, nil))

	full := fullState(t, false)
	spent := []wire.OutPoint{
		full.TokenDef.Ref.OutPoint,
		full.Token.Issued.OutPoint,
	}

	// A later record replaces the earlier one.
	require.NoError(t, s.Record(ctx, wallet.NewState(full.RunID), nil))
	require.NoError(t, s.Record(ctx, full, spent))

	got, gotSpent, err := s.Load(full.RunID)
	require.NoError(t, err)
	require.Equal(t, wallet.PhaseScriptUsed, got.Phase)
	require.Equal(t, spent, gotSpent)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []uuid.UUID{runs[0].ID, runs[1].ID}
	require.ElementsMatch(t, []uuid.UUID{fresh.RunID, full.RunID}, ids)
	require.False(t, runs[0].Updated.IsZero())

	// Records survive a reopen.
	require.NoError(t, s.Close())
	s = openTestStore(t, path)
	defer s.Close()

	got, _, err = s.Load(full.RunID)
	require.NoError(t, err)
	require.Equal(t, full.Usage.Count, got.Usage.Count)

	require.NoError(t, s.Delete(fresh.RunID))
	_, _, err = s.Load(fresh.RunID)
	require.ErrorIs(t, err, ErrRunNotFound)
	require.ErrorIs(t, s.Delete(fresh.RunID), ErrRunNotFound)

	runs, err = s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, wallet.PhaseScriptUsed, runs[0].Phase)
}

func TestStoreRecordCanceled(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, filepath.Join(t.TempDir(), "runs.db"))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := wallet.NewState(uuid.New())
	require.ErrorIs(t, s.Record(ctx, state, nil), context.Canceled)

	_, _, err := s.Load(state.RunID)
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestStoreNewerVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	s := openTestStore(t, path)

	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		v := make([]byte, 4)
		byteOrder.PutUint32(v, LatestVersion+1)
		return tx.ReadWriteBucket(bucketRuns).Put(rootVersion, v)
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, time.Second)
	require.ErrorIs(t, err, ErrUnknownVersion)
}

func TestOpenReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.db")

	// The first open creates the file and its directories.
	s := openTestStore(t, path)
	state := wallet.NewState(uuid.New())
	require.NoError(t, s.Record(context.Background(), state, nil))
	require.NoError(t, s.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)

	// The second open finds the existing file and keeps its runs.
	s = openTestStore(t, path)
	defer s.Close()

	got, spent, err := s.Load(state.RunID)
	require.NoError(t, err)
	require.Equal(t, state.RunID, got.RunID)
	require.Equal(t, wallet.PhaseInit, got.Phase)
	require.Empty(t, spent)
}
