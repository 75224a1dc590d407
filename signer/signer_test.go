// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package signer

import (
	"context"
	"testing"

	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/stretchr/testify/require"
)

func skeletonFor(locks ...wire.Script) *txauthor.Skeleton {
	tx := wire.NewTransaction()
	skel := &txauthor.Skeleton{Tx: tx, ChangeIndex: -1}
	for i, lock := range locks {
		tx.AddInput(wire.NewOutPoint(wire.CKBHash([]byte{byte(i)}), 0))
		skel.InputCells = append(skel.InputCells,
			wire.NewCell(wire.CKBytes(100), lock, nil, nil))
	}
	tx.AddOutput(wire.NewCell(wire.CKBytes(61), locks[0], nil, nil))
	return skel
}

func TestSignGroups(t *testing.T) {
	t.Parallel()

	params := &netparams.SimNetParams
	ring := NewKeyring(params)
	priv, lock, err := ring.NewKey()
	require.NoError(t, err)
	require.Equal(t, PubkeyHash(priv.PubKey()), [20]byte(lock.Args))

	foreign := params.Secp256k1Lock([20]byte{0xee})
	skel := skeletonFor(lock, lock, foreign)

	signed, err := ring.Sign(context.Background(), skel)
	require.NoError(t, err)

	// Signing only adds witnesses.
	require.Equal(t, skel.Tx.Hash(), signed.Hash())
	require.Nil(t, skel.Tx.Witnesses)
	require.Len(t, signed.Witnesses, 3)
	require.Empty(t, signed.Witnesses[1])
	require.Empty(t, signed.Witnesses[2])

	args, err := wire.DeserializeWitnessArgs(signed.Witnesses[0])
	require.NoError(t, err)
	require.Len(t, args.Lock, 65)

	msg := SighashAll(signed.Hash(), signed.Witnesses, 3, []int{0, 1},
		wire.WitnessArgs{})
	pub, err := RecoverPubKey(args.Lock, msg)
	require.NoError(t, err)
	require.True(t, pub.IsEqual(priv.PubKey()))
}

func TestSignKeepsWitnessTypeFields(t *testing.T) {
	t.Parallel()

	ring := NewKeyring(&netparams.SimNetParams)
	priv, lock, err := ring.NewKey()
	require.NoError(t, err)

	skel := skeletonFor(lock)
	skel.Tx.Witnesses = [][]byte{
		wire.WitnessArgs{OutputType: []byte{1, 2}}.Serialize(),
	}

	signed, err := ring.Sign(context.Background(), skel)
	require.NoError(t, err)

	args, err := wire.DeserializeWitnessArgs(signed.Witnesses[0])
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, args.OutputType)

	msg := SighashAll(signed.Hash(), signed.Witnesses, 1, []int{0}, args)
	pub, err := RecoverPubKey(args.Lock, msg)
	require.NoError(t, err)
	require.True(t, pub.IsEqual(priv.PubKey()))
}

func TestImportHex(t *testing.T) {
	t.Parallel()

	ring := NewKeyring(&netparams.TestNetParams)
	lock, err := ring.ImportHex(
		"0x0000000000000000000000000000000000000000000000000000000000000001",
	)
	require.NoError(t, err)
	require.True(t, netparams.TestNetParams.IsSecp256k1Lock(lock))

	_, err = ring.ImportHex("0x01")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ring.ImportHex("zz")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestSignInputMismatch(t *testing.T) {
	t.Parallel()

	ring := NewKeyring(&netparams.SimNetParams)
	skel := skeletonFor(netparams.SimNetParams.Secp256k1Lock([20]byte{}))
	skel.InputCells = nil

	_, err := ring.Sign(context.Background(), skel)
	require.ErrorIs(t, err, ErrInputMismatch)
}

func TestSignRecoverable(t *testing.T) {
	t.Parallel()

	priv, lock, err := NewKeyring(&netparams.SimNetParams).NewKey()
	require.NoError(t, err)

	for _, data := range [][]byte{nil, []byte("a"), lock.Args} {
		msg := wire.CKBHash(data)
		sig := signRecoverable(priv, msg)
		require.Len(t, sig, 65)
		require.Less(t, sig[64], byte(4))

		pub, err := RecoverPubKey(sig, msg)
		require.NoError(t, err)
		require.True(t, pub.IsEqual(priv.PubKey()))
	}

	_, err = RecoverPubKey(make([]byte, 64), wire.CKBHash(nil))
	require.Error(t, err)
}
