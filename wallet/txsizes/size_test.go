// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsizes

import (
	"testing"

	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/stretchr/testify/require"
)

func secpLock() wire.Script {
	return wire.Script{
		CodeHash: wire.CKBHash([]byte("secp")),
		HashType: wire.HashTypeType,
		Args:     make([]byte, wire.Blake160Size),
	}
}

func TestConstants(t *testing.T) {
	t.Parallel()

	require.Equal(t, 53, Secp256k1LockSize)
	require.Equal(t, 65, TokenTypeSize)
	require.Equal(t, Secp256k1LockSize, ScriptSize(secpLock()))

	w := wire.WitnessArgs{Lock: make([]byte, Secp256k1SignatureSize)}
	require.Len(t, w.Serialize(), Secp256k1WitnessSize)
}

func TestOccupiedSize(t *testing.T) {
	t.Parallel()

	typ := wire.Script{Args: make([]byte, wire.HashSize)}
	tests := []struct {
		name string
		cell wire.Cell
		want int
	}{{
		name: "plain",
		cell: wire.NewCell(0, secpLock(), nil, nil),
		want: 8 + 53,
	}, {
		name: "token",
		cell: wire.NewCell(0, secpLock(), &typ, make([]byte, 16)),
		want: 8 + 53 + 65 + 16,
	}, {
		name: "code",
		cell: wire.NewCell(0, secpLock(), nil, make([]byte, 500)),
		want: 8 + 53 + 500,
	}}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, test.want, OccupiedSize(test.cell))
		})
	}
}

func TestEstimateSerializeSize(t *testing.T) {
	t.Parallel()

	tx := wire.NewTransaction()
	tx.AddInput(wire.NewOutPoint(wire.CKBHash([]byte("a")), 0))
	tx.AddOutput(wire.NewCell(wire.CKBytes(61), secpLock(), nil, nil))

	unsigned := EstimateSerializeSize(tx, 0)
	signed := EstimateSerializeSize(tx, 1)
	require.Equal(t, Secp256k1WitnessSize, signed-unsigned)

	// Groups beyond the input count have no slot to occupy.
	require.Equal(t, signed, EstimateSerializeSize(tx, 2))

	// An extra input adds its 44 byte encoding plus an empty witness
	// entry: a 4 byte offset and a 4 byte length.
	tx.AddInput(wire.NewOutPoint(wire.CKBHash([]byte("b")), 0))
	require.Equal(t, signed+44+8, EstimateSerializeSize(tx, 1))

	// The estimate never touches the caller's witnesses.
	require.Nil(t, tx.Witnesses)
}
