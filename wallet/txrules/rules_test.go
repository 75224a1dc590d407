// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"math"
	"math/big"
	"testing"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/stretchr/testify/require"
)

var tokenCode = wire.CKBHash([]byte("token definition"))

func lock(b byte) wire.Script {
	return wire.Script{
		CodeHash: wire.CKBHash([]byte("secp")),
		HashType: wire.HashTypeType,
		Args:     append(make([]byte, 19), b),
	}
}

func tokenCell(t *testing.T, owner wire.Script, gov wire.Script,
	amount int64) wire.Cell {

	t.Helper()

	args, err := layout.EncodeLockHashArgs(layout.GovernanceArgs, gov.Hash())
	require.NoError(t, err)
	data, err := layout.EncodeAmount(big.NewInt(amount))
	require.NoError(t, err)

	typ := wire.Script{
		CodeHash: tokenCode,
		HashType: wire.HashTypeData,
		Args:     args,
	}

	return wire.NewCell(wire.CKBytes(142), owner, &typ, data)
}

func TestMinCapacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		want wire.Capacity
	}{
		{"zero", 0, 8 * wire.ShannonsPerCKByte},
		{"one", 1, 9 * wire.ShannonsPerCKByte},
		{"large", 1 << 20, (8 + 1<<20) * wire.ShannonsPerCKByte},
		{"negative", -5, 8 * wire.ShannonsPerCKByte},
		{"saturated", math.MaxInt, wire.Capacity(math.MaxUint64)},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, test.want, MinCapacity(test.n))
		})
	}

	// Monotonic in the occupied size.
	for n := 0; n < 100; n++ {
		require.Less(t, MinCapacity(n), MinCapacity(n+1))
	}
}

func TestMinCellCapacity(t *testing.T) {
	t.Parallel()

	// A 500 byte code cell under a secp256k1 lock.
	code := wire.NewCell(0, lock(1), nil, make([]byte, 500))
	require.Equal(t, wire.CKBytes(8+53+500), MinOutputCapacity(code))

	// A token cell is the well known 142 CKB.
	tok := tokenCell(t, lock(1), lock(1), 1)
	require.Equal(t, wire.CKBytes(142), MinOutputCapacity(tok))
	require.NoError(t, CheckOutput(tok))

	tok.Capacity--
	err := CheckOutput(tok)
	require.ErrorIs(t, err, ErrCapacityTooLow)
	require.ErrorIs(t, err, protoerr.ErrValidation)
}

func TestFeeForSerializeSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, wire.Capacity(500), FeeForSerializeSize(1000, 500))
	require.Equal(t, wire.Capacity(1000), FeeForSerializeSize(1000, 0))
	require.Equal(t, wire.Capacity(0), FeeForSerializeSize(0, 500))
}

func TestCheckTokenConservation(t *testing.T) {
	t.Parallel()

	owner, holder := lock(1), lock(2)

	tests := []struct {
		name    string
		inputs  []wire.Cell
		outputs []wire.Cell
		wantErr error
	}{{
		name:    "balanced split",
		inputs:  []wire.Cell{tokenCell(t, holder, owner, 250000)},
		outputs: []wire.Cell{tokenCell(t, holder, owner, 1000), tokenCell(t, holder, owner, 249000)},
	}, {
		name:    "inflation without governance",
		inputs:  []wire.Cell{tokenCell(t, holder, owner, 100)},
		outputs: []wire.Cell{tokenCell(t, holder, owner, 101)},
		wantErr: ErrTokenNotConserved,
	}, {
		name:    "burn",
		inputs:  []wire.Cell{tokenCell(t, holder, owner, 100)},
		outputs: []wire.Cell{tokenCell(t, holder, owner, 99)},
		wantErr: ErrTokenNotConserved,
	}, {
		name:    "issuance by governance lock",
		inputs:  []wire.Cell{wire.NewCell(wire.CKBytes(1000), owner, nil, nil)},
		outputs: []wire.Cell{tokenCell(t, owner, owner, 250000)},
	}, {
		name:    "issuance under the wrong governance hash",
		inputs:  []wire.Cell{wire.NewCell(wire.CKBytes(1000), owner, nil, nil)},
		outputs: []wire.Cell{tokenCell(t, owner, holder, 250000)},
		wantErr: ErrTokenNotConserved,
	}, {
		name:    "no tokens",
		inputs:  []wire.Cell{wire.NewCell(wire.CKBytes(1000), owner, nil, nil)},
		outputs: []wire.Cell{wire.NewCell(wire.CKBytes(999), owner, nil, nil)},
	}}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := CheckTokenConservation(
				test.inputs, test.outputs, tokenCode,
			)
			if test.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, test.wantErr)
			require.ErrorIs(t, err, protoerr.ErrValidation)
		})
	}
}

func TestTokenBalancesBadData(t *testing.T) {
	t.Parallel()

	c := tokenCell(t, lock(1), lock(1), 5)
	c.Data = c.Data[:8]

	_, err := TokenBalances([]wire.Cell{c}, tokenCode)
	require.ErrorIs(t, err, layout.ErrSchemaMismatch)
}
