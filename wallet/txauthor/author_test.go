// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"testing"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/txrules"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

var (
	secpCode = wire.CKBHash([]byte("secp256k1_blake160"))

	secpDep = cellref.NewDepGroupRef(
		wire.NewOutPoint(wire.CKBHash([]byte("genesis")), 0),
		cellref.CodeID{Hash: secpCode, HashType: wire.HashTypeType},
	)
)

func secpLock(b byte) wire.Script {
	return wire.Script{
		CodeHash: secpCode,
		HashType: wire.HashTypeType,
		Args:     append(make([]byte, 19), b),
	}
}

// codeDep deploys code under an arbitrary out point and returns its dep.
func codeDep(t *testing.T, name string) (cellref.DepRef, wire.Hash) {
	t.Helper()

	cell := wire.NewCell(wire.CKBytes(1000), secpLock(0), nil, []byte(name))
	ref := cellref.NewRef(wire.NewOutPoint(wire.CKBHash([]byte(name)), 0),
		cell)
	dep, err := ref.AsDep(wire.DepTypeCode)
	require.NoError(t, err)

	return dep, cell.DataHash()
}

// plainInput returns a plain secp256k1 cell of the given capacity.
func plainInput(name string, capacity wire.Capacity,
	lock wire.Script) cellref.InputRef {

	return cellref.InputRef{
		OutPoint: wire.NewOutPoint(wire.CKBHash([]byte(name)), 0),
		Cell:     wire.NewCell(capacity, lock, nil, nil),
	}
}

// listSource returns an InputSource selecting from cells in order and
// recording every target it was asked for.
func listSource(cells []cellref.InputRef, targets *[]wire.Capacity) InputSource {
	return func(target wire.Capacity) (wire.Capacity, []cellref.InputRef,
		error) {

		*targets = append(*targets, target)

		var (
			total    wire.Capacity
			selected []cellref.InputRef
		)
		for _, c := range cells {
			if total >= target {
				break
			}
			total += c.Cell.Capacity
			selected = append(selected, c)
		}
		return total, selected, nil
	}
}

func TestBuildDedupsDepsAndKeepsOrder(t *testing.T) {
	t.Parallel()

	tokenDep, tokenCode := codeDep(t, "token")
	lockDep, _ := codeDep(t, "wallet lock")

	typ := wire.Script{
		CodeHash: tokenCode,
		HashType: wire.HashTypeData,
		Args:     make([]byte, 32),
	}
	outputs := []wire.Cell{
		wire.NewCell(wire.CKBytes(142), secpLock(1), &typ, make([]byte, 16)),
		wire.NewCell(wire.CKBytes(61), secpLock(2), nil, nil),
	}
	inputs := []cellref.InputRef{
		plainInput("b", wire.CKBytes(300), secpLock(1)),
		plainInput("a", wire.CKBytes(300), secpLock(1)),
	}
	change := secpLock(9)

	skel, err := Build(&Intent{
		Outputs:    outputs,
		Deps:       []cellref.DepRef{tokenDep, secpDep, tokenDep, lockDep, secpDep},
		Inputs:     inputs,
		ChangeLock: &change,
		FeeRate:    txrules.DefaultFeeRate,
	})
	require.NoError(t, err)

	tx := skel.Tx
	require.Equal(t, []wire.CellDep{tokenDep.Dep, secpDep.Dep, lockDep.Dep},
		tx.CellDeps)
	require.Equal(t, inputs[0].OutPoint, tx.Inputs[0].PreviousOutput)
	require.Equal(t, inputs[1].OutPoint, tx.Inputs[1].PreviousOutput)

	// Outputs keep their positions, change goes last.
	require.Len(t, tx.Outputs, 3)
	require.Equal(t, 2, skel.ChangeIndex)
	require.True(t, tx.Outputs[0].Type.Equal(typ))
	require.True(t, tx.Outputs[2].Lock.Equal(change))

	// Capacity is conserved: inputs pay outputs, change and fee.
	require.Equal(t, wire.CKBytes(600), skel.TotalInput)
	require.Equal(t,
		skel.TotalInput-wire.CKBytes(142+61)-skel.Fee,
		tx.Outputs[2].Capacity,
	)
	require.Greater(t, skel.Fee, wire.Capacity(0))
	require.Len(t, skel.InputCells, 2)
}

func TestBuildExactInputsNeedNoChange(t *testing.T) {
	t.Parallel()

	skel, err := Build(&Intent{
		Outputs: []wire.Cell{
			wire.NewCell(wire.CKBytes(61), secpLock(2), nil, nil),
		},
		Deps: []cellref.DepRef{secpDep},
		Inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(61), secpLock(1)),
		},
	})
	require.NoError(t, err)
	require.Equal(t, -1, skel.ChangeIndex)
	require.Len(t, skel.Tx.Outputs, 1)
	require.Zero(t, skel.Fee)
}

func TestBuildFundingSource(t *testing.T) {
	t.Parallel()

	var targets []wire.Capacity
	funding := []cellref.InputRef{
		plainInput("f1", wire.CKBytes(100), secpLock(1)),
		plainInput("f2", wire.CKBytes(100), secpLock(1)),
		plainInput("f3", wire.CKBytes(100), secpLock(1)),
	}
	fixed := plainInput("fixed", wire.CKBytes(100), secpLock(1))
	change := secpLock(1)

	skel, err := Build(&Intent{
		Outputs: []wire.Cell{
			wire.NewCell(wire.CKBytes(200), secpLock(2), nil, nil),
		},
		Deps:       []cellref.DepRef{secpDep},
		Inputs:     []cellref.InputRef{fixed},
		Funding:    listSource(funding, &targets),
		ChangeLock: &change,
		FeeRate:    txrules.DefaultFeeRate,
	})
	require.NoError(t, err)
	require.NotEmpty(t, targets)

	// Fixed inputs come first, funding after in source order.
	tx := skel.Tx
	require.Equal(t, fixed.OutPoint, tx.Inputs[0].PreviousOutput)
	require.Equal(t, funding[0].OutPoint, tx.Inputs[1].PreviousOutput)
	require.Equal(t, funding[1].OutPoint, tx.Inputs[2].PreviousOutput)

	// 300 in, 200 out: at least the 61 CKB change cell survives.
	require.Equal(t, 1, skel.ChangeIndex)
	require.GreaterOrEqual(t, tx.Outputs[1].Capacity, wire.CKBytes(61))
}

func TestBuildInsufficientCapacity(t *testing.T) {
	t.Parallel()

	change := secpLock(1)
	out := wire.NewCell(wire.CKBytes(100), secpLock(2), nil, nil)

	tests := []struct {
		name   string
		inputs []cellref.InputRef
	}{{
		name: "inputs below outputs",
		inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(99), secpLock(1)),
		},
	}, {
		name: "inputs cover outputs but not the fee",
		inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(100), secpLock(1)),
		},
	}}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := Build(&Intent{
				Outputs:    []wire.Cell{out},
				Deps:       []cellref.DepRef{secpDep},
				Inputs:     test.inputs,
				ChangeLock: &change,
				FeeRate:    txrules.DefaultFeeRate,
			})
			require.ErrorIs(t, err, ErrInsufficientCapacity)
			require.ErrorIs(t, err, protoerr.ErrValidation)
		})
	}

	// An exhausted funding source fails the same way.
	var targets []wire.Capacity
	_, err := Build(&Intent{
		Outputs: []wire.Cell{out},
		Deps:    []cellref.DepRef{secpDep},
		Funding: listSource([]cellref.InputRef{
			plainInput("a", wire.CKBytes(50), secpLock(1)),
		}, &targets),
		ChangeLock: &change,
		FeeRate:    txrules.DefaultFeeRate,
	})
	require.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestBuildSurplusBelowMinimumChange(t *testing.T) {
	t.Parallel()

	change := secpLock(1)
	out := wire.NewCell(wire.CKBytes(100), secpLock(2), nil, nil)
	input := plainInput("a", wire.CKBytes(150), secpLock(1))

	tests := []struct {
		name   string
		intent func(targets *[]wire.Capacity) *Intent
	}{{
		name: "fixed inputs",
		intent: func(*[]wire.Capacity) *Intent {
			return &Intent{
				Inputs: []cellref.InputRef{input},
			}
		},
	}, {
		name: "exhausted funding source",
		intent: func(targets *[]wire.Capacity) *Intent {
			return &Intent{
				Funding: listSource(
					[]cellref.InputRef{input}, targets,
				),
			}
		},
	}}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var targets []wire.Capacity
			intent := test.intent(&targets)
			intent.Outputs = []wire.Cell{out}
			intent.Deps = []cellref.DepRef{secpDep}
			intent.ChangeLock = &change
			intent.FeeRate = txrules.DefaultFeeRate

			// 150 in, 100 out: the 50 CKB surplus can not hold a
			// 61 CKB change cell, so it is paid as fee.
			skel, err := Build(intent)
			require.NoError(t, err)
			require.Equal(t, -1, skel.ChangeIndex)
			require.Len(t, skel.Tx.Outputs, 1)
			require.Equal(t, wire.CKBytes(150), skel.TotalInput)
			require.Equal(t, wire.CKBytes(50), skel.Fee)
		})
	}
}

func TestBuildMissingDependency(t *testing.T) {
	t.Parallel()

	_, tokenCode := codeDep(t, "token")
	typ := wire.Script{
		CodeHash: tokenCode,
		HashType: wire.HashTypeData,
		Args:     make([]byte, 32),
	}
	change := secpLock(1)

	// The token type is not provided by any dep.
	_, err := Build(&Intent{
		Outputs: []wire.Cell{
			wire.NewCell(wire.CKBytes(142), secpLock(1), &typ, make([]byte, 16)),
		},
		Deps: []cellref.DepRef{secpDep},
		Inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(1000), secpLock(1)),
		},
		ChangeLock: &change,
	})
	require.ErrorIs(t, err, ErrMissingDependency)
	require.ErrorIs(t, err, protoerr.ErrMissingDependency)

	// The input lock is not provided either.
	_, err = Build(&Intent{
		Outputs: []wire.Cell{
			wire.NewCell(wire.CKBytes(61), secpLock(1), nil, nil),
		},
		Inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(1000), secpLock(1)),
		},
		ChangeLock: &change,
	})
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()

	_, err := Build(&Intent{})
	require.ErrorIs(t, err, ErrNoOutputs)

	out := wire.NewCell(wire.CKBytes(61), secpLock(1), nil, nil)
	_, err = Build(&Intent{Outputs: []wire.Cell{out}})
	require.ErrorIs(t, err, ErrNoInputs)

	small := wire.NewCell(wire.CKBytes(60), secpLock(1), nil, nil)
	_, err = Build(&Intent{
		Outputs: []wire.Cell{small},
		Deps:    []cellref.DepRef{secpDep},
		Inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(60), secpLock(1)),
		},
	})
	require.ErrorIs(t, err, txrules.ErrCapacityTooLow)

	// Surplus without a change lock.
	_, err = Build(&Intent{
		Outputs: []wire.Cell{out},
		Deps:    []cellref.DepRef{secpDep},
		Inputs: []cellref.InputRef{
			plainInput("a", wire.CKBytes(500), secpLock(1)),
		},
	})
	require.ErrorIs(t, err, ErrMissingChangeLock)
}

func TestBuildTypeID(t *testing.T) {
	t.Parallel()

	typeIDDep, typeIDCode := codeDep(t, "type id")
	typ := wire.Script{CodeHash: typeIDCode, HashType: wire.HashTypeData}
	first := plainInput("first", wire.CKBytes(1000), secpLock(1))
	change := secpLock(1)

	intent := &Intent{
		Outputs: []wire.Cell{
			wire.NewCell(wire.CKBytes(61), secpLock(3), nil, nil),
			wire.NewCell(wire.CKBytes(200), secpLock(1), &typ, []byte("v1")),
		},
		Deps:         []cellref.DepRef{secpDep, typeIDDep},
		Inputs:       []cellref.InputRef{first},
		ChangeLock:   &change,
		FeeRate:      txrules.DefaultFeeRate,
		TypeIDOutput: fn.Some(1),
	}

	skel, err := Build(intent)
	require.NoError(t, err)

	want := TypeIDArgs(first.OutPoint, 1)
	require.Equal(t, want[:], skel.Tx.Outputs[1].Type.Args)
	require.NotEqual(t, want, TypeIDArgs(first.OutPoint, 0))

	// The caller's intent is not modified.
	require.Empty(t, intent.Outputs[1].Type.Args)

	// Patching returns a new skeleton and leaves the receiver alone.
	other := wire.CKBHash([]byte("other"))
	patched, err := skel.WithTypeArgs(1, other[:])
	require.NoError(t, err)
	require.Equal(t, other[:], patched.Tx.Outputs[1].Type.Args)
	require.Equal(t, want[:], skel.Tx.Outputs[1].Type.Args)
	require.NotEqual(t, skel.Tx.Hash(), patched.Tx.Hash())

	_, err = skel.WithTypeArgs(0, other[:])
	require.ErrorIs(t, err, protoerr.ErrValidation)

	_, err = skel.WithTypeArgs(5, other[:])
	require.ErrorIs(t, err, ErrOutputIndex)

	intent.TypeIDOutput = fn.Some(0)
	_, err = Build(intent)
	require.ErrorIs(t, err, protoerr.ErrValidation)
}
