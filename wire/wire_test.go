// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testScript(t *testing.T, args []byte) Script {
	t.Helper()

	s, err := NewScript(CKBHash([]byte("code")), HashTypeType, args)
	require.NoError(t, err)

	return s
}

// TestCKBHashEmpty checks the personalization against the ledger's well
// known hash of the empty string.
func TestCKBHashEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"0x44f4c69744d5f8c55d642062949dcae49bc4e7ef43d388c5a12f42b5633d163e",
		CKBHash().String(),
	)
	require.Equal(t, CKBHash([]byte("ab")), CKBHash([]byte("a"), []byte("b")))

	b160 := Blake160(nil)
	h := CKBHash(nil)
	require.Equal(t, h[:Blake160Size], b160[:])
}

func TestHashFromStr(t *testing.T) {
	t.Parallel()

	h := CKBHash([]byte("x"))
	parsed, err := NewHashFromStr(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)

	_, err = NewHashFromStr("0x1234")
	require.Error(t, err)

	_, err = NewHashFromStr("zz")
	require.Error(t, err)
}

func TestNewScriptRejectsUnknownHashType(t *testing.T) {
	t.Parallel()

	_, err := NewScript(Hash{}, HashType(3), nil)
	require.ErrorIs(t, err, ErrUnknownHashType)

	_, err = NewCellDep(OutPoint{}, DepType(7))
	require.ErrorIs(t, err, ErrUnknownDepType)

	for _, name := range []string{"data", "type", "data1"} {
		ht, err := ParseHashType(name)
		require.NoError(t, err)
		require.Equal(t, name, ht.String())
	}
}

func TestScriptSerialize(t *testing.T) {
	t.Parallel()

	args := bytes.Repeat([]byte{0xab}, 20)
	s := testScript(t, args)

	// 16 byte table header, 32 byte code hash, 1 byte hash type and a
	// 4 byte length prefix on the args.
	enc := s.Serialize()
	require.Len(t, enc, 16+32+1+4+20)

	decoded, err := DeserializeScript(enc)
	require.NoError(t, err)
	require.True(t, s.Equal(decoded))
	require.Equal(t, s.Hash(), decoded.Hash())

	_, err = DeserializeScript(enc[:len(enc)-1])
	require.ErrorIs(t, err, ErrMalformed)

	// Args are copied on construction.
	args[0] = 0
	require.Equal(t, byte(0xab), s.Args[0])
}

func TestCellOutputSerialize(t *testing.T) {
	t.Parallel()

	typ := testScript(t, []byte{1, 2, 3})
	out := CellOutput{
		Capacity: CKBytes(142),
		Lock:     testScript(t, make([]byte, 20)),
		Type:     &typ,
	}

	decoded, err := DeserializeCellOutput(out.Serialize())
	require.NoError(t, err)
	require.Equal(t, out.Capacity, decoded.Capacity)
	require.True(t, out.Lock.Equal(decoded.Lock))
	require.NotNil(t, decoded.Type)
	require.True(t, typ.Equal(*decoded.Type))

	out.Type = nil
	decoded, err = DeserializeCellOutput(out.Serialize())
	require.NoError(t, err)
	require.Nil(t, decoded.Type)
}

func TestStructSizes(t *testing.T) {
	t.Parallel()

	require.Len(t, OutPoint{}.Serialize(), 36)
	require.Len(t, CellDep{}.Serialize(), 37)
	require.Len(t, CellInput{}.Serialize(), 44)
	require.Equal(t, []byte{4, 0, 0, 0}, serializeDynVec(nil))
}

func TestOutPointString(t *testing.T) {
	t.Parallel()

	op := NewOutPoint(CKBHash([]byte("tx")), 7)
	parsed, err := ParseOutPoint(op.String())
	require.NoError(t, err)
	require.Equal(t, op, parsed)

	_, err = ParseOutPoint("0x00")
	require.Error(t, err)
}

func TestTransactionHashIgnoresWitnesses(t *testing.T) {
	t.Parallel()

	tx := NewTransaction()
	tx.AddCellDep(CellDep{OutPoint: NewOutPoint(CKBHash([]byte("dep")), 0)})
	tx.AddInput(NewOutPoint(CKBHash([]byte("in")), 1))
	idx := tx.AddOutput(NewCell(CKBytes(61), testScript(t, make([]byte, 20)),
		nil, nil))
	require.Equal(t, 0, idx)
	require.NoError(t, tx.Validate())

	hash := tx.Hash()
	unsignedSize := tx.SerializeSize()

	tx.Witnesses = append(tx.Witnesses, WitnessArgs{
		Lock: make([]byte, 65),
	}.Serialize())
	require.Equal(t, hash, tx.Hash())
	require.Greater(t, tx.SerializeSize(), unsignedSize)
	require.Equal(t, NewOutPoint(hash, 0), tx.OutPoint(0))
}

func TestTransactionCopy(t *testing.T) {
	t.Parallel()

	tx := NewTransaction()
	tx.AddInput(NewOutPoint(CKBHash([]byte("in")), 0))
	tx.AddOutput(NewCell(CKBytes(100), testScript(t, []byte{1}), nil,
		[]byte{9}))
	tx.Witnesses = [][]byte{{1}}

	c := tx.Copy()
	c.Outputs[0].Lock.Args[0] = 2
	c.OutputsData[0][0] = 8
	c.Witnesses[0][0] = 3

	require.Equal(t, byte(1), tx.Outputs[0].Lock.Args[0])
	require.Equal(t, byte(9), tx.OutputsData[0][0])
	require.Equal(t, byte(1), tx.Witnesses[0][0])
	require.Equal(t, tx.Outputs[0].Capacity, c.Outputs[0].Capacity)
}

func TestWitnessArgs(t *testing.T) {
	t.Parallel()

	w := WitnessArgs{Lock: make([]byte, 65)}
	enc := w.Serialize()

	// Header plus one length-prefixed 65 byte lock.
	require.Len(t, enc, 16+4+65)

	decoded, err := DeserializeWitnessArgs(enc)
	require.NoError(t, err)
	require.Equal(t, w.Lock, decoded.Lock)
	require.Nil(t, decoded.InputType)
	require.Nil(t, decoded.OutputType)
}

func TestCapacity(t *testing.T) {
	t.Parallel()

	require.Equal(t, "61 CKB", CKBytes(61).String())
	require.Equal(t, "0.00001 CKB", Capacity(1000).String())
	require.Equal(t, "1.5 CKB", Capacity(150_000_000).String())

	_, ok := AddCapacity(Capacity(^uint64(0)), 1)
	require.False(t, ok)

	sum, ok := SumCapacity(1, 2, 3)
	require.True(t, ok)
	require.Equal(t, Capacity(6), sum)
}

func TestEncodeAddress(t *testing.T) {
	t.Parallel()

	addr, err := EncodeAddress("ckt", testScript(t, make([]byte, 20)))
	require.NoError(t, err)

	// A zero format byte always renders as a leading 'q'.
	require.True(t, strings.HasPrefix(addr, "ckt1q"), addr)

	lock := testScript(t, make([]byte, 20))
	got, err := DecodeAddress("ckt", addr)
	require.NoError(t, err)
	require.True(t, lock.Equal(got))

	_, err = DecodeAddress("ckb", addr)
	require.ErrorContains(t, err, "is for network")

	last := "q"
	if strings.HasSuffix(addr, last) {
		last = "p"
	}
	_, err = DecodeAddress("ckt", addr[:len(addr)-1]+last)
	require.Error(t, err)
}
