// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// The ledger serializes every structure with the molecule format:
//
//   - struct: fields concatenated, fixed size.
//   - fixvec: u32 item count followed by fixed size items.
//   - dynvec: u32 total size, one u32 offset per item, then the items.
//   - table: same header as a dynvec, one offset per field.
//   - option: empty for none, the inner value otherwise.
//
// All integers are little endian.

const numberSize = 4

// ErrMalformed is returned when decoding bytes that are not a valid molecule
// encoding of the requested structure.
var ErrMalformed = errors.New("malformed molecule encoding")

func putUint32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// serializeBytes encodes a byte fixvec.
func serializeBytes(b []byte) []byte {
	out := make([]byte, 0, numberSize+len(b))
	out = putUint32(out, uint32(len(b)))

	return append(out, b...)
}

// serializeFixVec encodes a fixvec of already encoded, equally sized items.
func serializeFixVec(items [][]byte) []byte {
	out := putUint32(nil, uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}

	return out
}

// serializeDynVec encodes a dynvec or, with one item per field, a table.
func serializeDynVec(items [][]byte) []byte {
	header := numberSize * (1 + len(items))
	total := header
	for _, item := range items {
		total += len(item)
	}

	// An empty dynvec is just its total size.
	if len(items) == 0 {
		return putUint32(nil, numberSize)
	}

	out := make([]byte, 0, total)
	out = putUint32(out, uint32(total))

	offset := header
	for _, item := range items {
		out = putUint32(out, uint32(offset))
		offset += len(item)
	}
	for _, item := range items {
		out = append(out, item...)
	}

	return out
}

func serializeTable(fields ...[]byte) []byte {
	return serializeDynVec(fields)
}

// deserializeTable splits a table into its fields, requiring exactly n.
func deserializeTable(b []byte, n int) ([][]byte, error) {
	if len(b) < numberSize {
		return nil, fmt.Errorf("%w: table header truncated", ErrMalformed)
	}

	total := int(binary.LittleEndian.Uint32(b))
	if total != len(b) {
		return nil, fmt.Errorf("%w: table size %d, have %d bytes",
			ErrMalformed, total, len(b))
	}
	if n == 0 {
		if total != numberSize {
			return nil, fmt.Errorf("%w: non-empty table", ErrMalformed)
		}
		return nil, nil
	}

	header := numberSize * (1 + n)
	if total < header {
		return nil, fmt.Errorf("%w: table header truncated", ErrMalformed)
	}

	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(
			b[numberSize*(i+1):],
		))
	}
	offsets[n] = total

	if offsets[0] != header {
		return nil, fmt.Errorf("%w: table has %d fields, want %d",
			ErrMalformed, offsets[0]/numberSize-1, n)
	}

	fields := make([][]byte, n)
	for i := 0; i < n; i++ {
		if offsets[i] > offsets[i+1] {
			return nil, fmt.Errorf("%w: decreasing offsets",
				ErrMalformed)
		}
		fields[i] = b[offsets[i]:offsets[i+1]]
	}

	return fields, nil
}

// deserializeBytes decodes a byte fixvec.
func deserializeBytes(b []byte) ([]byte, error) {
	if len(b) < numberSize {
		return nil, fmt.Errorf("%w: bytes header truncated", ErrMalformed)
	}

	n := int(binary.LittleEndian.Uint32(b))
	if n != len(b)-numberSize {
		return nil, fmt.Errorf("%w: bytes length %d, have %d",
			ErrMalformed, n, len(b)-numberSize)
	}

	out := make([]byte, n)
	copy(out, b[numberSize:])

	return out, nil
}

// Serialize returns the molecule encoding of the script table.
func (s Script) Serialize() []byte {
	return serializeTable(
		s.CodeHash[:],
		[]byte{byte(s.HashType)},
		serializeBytes(s.Args),
	)
}

// DeserializeScript decodes a script table.
func DeserializeScript(b []byte) (Script, error) {
	fields, err := deserializeTable(b, 3)
	if err != nil {
		return Script{}, err
	}
	if len(fields[0]) != HashSize || len(fields[1]) != 1 {
		return Script{}, fmt.Errorf("%w: script field sizes",
			ErrMalformed)
	}

	args, err := deserializeBytes(fields[2])
	if err != nil {
		return Script{}, err
	}

	var codeHash Hash
	copy(codeHash[:], fields[0])

	return NewScript(codeHash, HashType(fields[1][0]), args)
}

// Serialize returns the 36 byte struct encoding of the out point.
func (o OutPoint) Serialize() []byte {
	out := make([]byte, 0, HashSize+numberSize)
	out = append(out, o.TxHash[:]...)

	return putUint32(out, o.Index)
}

// Serialize returns the 37 byte struct encoding of the cell dep.
func (d CellDep) Serialize() []byte {
	return append(d.OutPoint.Serialize(), byte(d.DepType))
}

// Serialize returns the 44 byte struct encoding of the input.
func (in CellInput) Serialize() []byte {
	out := binary.LittleEndian.AppendUint64(nil, in.Since)
	return append(out, in.PreviousOutput.Serialize()...)
}

// Serialize returns the molecule encoding of the output table.
func (o CellOutput) Serialize() []byte {
	var typ []byte
	if o.Type != nil {
		typ = o.Type.Serialize()
	}

	return serializeTable(
		binary.LittleEndian.AppendUint64(nil, uint64(o.Capacity)),
		o.Lock.Serialize(),
		typ,
	)
}

// DeserializeCellOutput decodes an output table.
func DeserializeCellOutput(b []byte) (CellOutput, error) {
	fields, err := deserializeTable(b, 3)
	if err != nil {
		return CellOutput{}, err
	}
	if len(fields[0]) != 8 {
		return CellOutput{}, fmt.Errorf("%w: capacity size %d",
			ErrMalformed, len(fields[0]))
	}

	lock, err := DeserializeScript(fields[1])
	if err != nil {
		return CellOutput{}, fmt.Errorf("lock: %w", err)
	}

	out := CellOutput{
		Capacity: Capacity(binary.LittleEndian.Uint64(fields[0])),
		Lock:     lock,
	}
	if len(fields[2]) > 0 {
		typ, err := DeserializeScript(fields[2])
		if err != nil {
			return CellOutput{}, fmt.Errorf("type: %w", err)
		}
		out.Type = &typ
	}

	return out, nil
}
