// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package layout encodes and decodes the fixed-width binary records stored
// in script args and cell data: token amounts, wallet configurations and
// cell identities. Every integer is little endian and every record has an
// exact size; nothing is length prefixed.
package layout

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wire"
)

var (
	// ErrSchemaMismatch is returned when decoding bytes whose length does
	// not match the layout, or encoding the wrong number or kind of
	// values.
	ErrSchemaMismatch = errors.New("layout schema mismatch")

	// ErrAmountOverflow is returned when a number does not fit its field.
	ErrAmountOverflow = errors.New("amount overflows field")
)

// Kind is the type of a field.
type Kind uint8

const (
	// KindUint is an unsigned little endian integer.
	KindUint Kind = iota

	// KindBytes is an opaque byte string such as a hash.
	KindBytes
)

// Field is one fixed-width member of a layout.
type Field struct {
	Name string
	Kind Kind
	Size int
}

// Layout is an ordered list of fields.
type Layout struct {
	Name   string
	Fields []Field
}

// Size returns the encoded size of the layout in bytes.
func (l Layout) Size() int {
	n := 0
	for _, f := range l.Fields {
		n += f.Size
	}
	return n
}

// The record layouts used by the protocol.
var (
	TokenAmount = Layout{
		Name: "token_amount",
		Fields: []Field{
			{Name: "amount", Kind: KindUint, Size: 16},
		},
	}

	WalletArgs = Layout{
		Name: "wallet_config",
		Fields: []Field{
			{Name: "owner_pubkey_hash", Kind: KindBytes, Size: 20},
			{Name: "ckb_rate", Kind: KindUint, Size: 8},
			{Name: "token_rate", Kind: KindUint, Size: 16},
			{Name: "token_type_hash", Kind: KindBytes, Size: 32},
		},
	}

	WalletArgsUnique = Layout{
		Name: "wallet_config_unique",
		Fields: append(append([]Field(nil), WalletArgs.Fields...),
			Field{
				Name: "reusable_script_type_hash",
				Kind: KindBytes,
				Size: 32,
			},
		),
	}

	Identity = Layout{
		Name: "identity",
		Fields: []Field{
			{Name: "tx_hash", Kind: KindBytes, Size: 32},
			{Name: "index", Kind: KindUint, Size: 4},
		},
	}

	PaymentArgs = Layout{
		Name: "payment_args",
		Fields: []Field{
			{Name: "wallet_lock_hash", Kind: KindBytes, Size: 32},
		},
	}

	GovernanceArgs = Layout{
		Name: "governance_args",
		Fields: []Field{
			{Name: "owner_lock_hash", Kind: KindBytes, Size: 32},
		},
	}
)

func schemaError(l Layout, format string, args ...any) error {
	desc := fmt.Sprintf("%s: %s", l.Name, fmt.Sprintf(format, args...))
	return protoerr.New(protoerr.ErrValidation, desc, ErrSchemaMismatch)
}

func overflowError(l Layout, f Field, v *big.Int) error {
	desc := fmt.Sprintf("%s.%s: %v does not fit %d bytes", l.Name, f.Name,
		v, f.Size)
	return protoerr.New(protoerr.ErrValidation, desc, ErrAmountOverflow)
}

// toBig converts the supported unsigned integer representations.
func toBig(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return n, true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case int:
		return big.NewInt(int64(n)), true
	case wire.Capacity:
		return new(big.Int).SetUint64(uint64(n)), true
	}
	return nil, false
}

// toBytes converts the supported byte string representations.
func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case wire.Hash:
		return b[:], true
	case [wire.Blake160Size]byte:
		return b[:], true
	}
	return nil, false
}

// putUint writes v little endian into dst, failing if it does not fit.
func putUint(dst []byte, v *big.Int) bool {
	if v.Sign() < 0 || v.BitLen() > 8*len(dst) {
		return false
	}

	be := v.Bytes()
	for i, b := range be {
		dst[len(be)-1-i] = b
	}
	return true
}

// Encode serializes values into the layout. Unsigned fields accept
// *big.Int, uint64, uint32, int or wire.Capacity; byte fields accept
// []byte, wire.Hash or a 20 byte array of exactly the field's size.
func Encode(l Layout, values ...any) ([]byte, error) {
	if len(values) != len(l.Fields) {
		return nil, schemaError(l, "got %d values, want %d",
			len(values), len(l.Fields))
	}

	out := make([]byte, l.Size())
	off := 0
	for i, f := range l.Fields {
		dst := out[off : off+f.Size]
		off += f.Size

		switch f.Kind {
		case KindUint:
			n, ok := toBig(values[i])
			if !ok {
				return nil, schemaError(l, "field %s: %T is not "+
					"an unsigned integer", f.Name, values[i])
			}
			if !putUint(dst, n) {
				return nil, overflowError(l, f, n)
			}

		case KindBytes:
			b, ok := toBytes(values[i])
			if !ok {
				return nil, schemaError(l, "field %s: %T is not "+
					"a byte string", f.Name, values[i])
			}
			if len(b) != f.Size {
				return nil, schemaError(l, "field %s: got %d "+
					"bytes, want %d", f.Name, len(b), f.Size)
			}
			copy(dst, b)
		}
	}

	return out, nil
}

// Record is a decoded layout. Accessors index fields in layout order.
type Record struct {
	layout Layout
	raw    []byte
}

// Decode checks that b has exactly the layout's size and returns a record
// over a copy of it.
func Decode(l Layout, b []byte) (Record, error) {
	if len(b) != l.Size() {
		return Record{}, schemaError(l, "got %d bytes, want %d",
			len(b), l.Size())
	}

	return Record{layout: l, raw: append([]byte(nil), b...)}, nil
}

func (r Record) field(i int) []byte {
	off := 0
	for _, f := range r.layout.Fields[:i] {
		off += f.Size
	}
	return r.raw[off : off+r.layout.Fields[i].Size]
}

// Uint returns unsigned field i.
func (r Record) Uint(i int) *big.Int {
	le := r.field(i)
	be := make([]byte, len(le))
	for j, b := range le {
		be[len(le)-1-j] = b
	}
	return new(big.Int).SetBytes(be)
}

// Bytes returns a copy of byte field i.
func (r Record) Bytes(i int) []byte {
	return append([]byte(nil), r.field(i)...)
}

// Hash returns a 32 byte field as a hash.
func (r Record) Hash(i int) wire.Hash {
	var h wire.Hash
	copy(h[:], r.field(i))
	return h
}
