// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package layout

import (
	"math/big"

	"github.com/WilfredTA/ReuseCoin/wire"
)

// MaxTokenAmount is the largest amount a token cell can hold.
var MaxTokenAmount = new(big.Int).Sub(
	new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1),
)

// EncodeAmount encodes a token amount as 16 little endian bytes.
func EncodeAmount(amount *big.Int) ([]byte, error) {
	return Encode(TokenAmount, amount)
}

// DecodeAmount decodes a token cell's data.
func DecodeAmount(b []byte) (*big.Int, error) {
	r, err := Decode(TokenAmount, b)
	if err != nil {
		return nil, err
	}
	return r.Uint(0), nil
}

// WalletConfig is the argument record of a wallet lock. It names who may
// withdraw, what each use of the bound script costs and which token the
// fee is paid in.
type WalletConfig struct {
	// OwnerPubkeyHash is the blake160 of the owner's public key.
	OwnerPubkeyHash [wire.Blake160Size]byte

	// CKBRate is the native capacity, in shannons, the wallet cell must
	// grow by on every use.
	CKBRate uint64

	// TokenRate is the token amount charged per use.
	TokenRate *big.Int

	// TokenTypeHash is the type script hash of the fee token.
	TokenTypeHash wire.Hash

	// ReusableScriptTypeHash, when set, binds the wallet to a single
	// reusable script ("unique mode").
	ReusableScriptTypeHash *wire.Hash
}

// Layout returns the layout the config encodes with.
func (c WalletConfig) Layout() Layout {
	if c.ReusableScriptTypeHash != nil {
		return WalletArgsUnique
	}
	return WalletArgs
}

// Copy returns a deep copy of the config.
func (c WalletConfig) Copy() WalletConfig {
	if c.TokenRate != nil {
		c.TokenRate = new(big.Int).Set(c.TokenRate)
	}
	if c.ReusableScriptTypeHash != nil {
		h := *c.ReusableScriptTypeHash
		c.ReusableScriptTypeHash = &h
	}
	return c
}

// EncodeWalletConfig encodes c as 76 bytes, or 108 in unique mode.
func EncodeWalletConfig(c WalletConfig) ([]byte, error) {
	values := []any{
		c.OwnerPubkeyHash, c.CKBRate, c.TokenRate, c.TokenTypeHash,
	}
	if c.ReusableScriptTypeHash != nil {
		values = append(values, *c.ReusableScriptTypeHash)
	}

	return Encode(c.Layout(), values...)
}

// DecodeWalletConfig decodes either wallet config layout.
func DecodeWalletConfig(b []byte) (WalletConfig, error) {
	l := WalletArgs
	if len(b) == WalletArgsUnique.Size() {
		l = WalletArgsUnique
	}

	r, err := Decode(l, b)
	if err != nil {
		return WalletConfig{}, err
	}

	var c WalletConfig
	copy(c.OwnerPubkeyHash[:], r.Bytes(0))
	c.CKBRate = r.Uint(1).Uint64()
	c.TokenRate = r.Uint(2)
	c.TokenTypeHash = r.Hash(3)
	if len(l.Fields) == len(WalletArgsUnique.Fields) {
		h := r.Hash(4)
		c.ReusableScriptTypeHash = &h
	}

	return c, nil
}

// EncodeIdentity encodes an out point as the 36 byte identity record. It
// cannot fail.
func EncodeIdentity(op wire.OutPoint) []byte {
	b, err := Encode(Identity, op.TxHash, op.Index)
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeIdentity decodes an identity record.
func DecodeIdentity(b []byte) (wire.OutPoint, error) {
	r, err := Decode(Identity, b)
	if err != nil {
		return wire.OutPoint{}, err
	}
	return wire.NewOutPoint(r.Hash(0), uint32(r.Uint(1).Uint64())), nil
}

// EncodeLockHashArgs encodes the 32 byte args shared by the payment and
// governance layouts.
func EncodeLockHashArgs(l Layout, lockHash wire.Hash) ([]byte, error) {
	return Encode(l, lockHash)
}

// DecodeLockHashArgs is the inverse of EncodeLockHashArgs.
func DecodeLockHashArgs(l Layout, b []byte) (wire.Hash, error) {
	r, err := Decode(l, b)
	if err != nil {
		return wire.Hash{}, err
	}
	return r.Hash(0), nil
}
