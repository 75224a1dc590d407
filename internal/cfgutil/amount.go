// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
)

var (
	shannonsPerCKByte = big.NewRat(wire.ShannonsPerCKByte, 1)
	maxCapacity       = new(big.Int).SetUint64(^uint64(0))
)

// CapacityFlag embeds a wire.Capacity and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field. Values
// are given in CKBytes with up to eight decimals, optionally suffixed with
// " CKB".
type CapacityFlag struct {
	wire.Capacity
}

// NewCapacityFlag creates a CapacityFlag with a default capacity.
func NewCapacityFlag(defaultValue wire.Capacity) *CapacityFlag {
	return &CapacityFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (c *CapacityFlag) MarshalFlag() (string, error) {
	return c.Capacity.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (c *CapacityFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSpace(strings.TrimSuffix(value, "CKB"))
	ckb, ok := new(big.Rat).SetString(value)
	if !ok {
		return fmt.Errorf("invalid capacity %q", value)
	}

	shannons := new(big.Rat).Mul(ckb, shannonsPerCKByte)
	if !shannons.IsInt() || shannons.Sign() < 0 ||
		shannons.Num().Cmp(maxCapacity) > 0 {

		return fmt.Errorf("capacity %q is not a whole number of "+
			"shannons in range", value)
	}
	c.Capacity = wire.Capacity(shannons.Num().Uint64())
	return nil
}

// TokenAmountFlag holds a token amount and implements the flags.Marshaler
// and Unmarshaler interfaces. Values are decimal and must fit the 128 bit
// amount field of a token cell.
type TokenAmountFlag struct {
	*big.Int
}

// NewTokenAmountFlag creates a TokenAmountFlag with a default amount.
func NewTokenAmountFlag(defaultValue int64) *TokenAmountFlag {
	return &TokenAmountFlag{big.NewInt(defaultValue)}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *TokenAmountFlag) MarshalFlag() (string, error) {
	return a.Int.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *TokenAmountFlag) UnmarshalFlag(value string) error {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("invalid token amount %q", value)
	}
	if amount.Cmp(layout.MaxTokenAmount) > 0 {
		return fmt.Errorf("token amount %s exceeds %s", value,
			layout.MaxTokenAmount)
	}
	a.Int = amount
	return nil
}
