// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package catalog lists deployed reusable scripts together with the terms
// under which they may be used. It is a read side companion of the
// workflow: entries are published once a script is deployed and looked up
// by consumers who want to reference it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrEmptyFilter is returned by Lookup when no filter field is set.
	ErrEmptyFilter = errors.New("empty catalog filter")

	// ErrNotDeployed is returned when an entry is derived from a run
	// that has not deployed its reusable script.
	ErrNotDeployed = errors.New("reusable script not deployed")
)

// Metadata describes a script for humans.
type Metadata struct {
	Name        string
	Description string
	Author      string
}

// Payment is what one use of a script costs and where the fee goes.
type Payment struct {
	// TokenTypeHash is the type hash of the fee token.
	TokenTypeHash wire.Hash

	// UsageFee is the token amount charged per use.
	UsageFee *big.Int

	// CKBRate is the capacity, in shannons, each use adds to the wallet.
	CKBRate uint64

	// WalletLock is the lock guarding the wallet that collects fees.
	WalletLock wire.Script
}

// Entry is a catalogued reusable script.
type Entry struct {
	Metadata

	// Code is the cell holding the script code.
	Code    wire.OutPoint
	DepType wire.DepType

	// DataHash is the hash of the script code.
	DataHash wire.Hash

	// TypeHash is the type hash of the code cell, if it has a type.
	TypeHash fn.Option[wire.Hash]

	Payment Payment
}

// Dep returns the dep a consumer adds to reference the script code.
func (e Entry) Dep() (cellref.DepRef, error) {
	dep, err := wire.NewCellDep(e.Code, e.DepType)
	if err != nil {
		return cellref.DepRef{}, err
	}

	provides := []cellref.CodeID{{
		Hash: e.DataHash, HashType: wire.HashTypeData,
	}}
	e.TypeHash.WhenSome(func(h wire.Hash) {
		provides = append(provides, cellref.CodeID{
			Hash: h, HashType: wire.HashTypeType,
		})
	})

	return cellref.DepRef{Dep: dep, Provides: provides}, nil
}

// FromState builds the entry of the script deployed in s.
func FromState(s wallet.State, meta Metadata) (Entry, error) {
	if s.Script == nil || s.Wallet == nil {
		return Entry{}, protoerr.New(protoerr.ErrMissingDependency,
			fmt.Sprintf("run %v at phase %v", s.RunID, s.Phase),
			ErrNotDeployed)
	}

	code := s.Script.Ref
	e := Entry{
		Metadata: meta,
		Code:     code.OutPoint,
		DepType:  wire.DepTypeCode,
		DataHash: s.Script.DataHash,
		TypeHash: fn.None[wire.Hash](),
		Payment: Payment{
			TokenTypeHash: s.Wallet.Config.TokenTypeHash,
			UsageFee:      new(big.Int).Set(s.Wallet.Config.TokenRate),
			CKBRate:       s.Wallet.Config.CKBRate,
			WalletLock:    s.Wallet.Lock.Copy(),
		},
	}
	if code.Cell.Type != nil {
		e.TypeHash = fn.Some(code.Cell.Type.Hash())
	}

	return e, nil
}

// Filter selects entries. Every set field must match.
type Filter struct {
	WalletLockHash fn.Option[wire.Hash]
	ScriptTypeHash fn.Option[wire.Hash]
	ScriptDataHash fn.Option[wire.Hash]
}

// IsEmpty reports whether no field of the filter is set.
func (f Filter) IsEmpty() bool {
	return f.WalletLockHash.IsNone() && f.ScriptTypeHash.IsNone() &&
		f.ScriptDataHash.IsNone()
}

// Catalog is a source of catalogued scripts.
type Catalog interface {
	// All returns every entry.
	All(ctx context.Context) ([]Entry, error)

	// Lookup returns the entries matching f. An empty filter fails with
	// ErrEmptyFilter.
	Lookup(ctx context.Context, f Filter) ([]Entry, error)
}
