// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	Name string

	// AddressHRP is the human readable part of addresses.
	AddressHRP string

	// Secp256k1CodeHash is the type hash of the default secp256k1
	// blake160 sighash-all lock.
	Secp256k1CodeHash wire.Hash

	// Secp256k1DepGroup is the genesis dep group providing the default
	// lock and its secp256k1 data.
	Secp256k1DepGroup wire.OutPoint

	// RPCURL is the default node JSON-RPC endpoint.
	RPCURL string
}

func mustHash(s string) wire.Hash {
	h, err := wire.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return h
}

// secp256k1CodeHash is the same on every public network: it is the type
// hash of a genesis cell.
var secp256k1CodeHash = mustHash(
	"0x9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8",
)

// MainNetParams contains parameters specific to the main network.
var MainNetParams = Params{
	Name:              "mainnet",
	AddressHRP:        "ckb",
	Secp256k1CodeHash: secp256k1CodeHash,
	Secp256k1DepGroup: wire.NewOutPoint(mustHash(
		"0x71a7ba8fc96349fea0ed3a5c47992e3b4084b031a42264a018e0072e8172e46c",
	), 0),
	RPCURL: "http://127.0.0.1:8114",
}

// TestNetParams contains parameters specific to the public test network.
var TestNetParams = Params{
	Name:              "testnet",
	AddressHRP:        "ckt",
	Secp256k1CodeHash: secp256k1CodeHash,
	Secp256k1DepGroup: wire.NewOutPoint(mustHash(
		"0xf8de3bb47d055cdf460d93a2a6e1b05f7432f9777c8c474abf4eec1d4aee5d37",
	), 0),
	RPCURL: "http://127.0.0.1:8114",
}

// DevNetParams contains parameters for a local development chain. The dep
// group depends on the chain's genesis and is usually overridden from the
// configuration.
var DevNetParams = Params{
	Name:              "devnet",
	AddressHRP:        "ckt",
	Secp256k1CodeHash: secp256k1CodeHash,
	Secp256k1DepGroup: wire.NewOutPoint(mustHash(
		"0xace5ea83c478bb866edf122ff862085789158f5cbff155b7bb5f13058555b708",
	), 0),
	RPCURL: "http://127.0.0.1:8114",
}

// SimNetParams contains parameters for the in-process simulated ledger.
var SimNetParams = Params{
	Name:              "simnet",
	AddressHRP:        "ckt",
	Secp256k1CodeHash: secp256k1CodeHash,
	Secp256k1DepGroup: wire.NewOutPoint(
		wire.CKBHash([]byte("simnet genesis dep group")), 0,
	),
}

// Secp256k1Lock returns the default lock for a public key hash.
func (p *Params) Secp256k1Lock(pubkeyHash [wire.Blake160Size]byte) wire.Script {
	return wire.Script{
		CodeHash: p.Secp256k1CodeHash,
		HashType: wire.HashTypeType,
		Args:     append([]byte(nil), pubkeyHash[:]...),
	}
}

// IsSecp256k1Lock reports whether s is a default lock on this network.
func (p *Params) IsSecp256k1Lock(s wire.Script) bool {
	return s.CodeHash == p.Secp256k1CodeHash &&
		s.HashType == wire.HashTypeType &&
		len(s.Args) == wire.Blake160Size
}

// Secp256k1Dep returns the dep group reference that provides the default
// lock.
func (p *Params) Secp256k1Dep() cellref.DepRef {
	return cellref.NewDepGroupRef(p.Secp256k1DepGroup, cellref.CodeID{
		Hash:     p.Secp256k1CodeHash,
		HashType: wire.HashTypeType,
	})
}

// Address renders a lock as an address on this network.
func (p *Params) Address(lock wire.Script) (string, error) {
	return wire.EncodeAddress(p.AddressHRP, lock)
}
