// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Phase is the position of a run in the protocol's deployment sequence.
type Phase uint8

const (
	// PhaseInit is the phase of a fresh run.
	PhaseInit Phase = iota

	// PhaseTokenDefDeployed follows the deployment of the token
	// definition code.
	PhaseTokenDefDeployed

	// PhaseTokenIssued follows the minting of the fee token.
	PhaseTokenIssued

	// PhaseWalletLockDeployed follows the deployment of the wallet lock
	// code.
	PhaseWalletLockDeployed

	// PhaseWalletCreated follows the creation of the wallet cell.
	PhaseWalletCreated

	// PhaseScriptDeployed follows the deployment of the reusable script.
	PhaseScriptDeployed

	// PhaseScriptUsed follows at least one paid use of the reusable
	// script.
	PhaseScriptUsed
)

var phaseStrings = map[Phase]string{
	PhaseInit:               "init",
	PhaseTokenDefDeployed:   "token_def_deployed",
	PhaseTokenIssued:        "token_issued",
	PhaseWalletLockDeployed: "wallet_lock_deployed",
	PhaseWalletCreated:      "wallet_created",
	PhaseScriptDeployed:     "script_deployed",
	PhaseScriptUsed:         "script_used",
}

// String returns the phase as a human-readable name.
func (p Phase) String() string {
	if s := phaseStrings[p]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown Phase (%d)", uint8(p))
}

// ParsePhase returns the phase named s.
func ParsePhase(s string) (Phase, error) {
	for p, name := range phaseStrings {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// CodeCell is a deployed code cell referenced by the data hash of its code.
type CodeCell struct {
	DataHash wire.Hash
	Ref      cellref.Ref
}

func newCodeCell(ref cellref.Ref) *CodeCell {
	return &CodeCell{DataHash: ref.Cell.DataHash(), Ref: ref}
}

// Dep returns the code dep providing this code.
func (c *CodeCell) Dep() (cellref.DepRef, error) {
	return c.Ref.AsDep(wire.DepTypeCode)
}

// Script returns a script running this code by data hash.
func (c *CodeCell) Script(args []byte) wire.Script {
	return wire.Script{
		CodeHash: c.DataHash,
		HashType: wire.HashTypeData,
		Args:     append([]byte(nil), args...),
	}
}

// Token describes the minted fee token.
type Token struct {
	// TypeScript is the token's type: the definition code by data hash
	// with the governance lock hash as args.
	TypeScript wire.Script

	// Issued is the cell the token was minted into.
	Issued cellref.Ref

	// Amount is the amount minted.
	Amount *big.Int
}

// Wallet describes the payment wallet cell of a reusable script.
type Wallet struct {
	Config layout.WalletConfig

	// Lock is the wallet lock script guarding the wallet cell.
	Lock wire.Script

	// Ref is the current wallet cell. It changes on every paid use.
	Ref cellref.Ref

	// Amount is the token amount currently held by the wallet cell.
	Amount *big.Int
}

// ReusableScript describes the deployed reusable script.
type ReusableScript struct {
	CodeCell

	// BoundWalletLockHash is the hash of the wallet lock that guards the
	// code cell and collects its fees.
	BoundWalletLockHash wire.Hash
}

// Usage records the latest paid use of the reusable script.
type Usage struct {
	// Proof is the usage cell typed by the reusable script.
	Proof cellref.Ref

	// Count is the number of paid uses in this run.
	Count int
}

// TypeIDCell describes a cell carrying a stable identity.
type TypeIDCell struct {
	// ID is the type args of the cell. It never changes across updates.
	ID wire.Hash

	// Ref is the current version of the cell.
	Ref cellref.Ref

	// Version counts the updates since creation.
	Version int
}

// Transfer records the latest token transfer of the run.
type Transfer struct {
	Recipient wire.Script
	Sent      cellref.Ref
	Amount    *big.Int
}

// State is the immutable result of the phases committed so far in a run.
// Phases never modify the State they are given; they return a new one. The
// pointed-to values of a State are never modified either and may be shared
// between States.
type State struct {
	// RunID identifies the run across restarts.
	RunID uuid.UUID

	Phase Phase

	TokenDef   *CodeCell
	Token      *Token
	WalletLock *CodeCell
	Wallet     *Wallet
	Script     *ReusableScript
	Usage      *Usage

	// TokenCell is the owner's current token cell: the issued cell, then
	// the change of every later phase that moves tokens.
	TokenCell fn.Option[cellref.Ref]

	// ScriptAnchor is the owner cell held back by a unique wallet. It
	// becomes the first input of the reusable script deployment, which
	// fixes the identity the wallet is bound to. It is cleared once the
	// script is deployed.
	ScriptAnchor fn.Option[cellref.Ref]

	TypeIDCode *CodeCell
	TypeID     *TypeIDCell

	LastTransfer *Transfer
}

// NewState returns the initial state of a run.
func NewState(runID uuid.UUID) State {
	return State{RunID: runID, Phase: PhaseInit}
}

// with returns a copy of s after applying f to it.
func (s State) with(f func(*State)) State {
	next := s
	f(&next)
	return next
}

// tokenHeld returns the owner's current token cell and its amount.
func (s State) tokenHeld() (cellref.Ref, *big.Int, error) {
	ref, err := s.TokenCell.UnwrapOrErr(errNoTokenCell)
	if err != nil {
		return cellref.Ref{}, nil, err
	}
	amount, err := layout.DecodeAmount(ref.Cell.Data)
	if err != nil {
		return cellref.Ref{}, nil, fmt.Errorf("token cell %v: %w",
			ref.OutPoint, err)
	}
	return ref, amount, nil
}
