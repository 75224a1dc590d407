// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// codeNames are the code store names of the script binaries.
type codeNames struct {
	tokenDef   string
	walletLock string
	script     string
	typeID     string
}

// runPlan is what a run should reach.
type runPlan struct {
	codes  codeNames
	issue  *big.Int
	wallet wallet.WalletParams

	// uses is the number of paid uses the run should have made in total.
	uses int

	// typeIDData, when set, is written to the run's type id cell.
	typeIDData []byte

	// recipient and transfer describe a token transfer made once the
	// protocol phases are done.
	recipient *wire.Script
	transfer  *big.Int
}

// planFromConfig returns the plan described by cfg.
func planFromConfig(cfg *config) *runPlan {
	p := &runPlan{
		codes: codeNames{
			tokenDef:   cfg.TokenDefCode,
			walletLock: cfg.WalletLockCode,
			script:     cfg.ScriptCode,
			typeID:     cfg.TypeIDCode,
		},
		issue: cfg.Issue.Int,
		wallet: wallet.WalletParams{
			CKBRate:   uint64(cfg.CKBRate.Capacity),
			TokenRate: cfg.TokenRate.Int,
			Deposit:   cfg.Deposit.Int,
			Unique:    cfg.Unique,
		},
		uses: cfg.Uses,
	}
	if cfg.TypeID != "" {
		p.typeIDData = []byte(cfg.TypeID)
	}
	if cfg.TransferTo != "" {
		recipient := cfg.recipient.Copy()
		p.recipient = &recipient
		p.transfer = cfg.TransferAmount.Int
	}
	return p
}

// usesMade returns the number of paid uses recorded in s.
func usesMade(s wallet.State) int {
	if s.Usage == nil {
		return 0
	}
	return s.Usage.Count
}

// advance runs the protocol phases from s.Phase until the plan is met. The
// last state reached is returned together with the error that stopped the
// run, so a failed run can be resumed from it.
func advance(ctx context.Context, w *wallet.Workflow, s wallet.State,
	p *runPlan) (wallet.State, error) {

	for {
		var (
			next wallet.State
			err  error
		)
		switch s.Phase {
		case wallet.PhaseInit:
			next, err = w.DeployTokenDefinition(ctx, s, p.codes.tokenDef)

		case wallet.PhaseTokenDefDeployed:
			next, err = w.IssueToken(ctx, s, w.Owner(), p.issue)

		case wallet.PhaseTokenIssued:
			next, err = w.DeployWalletLock(ctx, s, p.codes.walletLock)

		case wallet.PhaseWalletLockDeployed:
			// A unique wallet's script is an identity cell, so its
			// code goes first.
			if p.wallet.Unique && s.TypeIDCode == nil {
				next, err = w.DeployTypeIDCode(ctx, s,
					p.codes.typeID)
				break
			}
			next, err = w.CreateWallet(ctx, s, p.wallet)

		case wallet.PhaseWalletCreated:
			next, err = w.DeployReusableScript(ctx, s, p.codes.script)

		case wallet.PhaseScriptDeployed, wallet.PhaseScriptUsed:
			if usesMade(s) >= p.uses {
				return extras(ctx, w, s, p)
			}
			next, err = w.UseReusableScript(ctx, s,
				s.Wallet.Config.TokenRate)

		default:
			return s, fmt.Errorf("run %v is in unknown phase %v",
				s.RunID, s.Phase)
		}
		if err != nil {
			return s, fmt.Errorf("phase %v: %w", s.Phase, err)
		}

		s = next
	}
}

// extras runs the optional type id and transfer steps of the plan.
func extras(ctx context.Context, w *wallet.Workflow, s wallet.State,
	p *runPlan) (wallet.State, error) {

	if p.typeIDData != nil {
		if s.TypeIDCode == nil {
			next, err := w.DeployTypeIDCode(ctx, s, p.codes.typeID)
			if err != nil {
				return s, fmt.Errorf("deploy type id code: %w", err)
			}
			s = next
		}

		var (
			next wallet.State
			err  error
		)
		if s.TypeID == nil {
			next, err = w.CreateTypeIDCell(ctx, s, p.typeIDData)
		} else {
			next, err = w.UpdateTypeIDCell(ctx, s, p.typeIDData)
		}
		if err != nil {
			return s, fmt.Errorf("write type id cell: %w", err)
		}
		s = next
	}

	if p.recipient != nil {
		next, err := w.TransferToken(ctx, s, *p.recipient, p.transfer)
		if err != nil {
			return s, fmt.Errorf("transfer tokens: %w", err)
		}
		s = next
	}

	return s, nil
}
