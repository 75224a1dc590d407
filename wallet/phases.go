// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// checkPositive fails with a ValidationError unless amount is positive and
// fits the token amount field.
func checkPositive(what string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("%s %v", what, amount), ErrInvalidAmount)
	}
	_, err := layout.EncodeAmount(amount)
	return err
}

// tokenCell returns a token cell of the given type, locked by lock,
// carrying exactly its minimum capacity.
func tokenCell(lock, tokenType wire.Script, amount *big.Int) (wire.Cell,
	error) {

	data, err := layout.EncodeAmount(amount)
	if err != nil {
		return wire.Cell{}, err
	}
	return sized(wire.NewCell(0, lock, &tokenType, data)), nil
}

// DeployTokenDefinition deploys the token definition code stored under name
// into a cell locked by the owner.
func (w *Workflow) DeployTokenDefinition(ctx context.Context, prev State,
	name string) (State, error) {

	if err := guard(prev, EventDeployTokenDef); err != nil {
		return State{}, err
	}

	def, err := w.deployCode(ctx, EventDeployTokenDef, name, w.cfg.Owner)
	if err != nil {
		return State{}, err
	}

	log.Infof("Token definition %v deployed at %v", def.DataHash,
		def.Ref.OutPoint)

	return w.advance(ctx, prev, EventDeployTokenDef, func(s *State) {
		s.TokenDef = def
	})
}

// IssueToken mints amount tokens into a cell locked by the owner. The
// token's type names governance as its governance lock; only a transaction
// spending a cell locked by governance may mint, so governance is normally
// the owner itself.
func (w *Workflow) IssueToken(ctx context.Context, prev State,
	governance wire.Script, amount *big.Int) (State, error) {

	if err := guard(prev, EventIssueToken); err != nil {
		return State{}, err
	}
	if err := checkPositive("issue amount", amount); err != nil {
		return State{}, err
	}

	args, err := layout.EncodeLockHashArgs(layout.GovernanceArgs,
		governance.Hash())
	if err != nil {
		return State{}, err
	}
	tokenType := prev.TokenDef.Script(args)

	cell, err := tokenCell(w.cfg.Owner, tokenType, amount)
	if err != nil {
		return State{}, err
	}

	deps, err := codeDeps(prev.TokenDef)
	if err != nil {
		return State{}, err
	}
	intent := w.newIntent(ctx, cell)
	intent.Deps = append(intent.Deps, deps...)

	c, err := w.commit(ctx, EventIssueToken, intent)
	if err != nil {
		return State{}, err
	}

	token := &Token{
		TypeScript: tokenType,
		Issued:     c.outputs[0],
		Amount:     new(big.Int).Set(amount),
	}

	log.Infof("Issued %v tokens of type %v", amount, tokenType.Hash())

	return w.advance(ctx, prev, EventIssueToken, func(s *State) {
		s.Token = token
		s.TokenCell = fn.Some(c.outputs[0])
	})
}

// DeployWalletLock deploys the wallet lock code stored under name into a
// cell locked by the owner.
func (w *Workflow) DeployWalletLock(ctx context.Context, prev State,
	name string) (State, error) {

	if err := guard(prev, EventDeployWalletLock); err != nil {
		return State{}, err
	}

	code, err := w.deployCode(ctx, EventDeployWalletLock, name, w.cfg.Owner)
	if err != nil {
		return State{}, err
	}

	log.Infof("Wallet lock %v deployed at %v", code.DataHash,
		code.Ref.OutPoint)

	return w.advance(ctx, prev, EventDeployWalletLock, func(s *State) {
		s.WalletLock = code
	})
}

// WalletParams are the terms of a payment wallet.
type WalletParams struct {
	// CKBRate is the native capacity, in shannons, a use adds to the
	// wallet cell.
	CKBRate uint64

	// TokenRate is the token fee of a use.
	TokenRate *big.Int

	// Deposit is the token amount moved from the owner's token cell into
	// the new wallet cell.
	Deposit *big.Int

	// Unique binds the wallet to a single reusable script. The script is
	// later deployed as an identity cell anchored on an owner cell held
	// back now, so its type hash is known when the wallet is created. The
	// identity code must already be deployed.
	Unique bool
}

// uniqueScriptType returns the identity type of a reusable script deployed
// by a transaction whose first input spends anchor.
func uniqueScriptType(typeIDCode *CodeCell, anchor wire.OutPoint) wire.Script {
	id := txauthor.TypeIDArgs(anchor, 0)
	return typeIDCode.Script(id[:])
}

// pickAnchor returns a plain owner cell the run has not consumed.
func (w *Workflow) pickAnchor(ctx context.Context) (cellref.Ref, error) {
	refs, err := w.cfg.Cells.LiveCells(ctx, w.cfg.Owner)
	if err != nil {
		return cellref.Ref{}, fmt.Errorf("live cells: %w", err)
	}
	for _, r := range refs {
		if r.Cell.IsPlain() && !w.tracker.IsSpent(r.OutPoint) {
			return r, nil
		}
	}
	return cellref.Ref{}, protoerr.New(protoerr.ErrMissingDependency,
		fmt.Sprintf("owner %v", w.cfg.Owner.Hash()), ErrNoScriptAnchor)
}

// typedAs returns a check that output index carries a type script hashing
// to want.
func typedAs(index int, want wire.Hash) skelCheck {
	return func(skel *txauthor.Skeleton) error {
		out := skel.OutputCells()[index]
		if out.Type != nil && out.Type.Hash() == want {
			return nil
		}
		return protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("output %d, bound type %v", index, want),
			ErrScriptTypeMismatch)
	}
}

// CreateWallet creates the payment wallet cell: a token cell locked by the
// wallet lock configured with params. The deposit comes from the owner's
// token cell, whose remainder is returned in a token change cell. Output 0
// is the wallet and output 1 the token change; native change may follow.
func (w *Workflow) CreateWallet(ctx context.Context, prev State,
	params WalletParams) (State, error) {

	if err := guard(prev, EventCreateWallet); err != nil {
		return State{}, err
	}
	if err := checkPositive("token rate", params.TokenRate); err != nil {
		return State{}, err
	}
	if params.Deposit == nil || params.Deposit.Sign() < 0 {
		return State{}, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("deposit %v", params.Deposit),
			ErrInvalidAmount)
	}

	held, heldAmount, err := prev.tokenHeld()
	if err != nil {
		return State{}, err
	}
	if heldAmount.Cmp(params.Deposit) < 0 {
		return State{}, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("deposit %v, holding %v", params.Deposit,
				heldAmount), ErrInsufficientTokens)
	}

	cfg := layout.WalletConfig{
		CKBRate:       params.CKBRate,
		TokenRate:     new(big.Int).Set(params.TokenRate),
		TokenTypeHash: prev.Token.TypeScript.Hash(),
	}
	copy(cfg.OwnerPubkeyHash[:], w.cfg.Owner.Args)

	anchor := fn.None[cellref.Ref]()
	if params.Unique {
		if prev.TypeIDCode == nil {
			return State{}, protoerr.New(protoerr.ErrMissingDependency,
				"unique wallet without type id code", ErrPhaseOrder)
		}
		ref, err := w.pickAnchor(ctx)
		if err != nil {
			return State{}, err
		}
		bound := uniqueScriptType(prev.TypeIDCode, ref.OutPoint).Hash()
		cfg.ReusableScriptTypeHash = &bound
		anchor = fn.Some(ref)
	}
	cfg = cfg.Copy()

	args, err := layout.EncodeWalletConfig(cfg)
	if err != nil {
		return State{}, err
	}
	walletLock := prev.WalletLock.Script(args)
	tokenType := prev.Token.TypeScript

	walletCell, err := tokenCell(walletLock, tokenType, params.Deposit)
	if err != nil {
		return State{}, err
	}
	remainder := new(big.Int).Sub(heldAmount, params.Deposit)
	changeCell, err := tokenCell(w.cfg.Owner, tokenType, remainder)
	if err != nil {
		return State{}, err
	}

	deps, err := codeDeps(prev.TokenDef)
	if err != nil {
		return State{}, err
	}
	intent := w.newIntent(ctx, walletCell, changeCell)
	intent.Deps = append(intent.Deps, deps...)
	intent.Inputs = []cellref.InputRef{held.AsInput()}

	// The anchor is reserved so that no transaction funds itself with it
	// before the script is deployed.
	var anchorIn []cellref.InputRef
	anchor.WhenSome(func(r cellref.Ref) {
		anchorIn = append(anchorIn, r.AsInput())
	})
	if err := w.tracker.Spend(anchorIn...); err != nil {
		return State{}, fmt.Errorf("%s: anchor: %w", EventCreateWallet, err)
	}

	c, err := w.commit(ctx, EventCreateWallet, intent,
		conserves(prev.TokenDef.DataHash))
	if err != nil {
		w.tracker.Release(anchorIn...)
		return State{}, err
	}

	wallet := &Wallet{
		Config: cfg,
		Lock:   walletLock,
		Ref:    c.outputs[0],
		Amount: new(big.Int).Set(params.Deposit),
	}

	log.Infof("Wallet %v created holding %v tokens, %v kept", walletLock.Hash(),
		params.Deposit, remainder)
	if cfg.ReusableScriptTypeHash != nil {
		log.Infof("Wallet %v bound to reusable script type %v",
			walletLock.Hash(), *cfg.ReusableScriptTypeHash)
	}

	return w.advance(ctx, prev, EventCreateWallet, func(s *State) {
		s.Wallet = wallet
		s.TokenCell = fn.Some(c.outputs[1])
		s.ScriptAnchor = anchor
	})
}

// DeployReusableScript deploys the reusable script code stored under name
// into a cell locked by the wallet lock. The code cell of a unique wallet
// is an identity cell whose type hash is the one the wallet is bound to.
func (w *Workflow) DeployReusableScript(ctx context.Context, prev State,
	name string) (State, error) {

	if err := guard(prev, EventDeployScript); err != nil {
		return State{}, err
	}

	var (
		code *CodeCell
		err  error
	)
	if prev.Wallet.Config.ReusableScriptTypeHash != nil {
		code, err = w.deployUniqueScript(ctx, prev, name)
	} else {
		code, err = w.deployCode(ctx, EventDeployScript, name,
			prev.Wallet.Lock)
	}
	if err != nil {
		return State{}, err
	}

	script := &ReusableScript{
		CodeCell:            *code,
		BoundWalletLockHash: prev.Wallet.Lock.Hash(),
	}

	log.Infof("Reusable script %v deployed at %v", code.DataHash,
		code.Ref.OutPoint)

	return w.advance(ctx, prev, EventDeployScript, func(s *State) {
		s.Script = script
		s.ScriptAnchor = fn.None[cellref.Ref]()
	})
}

// deployUniqueScript deploys the reusable script of a unique wallet. The
// wallet's anchor is the first input, and the identity it yields for output
// 0 is checked against the wallet's bound type before anything is signed.
func (w *Workflow) deployUniqueScript(ctx context.Context, prev State,
	name string) (*CodeCell, error) {

	op := EventDeployScript
	anchor, err := prev.ScriptAnchor.UnwrapOrErr(protoerr.New(
		protoerr.ErrMissingDependency, op, ErrNoScriptAnchor,
	))
	if err != nil {
		return nil, err
	}
	if prev.TypeIDCode == nil {
		return nil, protoerr.New(protoerr.ErrMissingDependency,
			op+": no type id code", ErrPhaseOrder)
	}

	code, err := w.readCode(op, name)
	if err != nil {
		return nil, err
	}

	typ := uniqueScriptType(prev.TypeIDCode, anchor.OutPoint)
	cell := sized(wire.NewCell(0, prev.Wallet.Lock, &typ, code))

	deps, err := codeDeps(prev.TypeIDCode)
	if err != nil {
		return nil, err
	}
	intent := w.newIntent(ctx, cell)
	intent.Deps = append(intent.Deps, deps...)
	intent.Inputs = []cellref.InputRef{anchor.AsInput()}
	intent.Funding = w.funding(ctx, w.cfg.Owner, anchor.OutPoint)
	intent.TypeIDOutput = fn.Some(0)

	bound := *prev.Wallet.Config.ReusableScriptTypeHash

	// The anchor was held back for this transaction only.
	w.tracker.Release(anchor.AsInput())
	c, err := w.commit(ctx, op, intent, typedAs(0, bound))
	if err != nil {
		if !w.tracker.IsSpent(anchor.OutPoint) {
			_ = w.tracker.Spend(anchor.AsInput())
		}
		return nil, err
	}

	return newCodeCell(c.outputs[0]), nil
}

// UseReusableScript pays for one use of the reusable script. The
// transaction spends the wallet cell and the owner's token cell and creates,
// in order, the usage proof typed by the reusable script, the wallet cell
// grown by the token fee and the capacity rate, and the owner's token
// change. The fee must equal the wallet's token rate.
func (w *Workflow) UseReusableScript(ctx context.Context, prev State,
	fee *big.Int) (State, error) {

	if err := guard(prev, EventUseScript); err != nil {
		return State{}, err
	}

	wallet := prev.Wallet
	if fee == nil || fee.Cmp(wallet.Config.TokenRate) != 0 {
		return State{}, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("fee %v, token rate %v", fee,
				wallet.Config.TokenRate), ErrFeeMismatch)
	}

	held, heldAmount, err := prev.tokenHeld()
	if err != nil {
		return State{}, err
	}
	if heldAmount.Cmp(fee) < 0 {
		return State{}, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("fee %v, holding %v", fee, heldAmount),
			ErrInsufficientTokens)
	}

	payArgs, err := layout.EncodeLockHashArgs(layout.PaymentArgs,
		wallet.Lock.Hash())
	if err != nil {
		return State{}, err
	}
	usageType := prev.Script.Script(payArgs)
	usage := sized(wire.NewCell(0, w.cfg.Owner, &usageType, nil))

	walletAmount := new(big.Int).Add(wallet.Amount, fee)
	walletCell, err := tokenCell(wallet.Lock, *wallet.Ref.Cell.Type,
		walletAmount)
	if err != nil {
		return State{}, err
	}
	capacity, ok := wire.AddCapacity(wallet.Ref.Cell.Capacity,
		wire.Capacity(wallet.Config.CKBRate))
	if !ok {
		return State{}, protoerr.New(protoerr.ErrValidation,
			"wallet capacity overflows", nil)
	}
	walletCell.Capacity = capacity

	change, err := tokenCell(w.cfg.Owner, prev.Token.TypeScript,
		new(big.Int).Sub(heldAmount, fee))
	if err != nil {
		return State{}, err
	}

	deps, err := codeDeps(
		prev.WalletLock, &prev.Script.CodeCell, prev.TokenDef,
	)
	if err != nil {
		return State{}, err
	}
	intent := w.newIntent(ctx, usage, walletCell, change)
	intent.Deps = append(intent.Deps, deps...)
	intent.Inputs = []cellref.InputRef{
		wallet.Ref.AsInput(),
		held.AsInput(),
	}

	c, err := w.commit(ctx, EventUseScript, intent,
		conserves(prev.TokenDef.DataHash))
	if err != nil {
		return State{}, err
	}

	count := 1
	if prev.Usage != nil {
		count = prev.Usage.Count + 1
	}

	log.Infof("Reusable script used (%d %s), wallet holds %v tokens",
		count, pickNoun(count, "use", "uses"), walletAmount)

	return w.advance(ctx, prev, EventUseScript, func(s *State) {
		s.Usage = &Usage{Proof: c.outputs[0], Count: count}
		s.Wallet = &Wallet{
			Config: wallet.Config,
			Lock:   wallet.Lock,
			Ref:    c.outputs[1],
			Amount: walletAmount,
		}
		s.TokenCell = fn.Some(c.outputs[2])
	})
}
