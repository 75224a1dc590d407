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
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// TransferToken sends amount tokens from the owner's token cell to
// recipient. Output 0 is the recipient's cell; the remainder, if any, is
// returned to the owner in output 1.
func (w *Workflow) TransferToken(ctx context.Context, prev State,
	recipient wire.Script, amount *big.Int) (State, error) {

	if err := guard(prev, EventTransferToken); err != nil {
		return State{}, err
	}
	if err := checkPositive("transfer amount", amount); err != nil {
		return State{}, err
	}

	held, heldAmount, err := prev.tokenHeld()
	if err != nil {
		return State{}, err
	}
	if heldAmount.Cmp(amount) < 0 {
		return State{}, protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("transfer %v, holding %v", amount,
				heldAmount), ErrInsufficientTokens)
	}

	tokenType := prev.Token.TypeScript
	sent, err := tokenCell(recipient, tokenType, amount)
	if err != nil {
		return State{}, err
	}
	outputs := []wire.Cell{sent}

	remainder := new(big.Int).Sub(heldAmount, amount)
	if remainder.Sign() > 0 {
		change, err := tokenCell(w.cfg.Owner, tokenType, remainder)
		if err != nil {
			return State{}, err
		}
		outputs = append(outputs, change)
	}

	deps, err := codeDeps(prev.TokenDef)
	if err != nil {
		return State{}, err
	}
	intent := w.newIntent(ctx, outputs...)
	intent.Deps = append(intent.Deps, deps...)
	intent.Inputs = []cellref.InputRef{held.AsInput()}

	c, err := w.commit(ctx, EventTransferToken, intent,
		conserves(prev.TokenDef.DataHash))
	if err != nil {
		return State{}, err
	}

	holding := fn.None[cellref.Ref]()
	if remainder.Sign() > 0 {
		holding = fn.Some(c.outputs[1])
	}

	log.Infof("Transferred %v tokens to %v, %v kept", amount,
		recipient.Hash(), remainder)

	return w.advance(ctx, prev, EventTransferToken, func(s *State) {
		s.LastTransfer = &Transfer{
			Recipient: recipient.Copy(),
			Sent:      c.outputs[0],
			Amount:    new(big.Int).Set(amount),
		}
		s.TokenCell = holding
	})
}
