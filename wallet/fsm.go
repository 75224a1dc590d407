// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/looplab/fsm"
)

// ErrPhaseOrder is returned when a phase is invoked before the phases it
// builds on have been committed.
var ErrPhaseOrder = errors.New("phase prerequisites not met")

// The events driving a run.
const (
	EventDeployTokenDef   = "deploy_token_definition"
	EventIssueToken       = "issue_token"
	EventDeployWalletLock = "deploy_wallet_lock"
	EventCreateWallet     = "create_wallet"
	EventDeployScript     = "deploy_reusable_script"
	EventUseScript        = "use_reusable_script"
	EventTransferToken    = "transfer_token"

	EventDeployTypeIDCode = "deploy_type_id_code"
	EventCreateTypeID     = "create_type_id_cell"
	EventUpdateTypeID     = "update_type_id_cell"
)

// tokenPhases are the phases in which the owner holds a token cell.
var tokenPhases = []Phase{
	PhaseTokenIssued,
	PhaseWalletLockDeployed,
	PhaseWalletCreated,
	PhaseScriptDeployed,
	PhaseScriptUsed,
}

// phaseEvents is the transition table of the deployment sequence.
func phaseEvents() fsm.Events {
	events := fsm.Events{
		{
			Name: EventDeployTokenDef,
			Src:  []string{PhaseInit.String()},
			Dst:  PhaseTokenDefDeployed.String(),
		},
		{
			Name: EventIssueToken,
			Src:  []string{PhaseTokenDefDeployed.String()},
			Dst:  PhaseTokenIssued.String(),
		},
		{
			Name: EventDeployWalletLock,
			Src:  []string{PhaseTokenIssued.String()},
			Dst:  PhaseWalletLockDeployed.String(),
		},
		{
			Name: EventCreateWallet,
			Src:  []string{PhaseWalletLockDeployed.String()},
			Dst:  PhaseWalletCreated.String(),
		},
		{
			Name: EventDeployScript,
			Src:  []string{PhaseWalletCreated.String()},
			Dst:  PhaseScriptDeployed.String(),
		},
		{
			Name: EventUseScript,
			Src: []string{
				PhaseScriptDeployed.String(),
				PhaseScriptUsed.String(),
			},
			Dst: PhaseScriptUsed.String(),
		},
	}

	// Transfers leave the phase unchanged.
	for _, p := range tokenPhases {
		events = append(events, fsm.EventDesc{
			Name: EventTransferToken,
			Src:  []string{p.String()},
			Dst:  p.String(),
		})
	}

	return events
}

// The states of the identity cell track, which runs independently of the
// deployment sequence.
const (
	typeIDNone     = "none"
	typeIDCode     = "code_deployed"
	typeIDCellLive = "cell_live"
)

var typeIDEvents = fsm.Events{
	{Name: EventDeployTypeIDCode, Src: []string{typeIDNone}, Dst: typeIDCode},
	{Name: EventCreateTypeID, Src: []string{typeIDCode}, Dst: typeIDCellLive},
	{
		Name: EventUpdateTypeID,
		Src:  []string{typeIDCellLive},
		Dst:  typeIDCellLive,
	},
}

func typeIDState(s State) string {
	switch {
	case s.TypeID != nil:
		return typeIDCellLive
	case s.TypeIDCode != nil:
		return typeIDCode
	default:
		return typeIDNone
	}
}

func isTypeIDEvent(event string) bool {
	switch event {
	case EventDeployTypeIDCode, EventCreateTypeID, EventUpdateTypeID:
		return true
	}
	return false
}

// machine returns the state machine that event belongs to, positioned at
// s.
func machine(s State, event string) *fsm.FSM {
	if isTypeIDEvent(event) {
		return fsm.NewFSM(typeIDState(s), typeIDEvents, fsm.Callbacks{})
	}
	return fsm.NewFSM(s.Phase.String(), phaseEvents(), fsm.Callbacks{})
}

// guard fails with a MissingDependency error unless event may fire in s.
func guard(s State, event string) error {
	f := machine(s, event)
	if f.Can(event) {
		return nil
	}

	desc := fmt.Sprintf("%s not allowed in phase %v", event, s.Phase)
	if isTypeIDEvent(event) {
		desc = fmt.Sprintf("%s not allowed with type id %s", event,
			f.Current())
	}
	return protoerr.New(protoerr.ErrMissingDependency, desc, ErrPhaseOrder)
}

// nextPhase returns the phase of the deployment sequence reached by firing
// event in s. Identity events leave the phase unchanged.
func nextPhase(ctx context.Context, s State, event string) (Phase, error) {
	if isTypeIDEvent(event) {
		return s.Phase, nil
	}

	f := machine(s, event)
	err := f.Event(ctx, event)

	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return 0, err
	}

	return ParsePhase(f.Current())
}
