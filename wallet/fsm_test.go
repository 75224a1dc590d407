// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"testing"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/stretchr/testify/require"
)

func TestPhaseStrings(t *testing.T) {
	t.Parallel()

	for p := PhaseInit; p <= PhaseScriptUsed; p++ {
		got, err := ParsePhase(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}

	_, err := ParsePhase("deployed")
	require.Error(t, err)
	require.Equal(t, "Unknown Phase (42)", Phase(42).String())
}

func TestGuard(t *testing.T) {
	t.Parallel()

	withTypeIDCode := State{TypeIDCode: &CodeCell{}}
	withTypeID := State{TypeIDCode: &CodeCell{}, TypeID: &TypeIDCell{}}

	testCases := []struct {
		name    string
		state   State
		event   string
		allowed bool
		next    Phase
	}{
		{
			name:    "deploy definition first",
			state:   State{Phase: PhaseInit},
			event:   EventDeployTokenDef,
			allowed: true,
			next:    PhaseTokenDefDeployed,
		},
		{
			name:  "issue before definition",
			state: State{Phase: PhaseInit},
			event: EventIssueToken,
		},
		{
			name:  "wallet before lock",
			state: State{Phase: PhaseTokenIssued},
			event: EventCreateWallet,
		},
		{
			name:  "use before deployment",
			state: State{Phase: PhaseWalletCreated},
			event: EventUseScript,
		},
		{
			name:    "first use",
			state:   State{Phase: PhaseScriptDeployed},
			event:   EventUseScript,
			allowed: true,
			next:    PhaseScriptUsed,
		},
		{
			name:    "repeated use",
			state:   State{Phase: PhaseScriptUsed},
			event:   EventUseScript,
			allowed: true,
			next:    PhaseScriptUsed,
		},
		{
			name:  "transfer before issue",
			state: State{Phase: PhaseTokenDefDeployed},
			event: EventTransferToken,
		},
		{
			name:    "transfer keeps phase",
			state:   State{Phase: PhaseWalletCreated},
			event:   EventTransferToken,
			allowed: true,
			next:    PhaseWalletCreated,
		},
		{
			name:    "type id code in any phase",
			state:   State{Phase: PhaseScriptUsed},
			event:   EventDeployTypeIDCode,
			allowed: true,
			next:    PhaseScriptUsed,
		},
		{
			name:  "type id cell before code",
			state: State{Phase: PhaseInit},
			event: EventCreateTypeID,
		},
		{
			name:    "type id cell after code",
			state:   withTypeIDCode,
			event:   EventCreateTypeID,
			allowed: true,
		},
		{
			name:  "type id update before create",
			state: withTypeIDCode,
			event: EventUpdateTypeID,
		},
		{
			name:    "type id update",
			state:   withTypeID,
			event:   EventUpdateTypeID,
			allowed: true,
		},
		{
			name:  "type id code twice",
			state: withTypeID,
			event: EventDeployTypeIDCode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := guard(tc.state, tc.event)
			if !tc.allowed {
				require.ErrorIs(t, err, protoerr.ErrMissingDependency)
				require.ErrorIs(t, err, ErrPhaseOrder)
				return
			}
			require.NoError(t, err)

			next, err := nextPhase(context.Background(), tc.state,
				tc.event)
			require.NoError(t, err)
			require.Equal(t, tc.next, next)
		})
	}
}

// TestStateWith checks that deriving a state leaves the original intact.
func TestStateWith(t *testing.T) {
	t.Parallel()

	prev := NewState([16]byte{1})
	next := prev.with(func(s *State) {
		s.Phase = PhaseTokenDefDeployed
		s.TokenDef = &CodeCell{}
	})

	require.Equal(t, PhaseInit, prev.Phase)
	require.Nil(t, prev.TokenDef)
	require.Equal(t, prev.RunID, next.RunID)
	require.NotNil(t, next.TokenDef)

	_, _, err := prev.tokenHeld()
	require.ErrorIs(t, err, protoerr.ErrMissingDependency)
}
