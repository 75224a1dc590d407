// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// CodeStore provides the compiled code of the protocol's scripts by name.
type CodeStore interface {
	// ReadBytes returns the code stored under name.
	ReadBytes(name string) ([]byte, error)
}

// Signer authorizes assembled transactions.
type Signer interface {
	// Sign returns the skeleton's transaction with witnesses added for
	// the input groups it holds keys for. It must not change any other
	// field of the transaction.
	Sign(ctx context.Context, skel *txauthor.Skeleton) (*wire.Transaction,
		error)
}

// Submitter hands transactions to the ledger.
type Submitter interface {
	// Submit sends a signed transaction and returns its hash.
	Submit(ctx context.Context, tx *wire.Transaction) (wire.Hash, error)

	// WaitForCommit blocks until the transaction is committed. A
	// rejection is reported with the ledger's reason code.
	WaitForCommit(ctx context.Context, txHash wire.Hash) error
}

// CellCollector lists the live cells that can fund transactions.
type CellCollector interface {
	LiveCells(ctx context.Context, lock wire.Script) ([]cellref.Ref, error)
}

// Journal persists the state reached after every committed phase together
// with the out points the run has consumed, so that an interrupted run can
// be resumed.
type Journal interface {
	Record(ctx context.Context, s State, spent []wire.OutPoint) error
}
