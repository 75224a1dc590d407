// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// BackEnds returns a list of the available back ends.
func BackEnds() []string {
	return []string{
		"rpc",
		"simnet",
	}
}

// Interface allows more than one ledger back end, such as a node's JSON-RPC
// server or the in-process simulated ledger, to serve the workflow.
type Interface interface {
	// Submit hands a signed transaction to the ledger and returns its
	// hash. Submitting a transaction the ledger already holds succeeds.
	Submit(ctx context.Context, tx *wire.Transaction) (wire.Hash, error)

	// WaitForCommit blocks until the transaction is committed, rejected,
	// or ctx is done.
	WaitForCommit(ctx context.Context, txHash wire.Hash) error

	// LiveCells returns the live cells locked by lock.
	LiveCells(ctx context.Context, lock wire.Script) ([]cellref.Ref, error)

	// LiveCell returns a live cell. Dead or unknown cells fail with
	// ErrDeadCell.
	LiveCell(ctx context.Context, op wire.OutPoint) (wire.Cell, error)

	BackEnd() string
}

// TxStatus is the ledger's view of a transaction.
type TxStatus string

// Transaction statuses reported by the ledger.
const (
	TxStatusPending   TxStatus = "pending"
	TxStatusProposed  TxStatus = "proposed"
	TxStatusCommitted TxStatus = "committed"
	TxStatusRejected  TxStatus = "rejected"
	TxStatusUnknown   TxStatus = "unknown"
)
