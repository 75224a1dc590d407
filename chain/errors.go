// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/WilfredTA/ReuseCoin/protoerr"
)

// Node JSON-RPC error codes the client distinguishes.
const (
	// CodeTxFailedToResolve is returned when an input or dep does not
	// name a live cell.
	CodeTxFailedToResolve int64 = -301

	// CodeTxFailedToVerify is returned when a script or a structural
	// rule fails. The script's own exit code is embedded in the message.
	CodeTxFailedToVerify int64 = -302

	// CodePoolRejectedMinFeeRate is returned when the fee is below the
	// pool's minimum fee rate.
	CodePoolRejectedMinFeeRate int64 = -1104

	// CodePoolRejectedDuplicated is returned for a transaction the pool
	// already holds.
	CodePoolRejectedDuplicated int64 = -1107

	// CodePoolRejectedRBF is returned when an input is already spent by
	// another pooled transaction.
	CodePoolRejectedRBF int64 = -1111
)

var (
	// ErrDeadCell is returned when a referenced cell is not live.
	ErrDeadCell = errors.New("cell is dead or unknown")

	// ErrRejected is returned when the ledger refuses a transaction.
	ErrRejected = errors.New("transaction rejected")

	// ErrUnexpectedStatus is returned for a status the client does not
	// know.
	ErrUnexpectedStatus = errors.New("unexpected transaction status")
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// scriptCodeRe matches the exit code of a failing script in a verification
// message, both in the current "see error code -52" wording and the older
// "ValidationFailure(-52)" one.
var scriptCodeRe = regexp.MustCompile(
	`(?:error code |ValidationFailure\()(-?\d+)`,
)

// scriptErrorCode extracts a script exit code from msg.
func scriptErrorCode(msg string) (int64, bool) {
	m := scriptCodeRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	code, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

// mapRPCErr maps an error of a node call onto the error classes of the
// workflow. Errors that are not node error objects are transport failures.
func mapRPCErr(method string, err error) error {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return protoerr.New(protoerr.ErrNetwork, method, err)
	}

	switch rpcErr.Code {
	case CodeTxFailedToResolve:
		return protoerr.Rejected(method, rpcErr.Code,
			fmt.Errorf("%w: %w", ErrDeadCell, rpcErr))

	case CodeTxFailedToVerify:
		reason := rpcErr.Code
		if code, ok := scriptErrorCode(rpcErr.Message); ok {
			reason = code
		}
		return protoerr.Rejected(method, reason,
			fmt.Errorf("%w: %w", ErrRejected, rpcErr))

	case CodePoolRejectedRBF:
		return protoerr.New(protoerr.ErrDoubleSpend, method, rpcErr)

	default:
		return protoerr.Rejected(method, rpcErr.Code,
			fmt.Errorf("%w: %w", ErrRejected, rpcErr))
	}
}

// rejectedStatus builds the error for a transaction whose status is
// rejected. The node reports the reason as the verification message.
func rejectedStatus(reason string) error {
	code := CodeTxFailedToVerify
	if c, ok := scriptErrorCode(reason); ok {
		code = c
	}
	return protoerr.Rejected("transaction status", code,
		fmt.Errorf("%w: %s", ErrRejected, reason))
}
