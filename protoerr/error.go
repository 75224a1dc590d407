// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package protoerr defines the error classes every reuse-coin operation
// reports. Specific causes are sentinel errors in the package that detects
// them; they are wrapped in an Error carrying one of the classes below so
// callers can branch on either.
package protoerr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrValidation indicates bad input detected locally before anything
	// was submitted: an out of range amount, a layout mismatch, an output
	// below its minimum capacity, or token amounts that do not balance.
	ErrValidation ErrorCode = iota

	// ErrMissingDependency indicates that a required earlier state, code
	// cell, or dep was not available.
	ErrMissingDependency

	// ErrDoubleSpend indicates that a cell reference was consumed twice
	// within one run.
	ErrDoubleSpend

	// ErrNetwork indicates that the ledger could not be reached or did
	// not answer.
	ErrNetwork

	// ErrConsensusRejected indicates that the ledger rejected the
	// transaction. The Reason field of the Error holds the ledger's
	// numeric reason code when one was reported.
	ErrConsensusRejected
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrValidation:        "ErrValidation",
	ErrMissingDependency: "ErrMissingDependency",
	ErrDoubleSpend:       "ErrDoubleSpend",
	ErrNetwork:           "ErrNetwork",
	ErrConsensusRejected: "ErrConsensusRejected",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error lets an ErrorCode be used directly as an errors.Is target.
func (e ErrorCode) Error() string {
	return e.String()
}

// Error provides a single type for every failure the workflow reports.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error

	// Reason is the ledger's numeric reason code. It is only meaningful
	// when HasReason is set.
	Reason    int64
	HasReason bool
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	s := e.Description
	if e.HasReason {
		s = fmt.Sprintf("%s (reason %d)", s, e.Reason)
	}
	if e.Err != nil {
		return s + ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e Error) Unwrap() error {
	return e.Err
}

// Is matches an ErrorCode target against the error's class.
func (e Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.ErrorCode
}

// New creates an Error given a set of arguments.
func New(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// Rejected creates a ConsensusRejected error carrying the ledger's reason
// code.
func Rejected(desc string, reason int64, err error) Error {
	return Error{
		ErrorCode:   ErrConsensusRejected,
		Description: desc,
		Err:         err,
		Reason:      reason,
		HasReason:   true,
	}
}

// Code returns the class of err if it is or wraps an Error.
func Code(err error) (ErrorCode, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.ErrorCode, true
	}
	return 0, false
}

// ReasonCode returns the ledger reason code carried by err, if any.
func ReasonCode(err error) (int64, bool) {
	var e Error
	if errors.As(err, &e) && e.HasReason {
		return e.Reason, true
	}
	return 0, false
}
