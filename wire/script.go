// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrUnknownHashType is returned when a script is built with a hash type the
// ledger does not define.
var ErrUnknownHashType = errors.New("unknown script hash type")

// HashType selects how a script's code hash is matched against the cells a
// transaction lists as dependencies.
type HashType byte

const (
	// HashTypeData matches the ckbhash of a dep cell's data and runs it
	// on the first VM version.
	HashTypeData HashType = 0

	// HashTypeType matches the ckbhash of a dep cell's type script.
	HashTypeType HashType = 1

	// HashTypeData1 matches the data hash like HashTypeData but runs on
	// the second VM version.
	HashTypeData1 HashType = 2
)

// String returns the name used by the ledger's JSON interface.
func (t HashType) String() string {
	switch t {
	case HashTypeData:
		return "data"
	case HashTypeType:
		return "type"
	case HashTypeData1:
		return "data1"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Validate returns ErrUnknownHashType for values outside the enum.
func (t HashType) Validate() error {
	switch t {
	case HashTypeData, HashTypeType, HashTypeData1:
		return nil
	}

	return fmt.Errorf("%w: %d", ErrUnknownHashType, byte(t))
}

// ParseHashType is the inverse of HashType.String.
func ParseHashType(s string) (HashType, error) {
	switch s {
	case "data":
		return HashTypeData, nil
	case "type":
		return HashTypeType, nil
	case "data1":
		return HashTypeData1, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownHashType, s)
}

// Script references on-chain code by hash and carries its arguments. It is
// used both as a cell's lock and as its optional type.
type Script struct {
	CodeHash Hash
	HashType HashType
	Args     []byte
}

// NewScript builds a script, rejecting an invalid hash type. The args slice
// is copied.
func NewScript(codeHash Hash, hashType HashType, args []byte) (Script, error) {
	if err := hashType.Validate(); err != nil {
		return Script{}, err
	}

	return Script{
		CodeHash: codeHash,
		HashType: hashType,
		Args:     bytes.Clone(args),
	}, nil
}

// Hash returns the ckbhash of the script's canonical encoding. Lock and type
// hashes used in arguments are computed with it.
func (s Script) Hash() Hash {
	return CKBHash(s.Serialize())
}

// Equal reports whether two scripts are byte-for-byte identical.
func (s Script) Equal(o Script) bool {
	return s.CodeHash == o.CodeHash && s.HashType == o.HashType &&
		bytes.Equal(s.Args, o.Args)
}

// Copy returns a deep copy of the script.
func (s Script) Copy() Script {
	s.Args = bytes.Clone(s.Args)
	return s
}

// WithArgs returns a copy of the script with its args replaced.
func (s Script) WithArgs(args []byte) Script {
	s.Args = bytes.Clone(args)
	return s
}

// String returns a compact human readable form.
func (s Script) String() string {
	return fmt.Sprintf("%v/%v/0x%x", s.CodeHash, s.HashType, s.Args)
}

// CopyScript deep copies an optional script.
func CopyScript(s *Script) *Script {
	if s == nil {
		return nil
	}

	c := s.Copy()
	return &c
}
