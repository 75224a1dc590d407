// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// fullFormatPrefix marks a full-format address payload: the code hash, hash
// type and args of the lock script.
const fullFormatPrefix = 0x00

// EncodeAddress renders a lock script as a full-format bech32m address with
// the given human readable part ("ckb" on mainnet, "ckt" elsewhere).
func EncodeAddress(hrp string, lock Script) (string, error) {
	payload := make([]byte, 0, 1+HashSize+1+len(lock.Args))
	payload = append(payload, fullFormatPrefix)
	payload = append(payload, lock.CodeHash[:]...)
	payload = append(payload, byte(lock.HashType))
	payload = append(payload, lock.Args...)

	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("unable to convert address payload: %w",
			err)
	}

	return bech32.EncodeM(hrp, conv)
}

// DecodeAddress parses a full-format address and returns its lock script.
// The human readable part must equal hrp.
func DecodeAddress(hrp, addr string) (Script, error) {
	gotHRP, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return Script{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if gotHRP != hrp {
		return Script{}, fmt.Errorf("address %q is for network %q, "+
			"want %q", addr, gotHRP, hrp)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Script{}, fmt.Errorf("unable to convert address payload: %w",
			err)
	}
	if len(payload) < 1+HashSize+1 || payload[0] != fullFormatPrefix {
		return Script{}, fmt.Errorf("address %q is not a full-format "+
			"address", addr)
	}

	var codeHash Hash
	copy(codeHash[:], payload[1:1+HashSize])
	return NewScript(codeHash, HashType(payload[1+HashSize]),
		payload[2+HashSize:])
}
