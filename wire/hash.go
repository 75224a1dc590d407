// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	blake2b "github.com/minio/blake2b-simd"
)

// HashSize is the size of every hash on the ledger in bytes.
const HashSize = 32

// Blake160Size is the size of a truncated ckbhash used as a public key
// hash in lock arguments.
const Blake160Size = 20

// personalization is the BLAKE2b personalization the ledger uses for every
// hash it computes.
var personalization = []byte("ckb-default-hash")

// Hash is a 32-byte ckbhash digest.
type Hash [HashSize]byte

// String returns the 0x-prefixed hex form of the hash.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NewHashFromStr decodes a 0x-prefixed (or bare) 64 character hex string.
func NewHashFromStr(s string) (Hash, error) {
	var h Hash

	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash %q: got %d bytes, want %d",
			s, len(b), HashSize)
	}
	copy(h[:], b)

	return h, nil
}

// NewHasher returns a streaming ckbhash: BLAKE2b-256 personalized with
// "ckb-default-hash".
func NewHasher() hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   HashSize,
		Person: personalization,
	})
	if err != nil {
		// The configuration is static and always valid.
		panic(fmt.Sprintf("blake2b config: %v", err))
	}

	return h
}

// CKBHash computes the ckbhash of the concatenation of the given byte
// slices.
func CKBHash(b ...[]byte) Hash {
	h := NewHasher()
	for _, p := range b {
		h.Write(p)
	}

	var out Hash
	copy(out[:], h.Sum(nil))

	return out
}

// Blake160 returns the first 20 bytes of the ckbhash of b.
func Blake160(b []byte) [Blake160Size]byte {
	full := CKBHash(b)

	var out [Blake160Size]byte
	copy(out[:], full[:Blake160Size])

	return out
}
