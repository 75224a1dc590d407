// Copyright (c) 2015 The btcsuite developers
// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package txrules provides functions that help establish whether or not a
transaction abides by the ledger's capacity and fee rules, and by the token
conservation rule the token type script enforces.

Occupied Capacity

A cell must hold one CKByte (10^8 shannons) of capacity for every byte it
occupies. The occupied size is the 8 byte capacity field plus the lock
script, the optional type script and the data:

    min = (8 + lock + type + data) * 10^8

where a script occupies 32 bytes of code hash, 1 byte of hash type and its
args.

Fees

Fees are charged per 1000 bytes of the serialized transaction, plus the 4
byte offset the transaction adds to a block.

Token Conservation

For every token type hash the sum of output amounts must equal the sum of
input amounts, unless an input is locked by the governance lock named in the
type args, in which case the transaction may mint.
*/
package txrules
