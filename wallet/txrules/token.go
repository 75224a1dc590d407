// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// ErrTokenNotConserved is returned when the token amounts of a non-issuance
// transaction do not balance.
var ErrTokenNotConserved = errors.New("token amounts not conserved")

// IsTokenCell reports whether c is an instance of the token whose
// definition code has the given data hash.
func IsTokenCell(c wire.Cell, tokenCode wire.Hash) bool {
	return c.Type != nil && c.Type.CodeHash == tokenCode &&
		c.Type.HashType == wire.HashTypeData &&
		len(c.Type.Args) == layout.GovernanceArgs.Size()
}

// TokenBalances sums the amounts of every token instance in cells, keyed by
// the instance's type hash.
func TokenBalances(cells []wire.Cell,
	tokenCode wire.Hash) (map[wire.Hash]*big.Int, error) {

	sums := make(map[wire.Hash]*big.Int)
	for i, c := range cells {
		if !IsTokenCell(c, tokenCode) {
			continue
		}

		amount, err := layout.DecodeAmount(c.Data)
		if err != nil {
			return nil, fmt.Errorf("token cell %d: %w", i, err)
		}

		h := c.Type.Hash()
		if sums[h] == nil {
			sums[h] = new(big.Int)
		}
		sums[h].Add(sums[h], amount)
	}

	return sums, nil
}

// IsIssuance reports whether a token of type typ may be minted by a
// transaction spending inputs: one of the inputs must be locked by the
// governance lock named in the type args.
func IsIssuance(typ wire.Script, inputs []wire.Cell) bool {
	gov, err := layout.DecodeLockHashArgs(layout.GovernanceArgs, typ.Args)
	if err != nil {
		return false
	}
	for _, in := range inputs {
		if in.Lock.Hash() == gov {
			return true
		}
	}
	return false
}

// CheckTokenConservation verifies that, for every token type touched by
// the transaction, the output amounts equal the input amounts. Types the
// transaction is entitled to issue are skipped.
func CheckTokenConservation(inputs, outputs []wire.Cell,
	tokenCode wire.Hash) error {

	in, err := TokenBalances(inputs, tokenCode)
	if err != nil {
		return err
	}
	out, err := TokenBalances(outputs, tokenCode)
	if err != nil {
		return err
	}

	scripts := make(map[wire.Hash]wire.Script)
	for _, c := range append(append([]wire.Cell(nil), inputs...), outputs...) {
		if IsTokenCell(c, tokenCode) {
			scripts[c.Type.Hash()] = *c.Type
		}
	}

	hashes := make([]wire.Hash, 0, len(scripts))
	for h := range scripts {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].String() < hashes[j].String()
	})

	zero := new(big.Int)
	for _, h := range hashes {
		if IsIssuance(scripts[h], inputs) {
			continue
		}

		inSum, outSum := in[h], out[h]
		if inSum == nil {
			inSum = zero
		}
		if outSum == nil {
			outSum = zero
		}
		if inSum.Cmp(outSum) != 0 {
			desc := fmt.Sprintf("token %v: inputs %v, outputs %v",
				h, inSum, outSum)
			return protoerr.New(protoerr.ErrValidation, desc,
				ErrTokenNotConserved)
		}
	}

	return nil
}
