// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/signer"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wire"
)

// Script exit codes reported by the simulated scripts. They match the codes
// of the deployed validators.
const (
	ExitArgumentsLen = -1
	ExitEncoding     = -2

	// Default secp256k1 lock.
	ExitSecpRecoverPubkey = -11
	ExitPubkeyHash        = -31

	// Token type.
	ExitTokenOverflow = -51
	ExitTokenAmount   = -52

	// Wallet lock.
	ExitUniqueScriptViolation   = -49
	ExitUniqueScriptMissingType = -50
	ExitUniqueScriptMismatch    = -51
	ExitWalletMissingType       = -53
	ExitWalletWrongTokenType    = -54
	ExitTooManyWallets          = -55
	ExitNoInputWallet           = -56
	ExitNoOutputWallet          = -57
	ExitWalletUnlock            = -58

	// Reusable payment script.
	ExitPaymentWallet = -53

	// Type ID.
	ExitTypeIDViolation = -61
)

// witnesses returns the transaction's witnesses padded with empty ones up
// to the number of inputs.
func witnesses(tx *wire.Transaction) [][]byte {
	w := make([][]byte, max(len(tx.Inputs), len(tx.Witnesses)))
	copy(w, tx.Witnesses)
	for i := range w {
		if w[i] == nil {
			w[i] = []byte{}
		}
	}
	return w
}

// groupLockSig returns the lock field of the group's first witness, nil if
// there is none.
func groupLockSig(g *ScriptGroup) (wire.WitnessArgs, []byte, bool) {
	w := witnesses(g.Tx.Tx)[g.Inputs[0]]
	if len(w) == 0 {
		return wire.WitnessArgs{}, nil, true
	}
	args, err := wire.DeserializeWitnessArgs(w)
	if err != nil {
		return wire.WitnessArgs{}, nil, false
	}
	return args, args.Lock, true
}

// verifySighashAll checks the group's signature against a public key hash
// and returns the script exit code, zero on success.
func verifySighashAll(g *ScriptGroup, pubkeyHash []byte) int64 {
	args, sig, ok := groupLockSig(g)
	if !ok || len(sig) == 0 {
		return ExitEncoding
	}

	tx := g.Tx.Tx
	msg := signer.SighashAll(g.Tx.Hash, witnesses(tx), len(tx.Inputs),
		g.Inputs, args)
	pub, err := signer.RecoverPubKey(sig, msg)
	if err != nil {
		return ExitSecpRecoverPubkey
	}

	h := signer.PubkeyHash(pub)
	if !bytes.Equal(h[:], pubkeyHash) {
		return ExitPubkeyHash
	}
	return 0
}

// Secp256k1Rule verifies the default lock: the group's first witness must
// carry a signature by the key hashed into the args.
func Secp256k1Rule(params *netparams.Params) ScriptRule {
	r := ScriptRule{
		Name:     "secp256k1_blake160_sighash_all",
		CodeHash: params.Secp256k1CodeHash,
		HashType: wire.HashTypeType,
	}
	r.Verify = func(g *ScriptGroup) error {
		if len(g.Script.Args) != wire.Blake160Size {
			return r.fail(ExitArgumentsLen)
		}
		if code := verifySighashAll(g, g.Script.Args); code != 0 {
			return r.fail(code)
		}
		return nil
	}
	return r
}

// groupAmount sums the token amounts of the given cells.
func groupAmount(cells []wire.Cell, indices []int) (*big.Int, int64) {
	sum := new(big.Int)
	for _, i := range indices {
		if len(cells[i].Data) < layout.TokenAmount.Size() {
			return nil, ExitEncoding
		}
		amount, err := layout.DecodeAmount(
			cells[i].Data[:layout.TokenAmount.Size()],
		)
		if err != nil {
			return nil, ExitEncoding
		}
		sum.Add(sum, amount)
	}
	if sum.Cmp(layout.MaxTokenAmount) > 0 {
		return nil, ExitTokenOverflow
	}
	return sum, 0
}

// TokenRule verifies the fungible token type whose definition code has the
// given data hash. A transaction spending a cell locked by the governance
// lock named in the args may mint; any other may not create tokens.
func TokenRule(tokenCode wire.Hash) ScriptRule {
	r := ScriptRule{
		Name:     "token",
		CodeHash: tokenCode,
		HashType: wire.HashTypeData,
	}
	r.Verify = func(g *ScriptGroup) error {
		if len(g.Script.Args) != layout.GovernanceArgs.Size() {
			return r.fail(ExitArgumentsLen)
		}
		for _, in := range g.Tx.Inputs {
			h := in.Lock.Hash()
			if bytes.Equal(h[:], g.Script.Args) {
				return nil
			}
		}

		in, code := groupAmount(g.Tx.Inputs, g.Inputs)
		if code != 0 {
			return r.fail(code)
		}
		out, code := groupAmount(g.Tx.Outputs, g.Outputs)
		if code != 0 {
			return r.fail(code)
		}
		if in.Cmp(out) < 0 {
			return r.fail(ExitTokenAmount)
		}
		return nil
	}
	return r
}

// walletSide is the single wallet cell found on one side of a
// transaction.
type walletSide struct {
	amount   *big.Int
	capacity wire.Capacity
	count    int
}

// add records a candidate wallet cell and returns a non-zero exit code if
// it may not be one.
func (w *walletSide) add(c wire.Cell, tokenType wire.Hash) int64 {
	if c.Type == nil {
		return ExitWalletMissingType
	}
	if c.Type.Hash() != tokenType {
		return ExitWalletWrongTokenType
	}
	w.count++
	if w.count > 1 {
		return ExitTooManyWallets
	}
	if len(c.Data) != layout.TokenAmount.Size() {
		return ExitEncoding
	}
	amount, err := layout.DecodeAmount(c.Data)
	if err != nil {
		return ExitEncoding
	}
	w.amount = amount
	w.capacity = c.Capacity
	return 0
}

// WalletRule verifies the wallet lock whose code has the given data hash.
// The owner unlocks the wallet with a signature; anyone else may spend it
// only into a single successor that holds at least the configured token
// rate more and either the same capacity or at least the configured
// capacity rate more.
func WalletRule(walletCode wire.Hash) ScriptRule {
	r := ScriptRule{
		Name:     "reuse_coin_wallet",
		CodeHash: walletCode,
		HashType: wire.HashTypeData,
	}
	r.Verify = func(g *ScriptGroup) error {
		cfg, err := layout.DecodeWalletConfig(g.Script.Args)
		if err != nil {
			return r.fail(ExitArgumentsLen)
		}
		if code := r.verifyDeps(g, cfg); code != 0 {
			return r.fail(code)
		}

		lockHash := g.Script.Hash()

		var in walletSide
		for _, i := range g.Inputs {
			code := in.add(g.Tx.Inputs[i], cfg.TokenTypeHash)
			if code != 0 {
				return r.fail(code)
			}
		}
		if in.count == 0 {
			return r.fail(ExitNoInputWallet)
		}

		var out walletSide
		for _, c := range g.Tx.Outputs {
			if c.Lock.Hash() != lockHash {
				continue
			}
			if code := out.add(c, cfg.TokenTypeHash); code != 0 {
				return r.fail(code)
			}
		}
		if out.count == 0 {
			return r.fail(ExitNoOutputWallet)
		}

		_, sig, ok := groupLockSig(g)
		if !ok {
			return r.fail(ExitEncoding)
		}
		if len(sig) > 0 &&
			verifySighashAll(g, cfg.OwnerPubkeyHash[:]) == 0 {

			return nil
		}

		ckbRate := wire.Capacity(cfg.CKBRate)
		capacityPaid := out.capacity == in.capacity ||
			(out.capacity > in.capacity &&
				out.capacity-in.capacity >= ckbRate)

		diff := new(big.Int).Sub(out.amount, in.amount)
		tokenPaid := diff.Sign() > 0 && diff.Cmp(cfg.TokenRate) >= 0

		if !capacityPaid || !tokenPaid {
			return r.fail(ExitWalletUnlock)
		}
		return nil
	}
	return r
}

// verifyDeps enforces unique mode: at most one dep locked by the wallet,
// and that dep must carry the bound reusable script type.
func (r ScriptRule) verifyDeps(g *ScriptGroup, cfg layout.WalletConfig) int64 {
	if cfg.ReusableScriptTypeHash == nil {
		return 0
	}

	lockHash := g.Script.Hash()
	count := 0
	for _, dep := range g.Tx.Deps {
		if dep.Lock.Hash() != lockHash {
			continue
		}
		count++
		if count > 1 {
			return ExitUniqueScriptViolation
		}
		if dep.Type == nil {
			return ExitUniqueScriptMissingType
		}
		if dep.Type.Hash() != *cfg.ReusableScriptTypeHash {
			return ExitUniqueScriptMismatch
		}
	}
	return 0
}

// PaymentRule verifies the usage type of a reusable script whose code has
// the given data hash: the wallet named in the args must be spent exactly
// once and recreated exactly once.
func PaymentRule(scriptCode wire.Hash) ScriptRule {
	r := ScriptRule{
		Name:     "reuse_coin_payment",
		CodeHash: scriptCode,
		HashType: wire.HashTypeData,
	}
	r.Verify = func(g *ScriptGroup) error {
		if len(g.Script.Args) < wire.HashSize {
			return r.fail(ExitEncoding)
		}
		var wallet wire.Hash
		copy(wallet[:], g.Script.Args)

		count := func(cells []wire.Cell) int {
			n := 0
			for _, c := range cells {
				if c.Lock.Hash() == wallet {
					n++
				}
			}
			return n
		}
		if count(g.Tx.Inputs) != 1 || count(g.Tx.Outputs) != 1 {
			return r.fail(ExitPaymentWallet)
		}
		return nil
	}
	return r
}

// TypeIDRule verifies the identity type whose code has the given data
// hash. A cell is created only with args derived from the transaction's
// first input and its own output index; afterwards the group may hold at
// most one input and one output.
func TypeIDRule(typeIDCode wire.Hash) ScriptRule {
	r := ScriptRule{
		Name:     "type_id",
		CodeHash: typeIDCode,
		HashType: wire.HashTypeData,
	}
	r.Verify = func(g *ScriptGroup) error {
		if len(g.Script.Args) != wire.HashSize {
			return r.fail(ExitTypeIDViolation)
		}
		if len(g.Inputs) > 1 || len(g.Outputs) > 1 {
			return r.fail(ExitTypeIDViolation)
		}
		if len(g.Inputs) == 1 {
			return nil
		}

		first := g.Tx.Tx.Inputs[0].PreviousOutput
		want := txauthor.TypeIDArgs(first, uint64(g.Outputs[0]))
		if !bytes.Equal(want[:], g.Script.Args) {
			return r.fail(ExitTypeIDViolation)
		}
		return nil
	}
	return r
}
