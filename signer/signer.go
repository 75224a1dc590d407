// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package signer produces secp256k1 blake160 sighash-all witnesses for the
// default lock. It is the reference signer for the workflow; key custody is
// in memory.
package signer

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/WilfredTA/ReuseCoin/netparams"
	"github.com/WilfredTA/ReuseCoin/wallet/txauthor"
	"github.com/WilfredTA/ReuseCoin/wallet/txsizes"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

var (
	// ErrInputMismatch is returned when a skeleton's input cells do not
	// line up with its transaction inputs.
	ErrInputMismatch = errors.New("input cells do not match tx inputs")

	// ErrInvalidKey is returned for a malformed private key.
	ErrInvalidKey = errors.New("invalid private key")
)

// compactSigHeader is the header byte offset SignCompact adds for a
// compressed public key.
const compactSigHeader = 27 + 4

// PubkeyHash returns the blake160 of the compressed public key, the args
// of the default lock.
func PubkeyHash(pub *btcec.PublicKey) [wire.Blake160Size]byte {
	return wire.Blake160(pub.SerializeCompressed())
}

// Keyring holds private keys indexed by the hash of the default lock they
// unlock.
type Keyring struct {
	params *netparams.Params

	mu   sync.RWMutex
	keys map[wire.Hash]*btcec.PrivateKey
}

// NewKeyring returns an empty keyring for the given network.
func NewKeyring(params *netparams.Params) *Keyring {
	return &Keyring{
		params: params,
		keys:   make(map[wire.Hash]*btcec.PrivateKey),
	}
}

// AddKey registers priv and returns the default lock it unlocks.
func (k *Keyring) AddKey(priv *btcec.PrivateKey) wire.Script {
	lock := k.params.Secp256k1Lock(PubkeyHash(priv.PubKey()))

	k.mu.Lock()
	k.keys[lock.Hash()] = priv
	k.mu.Unlock()

	log.Debugf("Added key for lock %v", lock.Hash())

	return lock
}

// ImportHex registers a hex encoded 32 byte private key.
func (k *Keyring) ImportHex(s string) (wire.Script, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return wire.Script{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(b) != btcec.PrivKeyBytesLen {
		return wire.Script{}, fmt.Errorf("%w: got %d bytes, want %d",
			ErrInvalidKey, len(b), btcec.PrivKeyBytesLen)
	}

	priv, _ := btcec.PrivKeyFromBytes(b)
	return k.AddKey(priv), nil
}

// NewKey generates, registers and returns a fresh key and its lock.
func (k *Keyring) NewKey() (*btcec.PrivateKey, wire.Script, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, wire.Script{}, err
	}
	return priv, k.AddKey(priv), nil
}

func (k *Keyring) key(lockHash wire.Hash) (*btcec.PrivateKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	priv, ok := k.keys[lockHash]
	return priv, ok
}

// Sign returns a copy of the skeleton's transaction with a witness for
// every input group locked by a key in the ring. Only witnesses are added;
// every other field of the transaction is unchanged. Groups the ring has no
// key for keep empty witnesses.
func (k *Keyring) Sign(ctx context.Context,
	skel *txauthor.Skeleton) (*wire.Transaction, error) {

	tx := skel.Tx.Copy()
	if len(skel.InputCells) != len(tx.Inputs) {
		return nil, fmt.Errorf("%w: %d cells, %d inputs",
			ErrInputMismatch, len(skel.InputCells), len(tx.Inputs))
	}

	witnesses := make([][]byte, max(len(tx.Inputs), len(tx.Witnesses)))
	copy(witnesses, tx.Witnesses)
	for i := range witnesses {
		if witnesses[i] == nil {
			witnesses[i] = []byte{}
		}
	}

	txHash := tx.Hash()
	for _, group := range lockGroups(skel.InputCells) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		priv, ok := k.key(group.lockHash)
		if !ok {
			continue
		}

		first := group.indices[0]
		args := wire.WitnessArgs{}
		if len(witnesses[first]) > 0 {
			var err error
			args, err = wire.DeserializeWitnessArgs(witnesses[first])
			if err != nil {
				return nil, fmt.Errorf("witness %d: %w", first, err)
			}
		}

		msg := SighashAll(txHash, witnesses, len(tx.Inputs),
			group.indices, args)
		args.Lock = signRecoverable(priv, msg)
		witnesses[first] = args.Serialize()

		log.Tracef("Signed input group %v of tx %v", group.indices,
			txHash)
	}

	tx.Witnesses = witnesses

	return tx, nil
}

type lockGroup struct {
	lockHash wire.Hash
	indices  []int
}

// lockGroups groups input indices by lock hash in order of first
// appearance.
func lockGroups(cells []wire.Cell) []lockGroup {
	var (
		groups []lockGroup
		pos    = make(map[wire.Hash]int)
	)
	for i, c := range cells {
		h := c.Lock.Hash()
		if j, ok := pos[h]; ok {
			groups[j].indices = append(groups[j].indices, i)
			continue
		}
		pos[h] = len(groups)
		groups = append(groups, lockGroup{lockHash: h, indices: []int{i}})
	}
	return groups
}

func writeWitness(h interface{ Write([]byte) (int, error) }, w []byte) {
	h.Write(binary.LittleEndian.AppendUint64(nil, uint64(len(w))))
	h.Write(w)
}

// SighashAll computes the message signed for an input group: the ckbhash of
// the tx hash, the group's first witness with a zeroed 65 byte lock, the
// group's other witnesses, and every witness past the inputs, each prefixed
// with its length as a little endian u64.
func SighashAll(txHash wire.Hash, witnesses [][]byte, numInputs int,
	group []int, first wire.WitnessArgs) wire.Hash {

	first.Lock = make([]byte, txsizes.Secp256k1SignatureSize)

	h := wire.NewHasher()
	h.Write(txHash[:])
	writeWitness(h, first.Serialize())
	for _, i := range group[1:] {
		writeWitness(h, witnesses[i])
	}
	for i := numInputs; i < len(witnesses); i++ {
		writeWitness(h, witnesses[i])
	}

	var msg wire.Hash
	copy(msg[:], h.Sum(nil))
	return msg
}

// signRecoverable returns the 65 byte r || s || recovery id signature.
func signRecoverable(priv *btcec.PrivateKey, msg wire.Hash) []byte {
	compact := ecdsa.SignCompact(priv, msg[:], true)

	sig := make([]byte, 0, txsizes.Secp256k1SignatureSize)
	sig = append(sig, compact[1:]...)
	return append(sig, compact[0]-compactSigHeader)
}

// RecoverPubKey recovers the public key from a 65 byte signature over msg.
func RecoverPubKey(sig []byte, msg wire.Hash) (*btcec.PublicKey, error) {
	if len(sig) != txsizes.Secp256k1SignatureSize {
		return nil, fmt.Errorf("signature has %d bytes", len(sig))
	}

	compact := make([]byte, 0, len(sig))
	compact = append(compact, sig[64]+compactSigHeader)
	compact = append(compact, sig[:64]...)

	pub, _, err := ecdsa.RecoverCompact(compact, msg[:])
	return pub, err
}
