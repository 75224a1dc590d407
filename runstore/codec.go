// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package runstore

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeRefOutPoint tlv.Type = 1
	typeRefOutput   tlv.Type = 2
	typeRefData     tlv.Type = 3

	typeCodeDataHash tlv.Type = 1
	typeCodeRef      tlv.Type = 2

	typeTokenType   tlv.Type = 1
	typeTokenIssued tlv.Type = 2
	typeTokenAmount tlv.Type = 3

	typeWalletConfig tlv.Type = 1
	typeWalletLock   tlv.Type = 2
	typeWalletRef    tlv.Type = 3
	typeWalletAmount tlv.Type = 4

	typeScriptCode      tlv.Type = 1
	typeScriptBoundLock tlv.Type = 2

	typeUsageProof tlv.Type = 1
	typeUsageCount tlv.Type = 2

	typeTypeIDID      tlv.Type = 1
	typeTypeIDRef     tlv.Type = 2
	typeTypeIDVersion tlv.Type = 3

	typeTransferRecipient tlv.Type = 1
	typeTransferSent      tlv.Type = 2
	typeTransferAmount    tlv.Type = 3

	typeStateRunID        tlv.Type = 1
	typeStatePhase        tlv.Type = 2
	typeStateTokenDef     tlv.Type = 3
	typeStateToken        tlv.Type = 4
	typeStateWalletLock   tlv.Type = 5
	typeStateWallet       tlv.Type = 6
	typeStateScript       tlv.Type = 7
	typeStateUsage        tlv.Type = 8
	typeStateTokenCell    tlv.Type = 9
	typeStateTypeIDCode   tlv.Type = 10
	typeStateTypeID       tlv.Type = 11
	typeStateLastTransfer tlv.Type = 12
	typeStateScriptAnchor tlv.Type = 13
)

// identitySize is the width of a serialized out point in the spent set.
const identitySize = wire.HashSize + 4

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("corrupt run record")

func corrupt(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrCorrupt, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
}

// encodeStream encodes records, which must be sorted by type, as a TLV
// stream.
func encodeStream(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeStream decodes b into records and reports which types were present.
func decodeStream(b []byte, records ...tlv.Record) (tlv.TypeMap, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}
	return stream.DecodeWithParsedTypes(bytes.NewReader(b))
}

// checkPresent fails unless every type in types was decoded.
func checkPresent(parsed tlv.TypeMap, what string, types ...tlv.Type) error {
	for _, typ := range types {
		if _, ok := parsed[typ]; !ok {
			return corrupt(fmt.Sprintf("%s: missing type %d", what,
				typ), nil)
		}
	}
	return nil
}

func encodeRef(r cellref.Ref) ([]byte, error) {
	op := layout.EncodeIdentity(r.OutPoint)
	out := r.Cell.CellOutput.Serialize()
	data := r.Cell.Data

	return encodeStream(
		tlv.MakePrimitiveRecord(typeRefOutPoint, &op),
		tlv.MakePrimitiveRecord(typeRefOutput, &out),
		tlv.MakePrimitiveRecord(typeRefData, &data),
	)
}

func decodeRef(b []byte) (cellref.Ref, error) {
	var op, out, data []byte
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeRefOutPoint, &op),
		tlv.MakePrimitiveRecord(typeRefOutput, &out),
		tlv.MakePrimitiveRecord(typeRefData, &data),
	)
	if err != nil {
		return cellref.Ref{}, corrupt("cell ref", err)
	}
	err = checkPresent(parsed, "cell ref", typeRefOutPoint, typeRefOutput)
	if err != nil {
		return cellref.Ref{}, err
	}

	outPoint, err := layout.DecodeIdentity(op)
	if err != nil {
		return cellref.Ref{}, corrupt("cell ref out point", err)
	}
	output, err := wire.DeserializeCellOutput(out)
	if err != nil {
		return cellref.Ref{}, corrupt("cell ref output", err)
	}

	cell := wire.Cell{CellOutput: output}
	if len(data) > 0 {
		cell.Data = data
	}
	return cellref.NewRef(outPoint, cell), nil
}

func encodeAmount(a *big.Int) []byte {
	if a == nil {
		return nil
	}
	return a.Bytes()
}

func decodeAmount(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func encodeCodeCell(c *wallet.CodeCell) ([]byte, error) {
	ref, err := encodeRef(c.Ref)
	if err != nil {
		return nil, err
	}
	hash := [wire.HashSize]byte(c.DataHash)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeCodeDataHash, &hash),
		tlv.MakePrimitiveRecord(typeCodeRef, &ref),
	)
}

func decodeCodeCell(b []byte) (*wallet.CodeCell, error) {
	var (
		hash [wire.HashSize]byte
		ref  []byte
	)
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeCodeDataHash, &hash),
		tlv.MakePrimitiveRecord(typeCodeRef, &ref),
	)
	if err != nil {
		return nil, corrupt("code cell", err)
	}
	err = checkPresent(parsed, "code cell", typeCodeDataHash, typeCodeRef)
	if err != nil {
		return nil, err
	}

	r, err := decodeRef(ref)
	if err != nil {
		return nil, err
	}
	return &wallet.CodeCell{DataHash: wire.Hash(hash), Ref: r}, nil
}

func encodeToken(t *wallet.Token) ([]byte, error) {
	typ := t.TypeScript.Serialize()
	issued, err := encodeRef(t.Issued)
	if err != nil {
		return nil, err
	}
	amount := encodeAmount(t.Amount)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeTokenType, &typ),
		tlv.MakePrimitiveRecord(typeTokenIssued, &issued),
		tlv.MakePrimitiveRecord(typeTokenAmount, &amount),
	)
}

func decodeToken(b []byte) (*wallet.Token, error) {
	var typ, issued, amount []byte
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeTokenType, &typ),
		tlv.MakePrimitiveRecord(typeTokenIssued, &issued),
		tlv.MakePrimitiveRecord(typeTokenAmount, &amount),
	)
	if err != nil {
		return nil, corrupt("token", err)
	}
	err = checkPresent(parsed, "token", typeTokenType, typeTokenIssued,
		typeTokenAmount)
	if err != nil {
		return nil, err
	}

	script, err := wire.DeserializeScript(typ)
	if err != nil {
		return nil, corrupt("token type script", err)
	}
	ref, err := decodeRef(issued)
	if err != nil {
		return nil, err
	}

	return &wallet.Token{
		TypeScript: script,
		Issued:     ref,
		Amount:     decodeAmount(amount),
	}, nil
}

func encodeWallet(w *wallet.Wallet) ([]byte, error) {
	config, err := layout.EncodeWalletConfig(w.Config)
	if err != nil {
		return nil, err
	}
	lock := w.Lock.Serialize()
	ref, err := encodeRef(w.Ref)
	if err != nil {
		return nil, err
	}
	amount := encodeAmount(w.Amount)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeWalletConfig, &config),
		tlv.MakePrimitiveRecord(typeWalletLock, &lock),
		tlv.MakePrimitiveRecord(typeWalletRef, &ref),
		tlv.MakePrimitiveRecord(typeWalletAmount, &amount),
	)
}

func decodeWallet(b []byte) (*wallet.Wallet, error) {
	var config, lock, ref, amount []byte
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeWalletConfig, &config),
		tlv.MakePrimitiveRecord(typeWalletLock, &lock),
		tlv.MakePrimitiveRecord(typeWalletRef, &ref),
		tlv.MakePrimitiveRecord(typeWalletAmount, &amount),
	)
	if err != nil {
		return nil, corrupt("wallet", err)
	}
	err = checkPresent(parsed, "wallet", typeWalletConfig, typeWalletLock,
		typeWalletRef, typeWalletAmount)
	if err != nil {
		return nil, err
	}

	cfg, err := layout.DecodeWalletConfig(config)
	if err != nil {
		return nil, corrupt("wallet config", err)
	}
	script, err := wire.DeserializeScript(lock)
	if err != nil {
		return nil, corrupt("wallet lock", err)
	}
	r, err := decodeRef(ref)
	if err != nil {
		return nil, err
	}

	return &wallet.Wallet{
		Config: cfg,
		Lock:   script,
		Ref:    r,
		Amount: decodeAmount(amount),
	}, nil
}

func encodeReusableScript(s *wallet.ReusableScript) ([]byte, error) {
	code, err := encodeCodeCell(&s.CodeCell)
	if err != nil {
		return nil, err
	}
	bound := [wire.HashSize]byte(s.BoundWalletLockHash)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeScriptCode, &code),
		tlv.MakePrimitiveRecord(typeScriptBoundLock, &bound),
	)
}

func decodeReusableScript(b []byte) (*wallet.ReusableScript, error) {
	var (
		code  []byte
		bound [wire.HashSize]byte
	)
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeScriptCode, &code),
		tlv.MakePrimitiveRecord(typeScriptBoundLock, &bound),
	)
	if err != nil {
		return nil, corrupt("reusable script", err)
	}
	err = checkPresent(parsed, "reusable script", typeScriptCode,
		typeScriptBoundLock)
	if err != nil {
		return nil, err
	}

	c, err := decodeCodeCell(code)
	if err != nil {
		return nil, err
	}
	return &wallet.ReusableScript{
		CodeCell:            *c,
		BoundWalletLockHash: wire.Hash(bound),
	}, nil
}

func encodeUsage(u *wallet.Usage) ([]byte, error) {
	proof, err := encodeRef(u.Proof)
	if err != nil {
		return nil, err
	}
	count := uint64(u.Count)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeUsageProof, &proof),
		tlv.MakePrimitiveRecord(typeUsageCount, &count),
	)
}

func decodeUsage(b []byte) (*wallet.Usage, error) {
	var (
		proof []byte
		count uint64
	)
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeUsageProof, &proof),
		tlv.MakePrimitiveRecord(typeUsageCount, &count),
	)
	if err != nil {
		return nil, corrupt("usage", err)
	}
	err = checkPresent(parsed, "usage", typeUsageProof, typeUsageCount)
	if err != nil {
		return nil, err
	}

	r, err := decodeRef(proof)
	if err != nil {
		return nil, err
	}
	return &wallet.Usage{Proof: r, Count: int(count)}, nil
}

func encodeTypeIDCell(c *wallet.TypeIDCell) ([]byte, error) {
	id := [wire.HashSize]byte(c.ID)
	ref, err := encodeRef(c.Ref)
	if err != nil {
		return nil, err
	}
	version := uint64(c.Version)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeTypeIDID, &id),
		tlv.MakePrimitiveRecord(typeTypeIDRef, &ref),
		tlv.MakePrimitiveRecord(typeTypeIDVersion, &version),
	)
}

func decodeTypeIDCell(b []byte) (*wallet.TypeIDCell, error) {
	var (
		id      [wire.HashSize]byte
		ref     []byte
		version uint64
	)
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeTypeIDID, &id),
		tlv.MakePrimitiveRecord(typeTypeIDRef, &ref),
		tlv.MakePrimitiveRecord(typeTypeIDVersion, &version),
	)
	if err != nil {
		return nil, corrupt("type id cell", err)
	}
	err = checkPresent(parsed, "type id cell", typeTypeIDID, typeTypeIDRef,
		typeTypeIDVersion)
	if err != nil {
		return nil, err
	}

	r, err := decodeRef(ref)
	if err != nil {
		return nil, err
	}
	return &wallet.TypeIDCell{
		ID:      wire.Hash(id),
		Ref:     r,
		Version: int(version),
	}, nil
}

func encodeTransfer(t *wallet.Transfer) ([]byte, error) {
	recipient := t.Recipient.Serialize()
	sent, err := encodeRef(t.Sent)
	if err != nil {
		return nil, err
	}
	amount := encodeAmount(t.Amount)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeTransferRecipient, &recipient),
		tlv.MakePrimitiveRecord(typeTransferSent, &sent),
		tlv.MakePrimitiveRecord(typeTransferAmount, &amount),
	)
}

func decodeTransfer(b []byte) (*wallet.Transfer, error) {
	var recipient, sent, amount []byte
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeTransferRecipient, &recipient),
		tlv.MakePrimitiveRecord(typeTransferSent, &sent),
		tlv.MakePrimitiveRecord(typeTransferAmount, &amount),
	)
	if err != nil {
		return nil, corrupt("transfer", err)
	}
	err = checkPresent(parsed, "transfer", typeTransferRecipient,
		typeTransferSent, typeTransferAmount)
	if err != nil {
		return nil, err
	}

	script, err := wire.DeserializeScript(recipient)
	if err != nil {
		return nil, corrupt("transfer recipient", err)
	}
	r, err := decodeRef(sent)
	if err != nil {
		return nil, err
	}
	return &wallet.Transfer{
		Recipient: script,
		Sent:      r,
		Amount:    decodeAmount(amount),
	}, nil
}

// optional appends a record of type typ holding the encoding of v when v is
// set.
func optional[T any](records []tlv.Record, typ tlv.Type, v *T,
	encode func(*T) ([]byte, error)) ([]tlv.Record, error) {

	if v == nil {
		return records, nil
	}
	b, err := encode(v)
	if err != nil {
		return nil, err
	}
	return append(records, tlv.MakePrimitiveRecord(typ, &b)), nil
}

// decodeOptional decodes b when typ was present in the stream.
func decodeOptional[T any](parsed tlv.TypeMap, typ tlv.Type, b []byte,
	decode func([]byte) (*T, error)) (*T, error) {

	if _, ok := parsed[typ]; !ok {
		return nil, nil
	}
	return decode(b)
}

// encodeState serializes a run state as a TLV stream. Unset phase outputs
// are omitted.
func encodeState(s wallet.State) ([]byte, error) {
	runID := s.RunID[:]
	phase := uint8(s.Phase)
	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeStateRunID, &runID),
		tlv.MakePrimitiveRecord(typeStatePhase, &phase),
	}

	var err error
	records, err = optional(records, typeStateTokenDef, s.TokenDef,
		encodeCodeCell)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateToken, s.Token, encodeToken)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateWalletLock, s.WalletLock,
		encodeCodeCell)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateWallet, s.Wallet,
		encodeWallet)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateScript, s.Script,
		encodeReusableScript)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateUsage, s.Usage, encodeUsage)
	if err != nil {
		return nil, err
	}
	records, err = optionalRef(records, typeStateTokenCell, s.TokenCell)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateTypeIDCode, s.TypeIDCode,
		encodeCodeCell)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateTypeID, s.TypeID,
		encodeTypeIDCell)
	if err != nil {
		return nil, err
	}
	records, err = optional(records, typeStateLastTransfer, s.LastTransfer,
		encodeTransfer)
	if err != nil {
		return nil, err
	}
	records, err = optionalRef(records, typeStateScriptAnchor,
		s.ScriptAnchor)
	if err != nil {
		return nil, err
	}

	return encodeStream(records...)
}

// optionalRef appends a record of typ holding ref when it is set.
func optionalRef(records []tlv.Record, typ tlv.Type,
	ref fn.Option[cellref.Ref]) ([]tlv.Record, error) {

	if ref.IsNone() {
		return records, nil
	}
	r := ref.UnwrapOr(cellref.Ref{})
	return optional(records, typ, &r, func(v *cellref.Ref) ([]byte, error) {
		return encodeRef(*v)
	})
}

// decodeOptionalRef decodes the record of typ when it was present.
func decodeOptionalRef(parsed tlv.TypeMap, typ tlv.Type,
	b []byte) (fn.Option[cellref.Ref], error) {

	if _, ok := parsed[typ]; !ok {
		return fn.None[cellref.Ref](), nil
	}
	ref, err := decodeRef(b)
	if err != nil {
		return fn.None[cellref.Ref](), err
	}
	return fn.Some(ref), nil
}

// decodeState is the inverse of encodeState.
func decodeState(b []byte) (wallet.State, error) {
	var (
		runID, tokenDef, token, walletLock, walletB []byte
		script, usage, tokenCell, typeIDCode        []byte
		typeID, lastTransfer, scriptAnchor          []byte
		phase                                       uint8
	)
	parsed, err := decodeStream(b,
		tlv.MakePrimitiveRecord(typeStateRunID, &runID),
		tlv.MakePrimitiveRecord(typeStatePhase, &phase),
		tlv.MakePrimitiveRecord(typeStateTokenDef, &tokenDef),
		tlv.MakePrimitiveRecord(typeStateToken, &token),
		tlv.MakePrimitiveRecord(typeStateWalletLock, &walletLock),
		tlv.MakePrimitiveRecord(typeStateWallet, &walletB),
		tlv.MakePrimitiveRecord(typeStateScript, &script),
		tlv.MakePrimitiveRecord(typeStateUsage, &usage),
		tlv.MakePrimitiveRecord(typeStateTokenCell, &tokenCell),
		tlv.MakePrimitiveRecord(typeStateTypeIDCode, &typeIDCode),
		tlv.MakePrimitiveRecord(typeStateTypeID, &typeID),
		tlv.MakePrimitiveRecord(typeStateLastTransfer, &lastTransfer),
		tlv.MakePrimitiveRecord(typeStateScriptAnchor, &scriptAnchor),
	)
	if err != nil {
		return wallet.State{}, corrupt("state", err)
	}
	err = checkPresent(parsed, "state", typeStateRunID, typeStatePhase)
	if err != nil {
		return wallet.State{}, err
	}

	id, err := uuid.FromBytes(runID)
	if err != nil {
		return wallet.State{}, corrupt("run id", err)
	}
	s := wallet.NewState(id)
	s.Phase = wallet.Phase(phase)
	if _, err := wallet.ParsePhase(s.Phase.String()); err != nil {
		return wallet.State{}, corrupt("phase", err)
	}

	if s.TokenDef, err = decodeOptional(parsed, typeStateTokenDef,
		tokenDef, decodeCodeCell); err != nil {

		return wallet.State{}, err
	}
	if s.Token, err = decodeOptional(parsed, typeStateToken, token,
		decodeToken); err != nil {

		return wallet.State{}, err
	}
	if s.WalletLock, err = decodeOptional(parsed, typeStateWalletLock,
		walletLock, decodeCodeCell); err != nil {

		return wallet.State{}, err
	}
	if s.Wallet, err = decodeOptional(parsed, typeStateWallet, walletB,
		decodeWallet); err != nil {

		return wallet.State{}, err
	}
	if s.Script, err = decodeOptional(parsed, typeStateScript, script,
		decodeReusableScript); err != nil {

		return wallet.State{}, err
	}
	if s.Usage, err = decodeOptional(parsed, typeStateUsage, usage,
		decodeUsage); err != nil {

		return wallet.State{}, err
	}
	if s.TokenCell, err = decodeOptionalRef(parsed, typeStateTokenCell,
		tokenCell); err != nil {

		return wallet.State{}, err
	}
	if s.TypeIDCode, err = decodeOptional(parsed, typeStateTypeIDCode,
		typeIDCode, decodeCodeCell); err != nil {

		return wallet.State{}, err
	}
	if s.TypeID, err = decodeOptional(parsed, typeStateTypeID, typeID,
		decodeTypeIDCell); err != nil {

		return wallet.State{}, err
	}
	if s.LastTransfer, err = decodeOptional(parsed, typeStateLastTransfer,
		lastTransfer, decodeTransfer); err != nil {

		return wallet.State{}, err
	}
	if s.ScriptAnchor, err = decodeOptionalRef(parsed,
		typeStateScriptAnchor, scriptAnchor); err != nil {

		return wallet.State{}, err
	}

	return s, nil
}

// encodeSpent serializes the spent set as concatenated identity records.
func encodeSpent(ops []wire.OutPoint) []byte {
	b := make([]byte, 0, len(ops)*identitySize)
	for _, op := range ops {
		b = append(b, layout.EncodeIdentity(op)...)
	}
	return b
}

func decodeSpent(b []byte) ([]wire.OutPoint, error) {
	if len(b)%identitySize != 0 {
		return nil, corrupt(fmt.Sprintf("spent set of %d bytes",
			len(b)), nil)
	}

	ops := make([]wire.OutPoint, 0, len(b)/identitySize)
	for len(b) > 0 {
		op, err := layout.DecodeIdentity(b[:identitySize])
		if err != nil {
			return nil, corrupt("spent out point", err)
		}
		ops = append(ops, op)
		b = b[identitySize:]
	}
	return ops, nil
}
