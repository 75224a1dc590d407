// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TxVersion is the only transaction version the ledger accepts.
const TxVersion = 0

// Transaction is a ledger transaction. Outputs and OutputsData are parallel
// slices. Witnesses are not covered by the transaction hash.
type Transaction struct {
	Version     uint32
	CellDeps    []CellDep
	HeaderDeps  []Hash
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

// NewTransaction returns an empty transaction of the current version.
func NewTransaction() *Transaction {
	return &Transaction{Version: TxVersion}
}

// AddCellDep appends a dependency.
func (tx *Transaction) AddCellDep(dep CellDep) {
	tx.CellDeps = append(tx.CellDeps, dep)
}

// AddInput appends an input spending op.
func (tx *Transaction) AddInput(op OutPoint) {
	tx.Inputs = append(tx.Inputs, CellInput{PreviousOutput: op})
}

// AddOutput appends the cell's header and data and returns its index.
func (tx *Transaction) AddOutput(c Cell) int {
	c = c.Copy()
	tx.Outputs = append(tx.Outputs, c.CellOutput)
	tx.OutputsData = append(tx.OutputsData, c.Data)

	return len(tx.Outputs) - 1
}

// Output returns a copy of output i together with its data.
func (tx *Transaction) Output(i int) Cell {
	return Cell{
		CellOutput: tx.Outputs[i].Copy(),
		Data:       bytes.Clone(tx.OutputsData[i]),
	}
}

// OutPoint returns the out point of output i once the transaction is
// committed under its hash.
func (tx *Transaction) OutPoint(i int) OutPoint {
	return NewOutPoint(tx.Hash(), uint32(i))
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	c := &Transaction{
		Version:    tx.Version,
		CellDeps:   append([]CellDep(nil), tx.CellDeps...),
		HeaderDeps: append([]Hash(nil), tx.HeaderDeps...),
		Inputs:     append([]CellInput(nil), tx.Inputs...),
	}
	for _, o := range tx.Outputs {
		c.Outputs = append(c.Outputs, o.Copy())
	}
	for _, d := range tx.OutputsData {
		c.OutputsData = append(c.OutputsData, bytes.Clone(d))
	}
	for _, w := range tx.Witnesses {
		c.Witnesses = append(c.Witnesses, bytes.Clone(w))
	}

	return c
}

// Validate performs the structural checks that do not need any ledger
// state.
func (tx *Transaction) Validate() error {
	if len(tx.Outputs) != len(tx.OutputsData) {
		return fmt.Errorf("%w: %d outputs with %d data entries",
			ErrMalformed, len(tx.Outputs), len(tx.OutputsData))
	}
	for i, dep := range tx.CellDeps {
		if err := dep.DepType.Validate(); err != nil {
			return fmt.Errorf("cell dep %d: %w", i, err)
		}
	}
	for i, o := range tx.Outputs {
		if err := o.Lock.HashType.Validate(); err != nil {
			return fmt.Errorf("output %d lock: %w", i, err)
		}
		if o.Type != nil {
			if err := o.Type.HashType.Validate(); err != nil {
				return fmt.Errorf("output %d type: %w", i, err)
			}
		}
	}

	return nil
}

// SerializeRaw returns the molecule encoding of the RawTransaction table,
// the part of the transaction that its hash commits to.
func (tx *Transaction) SerializeRaw() []byte {
	deps := make([][]byte, 0, len(tx.CellDeps))
	for _, d := range tx.CellDeps {
		deps = append(deps, d.Serialize())
	}

	headers := make([][]byte, 0, len(tx.HeaderDeps))
	for i := range tx.HeaderDeps {
		headers = append(headers, tx.HeaderDeps[i][:])
	}

	inputs := make([][]byte, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		inputs = append(inputs, in.Serialize())
	}

	outputs := make([][]byte, 0, len(tx.Outputs))
	for _, o := range tx.Outputs {
		outputs = append(outputs, o.Serialize())
	}

	data := make([][]byte, 0, len(tx.OutputsData))
	for _, d := range tx.OutputsData {
		data = append(data, serializeBytes(d))
	}

	return serializeTable(
		binary.LittleEndian.AppendUint32(nil, tx.Version),
		serializeFixVec(deps),
		serializeFixVec(headers),
		serializeFixVec(inputs),
		serializeDynVec(outputs),
		serializeDynVec(data),
	)
}

// Serialize returns the molecule encoding of the full transaction: the raw
// transaction followed by its witnesses.
func (tx *Transaction) Serialize() []byte {
	witnesses := make([][]byte, 0, len(tx.Witnesses))
	for _, w := range tx.Witnesses {
		witnesses = append(witnesses, serializeBytes(w))
	}

	return serializeTable(tx.SerializeRaw(), serializeDynVec(witnesses))
}

// SerializeSize returns the size of the full encoding in bytes.
func (tx *Transaction) SerializeSize() int {
	return len(tx.Serialize())
}

// Hash returns the transaction hash: the ckbhash of the raw transaction.
func (tx *Transaction) Hash() Hash {
	return CKBHash(tx.SerializeRaw())
}

// WitnessArgs is the conventional witness layout. A nil field is encoded as
// an absent option.
type WitnessArgs struct {
	Lock       []byte
	InputType  []byte
	OutputType []byte
}

func serializeBytesOpt(b []byte) []byte {
	if b == nil {
		return nil
	}

	return serializeBytes(b)
}

// Serialize returns the molecule encoding of the witness table.
func (w WitnessArgs) Serialize() []byte {
	return serializeTable(
		serializeBytesOpt(w.Lock),
		serializeBytesOpt(w.InputType),
		serializeBytesOpt(w.OutputType),
	)
}

// DeserializeWitnessArgs decodes a witness table.
func DeserializeWitnessArgs(b []byte) (WitnessArgs, error) {
	fields, err := deserializeTable(b, 3)
	if err != nil {
		return WitnessArgs{}, err
	}

	var (
		w    WitnessArgs
		dsts = []*[]byte{&w.Lock, &w.InputType, &w.OutputType}
	)
	for i, f := range fields {
		if len(f) == 0 {
			continue
		}
		v, err := deserializeBytes(f)
		if err != nil {
			return WitnessArgs{}, err
		}
		*dsts[i] = v
	}

	return w, nil
}
