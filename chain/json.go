// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/WilfredTA/ReuseCoin/wire"
)

// hexUint64 is a number in the node's 0x-prefixed hex notation.
type hexUint64 uint64

func (h hexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + strconv.FormatUint(uint64(h), 16))
}

func (h *hexUint64) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("number %q lacks 0x prefix", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return fmt.Errorf("number %q: %w", s, err)
	}
	*h = hexUint64(v)
	return nil
}

// hexBytes is a byte string in 0x-prefixed hex notation.
type hexBytes []byte

func (h hexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h))
}

func (h *hexBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return fmt.Errorf("bytes %q: %w", s, err)
	}
	*h = raw
	return nil
}

type jsonHash string

func toJSONHash(h wire.Hash) jsonHash {
	return jsonHash(h.String())
}

func (h jsonHash) hash() (wire.Hash, error) {
	return wire.NewHashFromStr(string(h))
}

type jsonScript struct {
	CodeHash jsonHash `json:"code_hash"`
	HashType string   `json:"hash_type"`
	Args     hexBytes `json:"args"`
}

func toJSONScript(s wire.Script) jsonScript {
	return jsonScript{
		CodeHash: toJSONHash(s.CodeHash),
		HashType: s.HashType.String(),
		Args:     hexBytes(s.Args),
	}
}

func (s jsonScript) script() (wire.Script, error) {
	codeHash, err := s.CodeHash.hash()
	if err != nil {
		return wire.Script{}, err
	}
	hashType, err := wire.ParseHashType(s.HashType)
	if err != nil {
		return wire.Script{}, err
	}
	return wire.NewScript(codeHash, hashType, s.Args)
}

type jsonOutPoint struct {
	TxHash jsonHash  `json:"tx_hash"`
	Index  hexUint64 `json:"index"`
}

func toJSONOutPoint(op wire.OutPoint) jsonOutPoint {
	return jsonOutPoint{
		TxHash: toJSONHash(op.TxHash),
		Index:  hexUint64(op.Index),
	}
}

func (o jsonOutPoint) outPoint() (wire.OutPoint, error) {
	h, err := o.TxHash.hash()
	if err != nil {
		return wire.OutPoint{}, err
	}
	if o.Index > 0xffffffff {
		return wire.OutPoint{}, fmt.Errorf("out point index %d out of "+
			"range", uint64(o.Index))
	}
	return wire.NewOutPoint(h, uint32(o.Index)), nil
}

type jsonCellDep struct {
	OutPoint jsonOutPoint `json:"out_point"`
	DepType  string       `json:"dep_type"`
}

type jsonCellInput struct {
	Since          hexUint64    `json:"since"`
	PreviousOutput jsonOutPoint `json:"previous_output"`
}

type jsonCellOutput struct {
	Capacity hexUint64   `json:"capacity"`
	Lock     jsonScript  `json:"lock"`
	Type     *jsonScript `json:"type"`
}

func toJSONCellOutput(o wire.CellOutput) jsonCellOutput {
	out := jsonCellOutput{
		Capacity: hexUint64(o.Capacity),
		Lock:     toJSONScript(o.Lock),
	}
	if o.Type != nil {
		typ := toJSONScript(*o.Type)
		out.Type = &typ
	}
	return out
}

func (o jsonCellOutput) cell(data []byte) (wire.Cell, error) {
	lock, err := o.Lock.script()
	if err != nil {
		return wire.Cell{}, fmt.Errorf("lock: %w", err)
	}
	var typ *wire.Script
	if o.Type != nil {
		s, err := o.Type.script()
		if err != nil {
			return wire.Cell{}, fmt.Errorf("type: %w", err)
		}
		typ = &s
	}
	return wire.NewCell(wire.Capacity(o.Capacity), lock, typ, data), nil
}

type jsonTransaction struct {
	Version     hexUint64        `json:"version"`
	CellDeps    []jsonCellDep    `json:"cell_deps"`
	HeaderDeps  []jsonHash       `json:"header_deps"`
	Inputs      []jsonCellInput  `json:"inputs"`
	Outputs     []jsonCellOutput `json:"outputs"`
	OutputsData []hexBytes       `json:"outputs_data"`
	Witnesses   []hexBytes       `json:"witnesses"`
}

// toJSONTransaction converts tx to the node's JSON form. Empty lists are
// kept as empty arrays, which the node requires.
func toJSONTransaction(tx *wire.Transaction) jsonTransaction {
	j := jsonTransaction{
		Version:     hexUint64(tx.Version),
		CellDeps:    make([]jsonCellDep, 0, len(tx.CellDeps)),
		HeaderDeps:  make([]jsonHash, 0, len(tx.HeaderDeps)),
		Inputs:      make([]jsonCellInput, 0, len(tx.Inputs)),
		Outputs:     make([]jsonCellOutput, 0, len(tx.Outputs)),
		OutputsData: make([]hexBytes, 0, len(tx.OutputsData)),
		Witnesses:   make([]hexBytes, 0, len(tx.Witnesses)),
	}
	for _, d := range tx.CellDeps {
		j.CellDeps = append(j.CellDeps, jsonCellDep{
			OutPoint: toJSONOutPoint(d.OutPoint),
			DepType:  d.DepType.String(),
		})
	}
	for _, h := range tx.HeaderDeps {
		j.HeaderDeps = append(j.HeaderDeps, toJSONHash(h))
	}
	for _, in := range tx.Inputs {
		j.Inputs = append(j.Inputs, jsonCellInput{
			Since:          hexUint64(in.Since),
			PreviousOutput: toJSONOutPoint(in.PreviousOutput),
		})
	}
	for _, o := range tx.Outputs {
		j.Outputs = append(j.Outputs, toJSONCellOutput(o))
	}
	for _, d := range tx.OutputsData {
		j.OutputsData = append(j.OutputsData, hexBytes(d))
	}
	for _, w := range tx.Witnesses {
		j.Witnesses = append(j.Witnesses, hexBytes(w))
	}
	return j
}

type jsonTxStatus struct {
	Status    TxStatus `json:"status"`
	BlockHash *string  `json:"block_hash"`
	Reason    *string  `json:"reason"`
}

type jsonTxWithStatus struct {
	TxStatus jsonTxStatus `json:"tx_status"`
}

type jsonSearchKey struct {
	Script     jsonScript `json:"script"`
	ScriptType string     `json:"script_type"`
}

type jsonIndexerCell struct {
	Output     jsonCellOutput `json:"output"`
	OutputData hexBytes       `json:"output_data"`
	OutPoint   jsonOutPoint   `json:"out_point"`
}

type jsonCellsPage struct {
	Objects    []jsonIndexerCell `json:"objects"`
	LastCursor string            `json:"last_cursor"`
}

type jsonCellData struct {
	Content hexBytes `json:"content"`
	Hash    jsonHash `json:"hash"`
}

type jsonLiveCell struct {
	Cell *struct {
		Output jsonCellOutput `json:"output"`
		Data   *jsonCellData  `json:"data"`
	} `json:"cell"`
	Status string `json:"status"`
}
