// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// DefaultPollInterval is how often WaitForCommit asks the node for
	// the status of a transaction.
	DefaultPollInterval = 2 * time.Second

	// cellsPageSize is the page size of indexer cell queries.
	cellsPageSize = 100
)

// RPCConfig houses the configuration of an RPCClient.
type RPCConfig struct {
	// URL is the node's JSON-RPC endpoint.
	URL string

	// HTTPClient is used for every request. http.DefaultClient is used
	// when nil.
	HTTPClient *http.Client

	// PollInterval is the WaitForCommit polling interval.
	PollInterval time.Duration

	// NewTicker, if set, creates the polling ticker of WaitForCommit in
	// place of a ticker firing every PollInterval.
	NewTicker func() ticker.Ticker
}

// RPCClient talks to a node over JSON-RPC.
type RPCClient struct {
	cfg RPCConfig
	id  atomic.Uint64
}

// A compile-time assertion to ensure RPCClient meets the Interface
// interface.
var _ Interface = (*RPCClient)(nil)

// NewRPCClient creates a client connection to the node described by cfg.
func NewRPCClient(cfg *RPCConfig) (*RPCClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}

	c := &RPCClient{cfg: *cfg}
	if c.cfg.HTTPClient == nil {
		c.cfg.HTTPClient = http.DefaultClient
	}
	if c.cfg.PollInterval <= 0 {
		c.cfg.PollInterval = DefaultPollInterval
	}
	return c, nil
}

// BackEnd returns the name of the driver.
func (c *RPCClient) BackEnd() string {
	return "rpc"
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs one JSON-RPC request and decodes its result into result.
// A node error object is returned as *RPCError.
func (c *RPCClient) call(ctx context.Context, method string, result any,
	params ...any) error {

	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.id.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http status %s", method, resp.Status)
	}

	var r rpcResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if r.Error != nil {
		return r.Error
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(r.Result, result)
}

// Submit sends tx to the node's pool. A transaction the pool already holds
// is reported as submitted.
func (c *RPCClient) Submit(ctx context.Context,
	tx *wire.Transaction) (wire.Hash, error) {

	txHash := tx.Hash()

	var got jsonHash
	err := c.call(ctx, "send_transaction", &got,
		toJSONTransaction(tx), "passthrough")

	var rpcErr *RPCError
	switch {
	case errors.As(err, &rpcErr) &&
		rpcErr.Code == CodePoolRejectedDuplicated:

		log.Debugf("Transaction %v already in pool", txHash)
		return txHash, nil

	case err != nil:
		return wire.Hash{}, mapRPCErr("send_transaction", err)
	}

	h, err := got.hash()
	if err != nil {
		return wire.Hash{}, protoerr.New(protoerr.ErrNetwork,
			"send_transaction result", err)
	}
	if h != txHash {
		return wire.Hash{}, protoerr.New(protoerr.ErrNetwork,
			fmt.Sprintf("node returned hash %v for tx %v", h, txHash),
			nil)
	}

	log.Infof("Submitted transaction %v", txHash)
	return txHash, nil
}

// TransactionStatus returns the node's status of a transaction.
func (c *RPCClient) TransactionStatus(ctx context.Context,
	txHash wire.Hash) (TxStatus, error) {

	var res *jsonTxWithStatus
	err := c.call(ctx, "get_transaction", &res, toJSONHash(txHash))
	if err != nil {
		return "", mapRPCErr("get_transaction", err)
	}
	if res == nil {
		return TxStatusUnknown, nil
	}

	status := res.TxStatus
	switch status.Status {
	case TxStatusPending, TxStatusProposed, TxStatusCommitted,
		TxStatusUnknown:

		return status.Status, nil

	case TxStatusRejected:
		reason := ""
		if status.Reason != nil {
			reason = *status.Reason
		}
		return status.Status, rejectedStatus(reason)

	default:
		return status.Status, protoerr.New(protoerr.ErrNetwork,
			"get_transaction", fmt.Errorf("%w: %q",
				ErrUnexpectedStatus, status.Status))
	}
}

func (c *RPCClient) newTicker() ticker.Ticker {
	if c.cfg.NewTicker != nil {
		return c.cfg.NewTicker()
	}
	return ticker.New(c.cfg.PollInterval)
}

// WaitForCommit polls the status of a transaction until it is committed
// or rejected. Transport errors while polling are logged and retried; only
// ctx ends the wait early.
func (c *RPCClient) WaitForCommit(ctx context.Context,
	txHash wire.Hash) error {

	t := c.newTicker()
	t.Resume()
	defer t.Stop()

	for {
		status, err := c.TransactionStatus(ctx, txHash)
		switch {
		case status == TxStatusCommitted:
			log.Infof("Transaction %v committed", txHash)
			return nil

		case status == TxStatusRejected:
			return err

		case ctx.Err() != nil:
			return protoerr.New(protoerr.ErrNetwork,
				fmt.Sprintf("waiting for %v", txHash), ctx.Err())

		case errors.Is(err, protoerr.ErrNetwork):
			log.Warnf("Unable to query status of %v: %v", txHash,
				err)

		case err != nil:
			return err
		}

		log.Tracef("Transaction %v is %v", txHash, status)

		select {
		case <-t.Ticks():
		case <-ctx.Done():
			return protoerr.New(protoerr.ErrNetwork,
				fmt.Sprintf("waiting for %v", txHash), ctx.Err())
		}
	}
}

// LiveCells returns every live cell locked by lock, in the indexer's
// order.
func (c *RPCClient) LiveCells(ctx context.Context,
	lock wire.Script) ([]cellref.Ref, error) {

	key := jsonSearchKey{
		Script:     toJSONScript(lock),
		ScriptType: "lock",
	}

	var (
		refs   []cellref.Ref
		cursor *string
	)
	for {
		var page jsonCellsPage
		err := c.call(ctx, "get_cells", &page, key, "asc",
			hexUint64(cellsPageSize), cursor)
		if err != nil {
			return nil, mapRPCErr("get_cells", err)
		}

		for _, obj := range page.Objects {
			op, err := obj.OutPoint.outPoint()
			if err != nil {
				return nil, protoerr.New(protoerr.ErrNetwork,
					"get_cells", err)
			}
			cell, err := obj.Output.cell(obj.OutputData)
			if err != nil {
				return nil, protoerr.New(protoerr.ErrNetwork,
					"get_cells", err)
			}
			refs = append(refs, cellref.NewRef(op, cell))
		}

		if len(page.Objects) < cellsPageSize {
			return refs, nil
		}
		last := page.LastCursor
		cursor = &last
	}
}

// LiveCell returns a live cell with its data.
func (c *RPCClient) LiveCell(ctx context.Context,
	op wire.OutPoint) (wire.Cell, error) {

	var res jsonLiveCell
	err := c.call(ctx, "get_live_cell", &res, toJSONOutPoint(op), true)
	if err != nil {
		return wire.Cell{}, mapRPCErr("get_live_cell", err)
	}
	if res.Status != "live" || res.Cell == nil {
		return wire.Cell{}, protoerr.New(protoerr.ErrMissingDependency,
			fmt.Sprintf("cell %v is %s", op, res.Status), ErrDeadCell)
	}

	var data []byte
	if res.Cell.Data != nil {
		data = res.Cell.Data.Content
	}
	cell, err := res.Cell.Output.cell(data)
	if err != nil {
		return wire.Cell{}, protoerr.New(protoerr.ErrNetwork,
			"get_live_cell", err)
	}
	return cell, nil
}
