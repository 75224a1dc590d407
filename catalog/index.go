// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/WilfredTA/ReuseCoin/cellref"
	"github.com/WilfredTA/ReuseCoin/wallet/layout"
	"github.com/WilfredTA/ReuseCoin/wire"
	"golang.org/x/sync/errgroup"
)

// defaultWorkers bounds the concurrent wallet queries of a refresh.
const defaultWorkers = 8

// CellSource returns the live cells under a lock.
type CellSource interface {
	LiveCells(ctx context.Context, lock wire.Script) ([]cellref.Ref, error)
}

// Listing is a catalog entry with the current state of its wallet.
type Listing struct {
	Entry

	// Collected is the fee token amount held under the wallet lock.
	Collected *big.Int

	// Capacity is the native capacity of the wallet cells.
	Capacity wire.Capacity

	// Cells is the number of wallet cells: live cells under the wallet
	// lock typed by the fee token. The script's own code cell, which the
	// wallet lock also guards, is not one of them.
	Cells int
}

// Index joins catalog entries with live wallet balances.
type Index struct {
	catalog Catalog
	cells   CellSource
	workers int
}

// NewIndex returns an index over catalog reading wallets from cells.
func NewIndex(catalog Catalog, cells CellSource) *Index {
	return &Index{catalog: catalog, cells: cells, workers: defaultWorkers}
}

// Refresh returns a listing for every entry. The wallets are queried
// concurrently; the first failure cancels the rest.
func (x *Index) Refresh(ctx context.Context) ([]Listing, error) {
	entries, err := x.catalog.All(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)
	for i, e := range entries {
		g.Go(func() error {
			l, err := x.listing(gctx, e)
			if err != nil {
				return fmt.Errorf("script %q: %w", e.Name, err)
			}
			listings[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debugf("Refreshed %d catalog listings", len(listings))

	return listings, nil
}

// listing sums the wallet cells of e. Cells under the wallet lock that are
// not typed by the entry's fee token are skipped.
func (x *Index) listing(ctx context.Context, e Entry) (Listing, error) {
	refs, err := x.cells.LiveCells(ctx, e.Payment.WalletLock)
	if err != nil {
		return Listing{}, err
	}

	l := Listing{Entry: e, Collected: new(big.Int)}
	for _, ref := range refs {
		typ := ref.Cell.Type
		if typ == nil || typ.Hash() != e.Payment.TokenTypeHash {
			continue
		}

		capacity, ok := wire.AddCapacity(l.Capacity, ref.Cell.Capacity)
		if !ok {
			return Listing{}, errors.New("wallet capacity overflows")
		}
		l.Capacity = capacity
		l.Cells++

		amount, err := layout.DecodeAmount(ref.Cell.Data)
		if err != nil {
			return Listing{}, fmt.Errorf("wallet cell %v: %w",
				ref.OutPoint, err)
		}
		l.Collected.Add(l.Collected, amount)
	}

	return l, nil
}
