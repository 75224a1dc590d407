// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package runstore persists workflow runs so an interrupted run can resume
// from its last committed phase.
//
// Every run lives in its own bucket, keyed by run id, under the top level
// runs bucket:
//
//	runs/
//	  vers            -> uint32 store version
//	  date            -> uint64 creation time
//	  <run id>/
//	    state         -> TLV encoded wallet.State
//	    spent         -> concatenated 36 byte out points
//	    updated       -> uint64 time of the last record
package runstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/WilfredTA/ReuseCoin/internal/cfgutil"
	"github.com/WilfredTA/ReuseCoin/wallet"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/google/uuid"

	// Register the bolt backed walletdb driver.
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
)

const (
	// LatestVersion is the most recent store version.
	LatestVersion = 1

	dbDriver = "bdb"
)

var byteOrder = binary.BigEndian

var (
	bucketRuns = []byte("runs")

	rootVersion    = []byte("vers")
	rootCreateDate = []byte("date")

	keyState   = []byte("state")
	keySpent   = []byte("spent")
	keyUpdated = []byte("updated")
)

var (
	// ErrRunNotFound is returned when no run with the requested id has
	// been recorded.
	ErrRunNotFound = errors.New("run not found")

	// ErrUnknownVersion is returned when the database was written by a
	// newer version of the store.
	ErrUnknownVersion = errors.New("unknown run store version")
)

// RunInfo summarizes a recorded run.
type RunInfo struct {
	ID      uuid.UUID
	Phase   wallet.Phase
	Updated time.Time
}

// Store records the states of workflow runs in a walletdb database.
type Store struct {
	db walletdb.DB
}

// A compile-time assertion to ensure Store satisfies the wallet.Journal
// interface.
var _ wallet.Journal = (*Store)(nil)

// Open opens the run store database at path, creating it and its parent
// directory if needed. timeout bounds the wait for the database file lock.
func Open(path string, timeout time.Duration) (*Store, error) {
	exists, err := cfgutil.FileExists(path)
	if err != nil {
		return nil, err
	}

	var db walletdb.DB
	if exists {
		db, err = walletdb.Open(dbDriver, path, false, timeout, false)
	} else {
		err = os.MkdirAll(filepath.Dir(path), 0700)
		if err != nil {
			return nil, err
		}
		db, err = walletdb.Create(dbDriver, path, false, timeout, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open run store %s: %w", path, err)
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Infof("Opened run store %s", path)

	return s, nil
}

// New returns a store over an open database, initializing the runs bucket
// when the database is new.
func New(db walletdb.DB) (*Store, error) {
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(bucketRuns)
		if ns != nil {
			return checkVersion(ns)
		}

		ns, err := tx.CreateTopLevelBucket(bucketRuns)
		if err != nil {
			return err
		}

		v := make([]byte, 4)
		byteOrder.PutUint32(v, LatestVersion)
		if err := ns.Put(rootVersion, v); err != nil {
			return fmt.Errorf("failed to store version: %w", err)
		}

		return ns.Put(rootCreateDate, putTime(time.Now()))
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func checkVersion(ns walletdb.ReadBucket) error {
	v := ns.Get(rootVersion)
	if len(v) != 4 {
		return corrupt("store version", nil)
	}

	version := byteOrder.Uint32(v)
	if version > LatestVersion {
		return fmt.Errorf("%w: recorded version %d is newer than "+
			"latest understood version %d", ErrUnknownVersion,
			version, LatestVersion)
	}

	// No upgrades yet.
	return nil
}

func putTime(t time.Time) []byte {
	v := make([]byte, 8)
	byteOrder.PutUint64(v, uint64(t.Unix()))
	return v
}

func fetchTime(v []byte) time.Time {
	if len(v) != 8 {
		return time.Time{}
	}
	return time.Unix(int64(byteOrder.Uint64(v)), 0)
}

// Record stores s as the latest state of its run together with the out
// points the run has spent, replacing any earlier record.
func (s *Store) Record(ctx context.Context, state wallet.State,
	spent []wire.OutPoint) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	stateBytes, err := encodeState(state)
	if err != nil {
		return fmt.Errorf("encode run %v: %w", state.RunID, err)
	}
	spentBytes := encodeSpent(spent)

	err = walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(bucketRuns)
		run, err := ns.CreateBucketIfNotExists(state.RunID[:])
		if err != nil {
			return err
		}

		if err := run.Put(keyState, stateBytes); err != nil {
			return err
		}
		if err := run.Put(keySpent, spentBytes); err != nil {
			return err
		}
		return run.Put(keyUpdated, putTime(time.Now()))
	})
	if err != nil {
		return fmt.Errorf("record run %v: %w", state.RunID, err)
	}

	log.Debugf("Recorded run %v at phase %v with %d spent cells",
		state.RunID, state.Phase, len(spent))

	return nil
}

// Load returns the latest recorded state of a run and the out points it had
// spent. ErrRunNotFound is returned for an unknown run.
func (s *Store) Load(runID uuid.UUID) (wallet.State, []wire.OutPoint, error) {
	var (
		state wallet.State
		spent []wire.OutPoint
	)
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		run := tx.ReadBucket(bucketRuns).NestedReadBucket(runID[:])
		if run == nil {
			return fmt.Errorf("%w: %v", ErrRunNotFound, runID)
		}

		var err error
		state, err = decodeState(run.Get(keyState))
		if err != nil {
			return err
		}
		spent, err = decodeSpent(run.Get(keySpent))
		return err
	})
	if err != nil {
		return wallet.State{}, nil, err
	}

	if state.RunID != runID {
		return wallet.State{}, nil, corrupt(fmt.Sprintf("run %v "+
			"recorded under %v", state.RunID, runID), nil)
	}

	return state, spent, nil
}

// Runs lists the recorded runs, most recently updated first.
func (s *Store) Runs() ([]RunInfo, error) {
	var runs []RunInfo
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(bucketRuns)
		return ns.ForEach(func(k, v []byte) error {
			// Only nested buckets have nil values.
			if v != nil {
				return nil
			}

			run := ns.NestedReadBucket(k)
			state, err := decodeState(run.Get(keyState))
			if err != nil {
				return err
			}
			runs = append(runs, RunInfo{
				ID:      state.RunID,
				Phase:   state.Phase,
				Updated: fetchTime(run.Get(keyUpdated)),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Updated.After(runs[j].Updated)
	})

	return runs, nil
}

// Delete removes a run. ErrRunNotFound is returned for an unknown run.
func (s *Store) Delete(runID uuid.UUID) error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(bucketRuns)
		if ns.NestedReadWriteBucket(runID[:]) == nil {
			return fmt.Errorf("%w: %v", ErrRunNotFound, runID)
		}
		return ns.DeleteNestedBucket(runID[:])
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
