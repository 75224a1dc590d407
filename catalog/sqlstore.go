// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/WilfredTA/ReuseCoin/wire"
	"github.com/lightningnetwork/lnd/fn/v2"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Drivers returns the names of the supported database drivers.
func Drivers() []string {
	return []string{DriverSQLite, DriverPostgres}
}

// The statements below are shared by Postgres and SQLite. Hashes are stored
// as 0x prefixed hex and token amounts as decimal text so both backends see
// identical values.
const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS scripts (
			data_hash TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			author TEXT NOT NULL,
			code_tx_hash TEXT NOT NULL,
			code_index BIGINT NOT NULL,
			dep_type INTEGER NOT NULL,
			type_hash TEXT,
			token_type_hash TEXT NOT NULL,
			usage_fee TEXT NOT NULL,
			ckb_rate BIGINT NOT NULL,
			wallet_lock TEXT NOT NULL,
			wallet_lock_hash TEXT NOT NULL
		);`

	createIndexSQL = `
		CREATE INDEX IF NOT EXISTS scripts_wallet_lock_hash
		ON scripts (wallet_lock_hash);`

	upsertSQL = `
		INSERT INTO scripts (
			data_hash, name, description, author, code_tx_hash,
			code_index, dep_type, type_hash, token_type_hash,
			usage_fee, ckb_rate, wallet_lock, wallet_lock_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (data_hash) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			author = excluded.author,
			code_tx_hash = excluded.code_tx_hash,
			code_index = excluded.code_index,
			dep_type = excluded.dep_type,
			type_hash = excluded.type_hash,
			token_type_hash = excluded.token_type_hash,
			usage_fee = excluded.usage_fee,
			ckb_rate = excluded.ckb_rate,
			wallet_lock = excluded.wallet_lock,
			wallet_lock_hash = excluded.wallet_lock_hash`

	selectSQL = `
		SELECT data_hash, name, description, author, code_tx_hash,
			code_index, dep_type, type_hash, token_type_hash,
			usage_fee, ckb_rate, wallet_lock
		FROM scripts`

	orderSQL = ` ORDER BY name, data_hash`

	deleteSQL = `DELETE FROM scripts WHERE data_hash = $1`
)

// SQLStore is a Catalog kept in a SQL database.
type SQLStore struct {
	db *sql.DB
}

// A compile-time assertion to ensure SQLStore satisfies the Catalog
// interface.
var _ Catalog = (*SQLStore)(nil)

// Open connects to the catalog database and creates its schema if needed.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q, "+
			"want one of %v", driver, Drivers())
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, protoerr.New(protoerr.ErrNetwork,
			"catalog database unreachable", err)
	}

	s, err := NewSQLStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Infof("Opened %s script catalog", driver)

	return s, nil
}

// NewSQLStore returns a catalog over db, creating its schema if needed.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create catalog schema: %w", err)
		}
	}

	return &SQLStore{db: db}, nil
}

// Put publishes e, replacing any entry with the same data hash.
func (s *SQLStore) Put(ctx context.Context, e Entry) error {
	if e.Payment.UsageFee == nil || e.Payment.UsageFee.Sign() < 0 {
		return protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("usage fee %v", e.Payment.UsageFee), nil)
	}
	if e.Payment.CKBRate > math.MaxInt64 {
		return protoerr.New(protoerr.ErrValidation,
			fmt.Sprintf("ckb rate %d", e.Payment.CKBRate), nil)
	}
	if err := e.DepType.Validate(); err != nil {
		return protoerr.New(protoerr.ErrValidation, "dep type", err)
	}

	var typeHash sql.NullString
	e.TypeHash.WhenSome(func(h wire.Hash) {
		typeHash = sql.NullString{String: h.String(), Valid: true}
	})

	lock := e.Payment.WalletLock
	_, err := s.db.ExecContext(ctx, upsertSQL,
		e.DataHash.String(), e.Name, e.Description, e.Author,
		e.Code.TxHash.String(), int64(e.Code.Index), int(e.DepType),
		typeHash, e.Payment.TokenTypeHash.String(),
		e.Payment.UsageFee.String(), int64(e.Payment.CKBRate),
		hex.EncodeToString(lock.Serialize()), lock.Hash().String(),
	)
	if err != nil {
		return fmt.Errorf("publish script %v: %w", e.DataHash, err)
	}

	log.Debugf("Published script %q (%v)", e.Name, e.DataHash)

	return nil
}

// Delete removes the entry with the given data hash. Removing an unknown
// entry is not an error.
func (s *SQLStore) Delete(ctx context.Context, dataHash wire.Hash) error {
	_, err := s.db.ExecContext(ctx, deleteSQL, dataHash.String())
	return err
}

// All returns every entry ordered by name.
func (s *SQLStore) All(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, selectSQL+orderSQL)
}

// Lookup returns the entries matching every set field of f.
func (s *SQLStore) Lookup(ctx context.Context, f Filter) ([]Entry, error) {
	if f.IsEmpty() {
		return nil, protoerr.New(protoerr.ErrValidation, "lookup",
			ErrEmptyFilter)
	}

	var (
		conds []string
		args  []any
	)
	where := func(column string) func(wire.Hash) {
		return func(h wire.Hash) {
			args = append(args, h.String())
			conds = append(conds, fmt.Sprintf("%s = $%d", column,
				len(args)))
		}
	}
	f.WalletLockHash.WhenSome(where("wallet_lock_hash"))
	f.ScriptTypeHash.WhenSome(where("type_hash"))
	f.ScriptDataHash.WhenSome(where("data_hash"))

	query := selectSQL + " WHERE " + strings.Join(conds, " AND ") +
		orderSQL

	return s.query(ctx, query, args...)
}

func (s *SQLStore) query(ctx context.Context, query string,
	args ...any) ([]Entry, error) {

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                           Entry
		dataHash, codeTxHash        string
		tokenTypeHash, fee, lockHex string
		codeIndex, ckbRate          int64
		depType                     int
		typeHash                    sql.NullString
	)
	err := rows.Scan(&dataHash, &e.Name, &e.Description, &e.Author,
		&codeTxHash, &codeIndex, &depType, &typeHash, &tokenTypeHash,
		&fee, &ckbRate, &lockHex)
	if err != nil {
		return Entry{}, fmt.Errorf("scan catalog entry: %w", err)
	}

	bad := func(what string, err error) (Entry, error) {
		return Entry{}, fmt.Errorf("catalog entry %s: bad %s: %w",
			dataHash, what, err)
	}

	if e.DataHash, err = wire.NewHashFromStr(dataHash); err != nil {
		return bad("data hash", err)
	}
	txHash, err := wire.NewHashFromStr(codeTxHash)
	if err != nil {
		return bad("code tx hash", err)
	}
	if codeIndex < 0 || codeIndex > math.MaxUint32 {
		return bad("code index", fmt.Errorf("%d out of range",
			codeIndex))
	}
	e.Code = wire.NewOutPoint(txHash, uint32(codeIndex))

	e.DepType = wire.DepType(depType)
	if err := e.DepType.Validate(); err != nil {
		return bad("dep type", err)
	}

	e.TypeHash = fn.None[wire.Hash]()
	if typeHash.Valid {
		h, err := wire.NewHashFromStr(typeHash.String)
		if err != nil {
			return bad("type hash", err)
		}
		e.TypeHash = fn.Some(h)
	}

	e.Payment.TokenTypeHash, err = wire.NewHashFromStr(tokenTypeHash)
	if err != nil {
		return bad("token type hash", err)
	}
	usageFee, ok := new(big.Int).SetString(fee, 10)
	if !ok {
		return bad("usage fee", fmt.Errorf("%q", fee))
	}
	e.Payment.UsageFee = usageFee
	e.Payment.CKBRate = uint64(ckbRate)

	lock, err := hex.DecodeString(lockHex)
	if err != nil {
		return bad("wallet lock", err)
	}
	if e.Payment.WalletLock, err = wire.DeserializeScript(lock); err != nil {
		return bad("wallet lock", err)
	}

	return e, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
