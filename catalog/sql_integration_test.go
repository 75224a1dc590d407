//go:build integration_test

// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"testing"

	"github.com/WilfredTA/ReuseCoin/internal/sqltest"
	"github.com/stretchr/testify/require"
)

// TestSQLStoreBackends runs the catalog operations against both Postgres
// and SQLite.
func TestSQLStoreBackends(t *testing.T) {
	sqltest.RunDatabaseTest(t, func(t *testing.T,
		dbFactory sqltest.DBFactory) {

		s, err := NewSQLStore(context.Background(), dbFactory(t))
		require.NoError(t, err)

		exerciseStore(t, s)
	})
}
