// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WilfredTA/ReuseCoin/protoerr"
	"github.com/stretchr/testify/require"
)

func TestDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "sudt"),
		[]byte{1, 2, 3}, 0o600))

	store := NewDir(root)
	code, err := store.ReadBytes("sudt")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, code)

	for _, name := range []string{"missing", "", "../sudt", "a/b"} {
		_, err := store.ReadBytes(name)
		require.ErrorIs(t, err, ErrCodeNotFound, name)
		require.ErrorIs(t, err, protoerr.ErrMissingDependency, name)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()

	src := []byte("code")
	store := NewMemory(map[string][]byte{"lock": src})
	src[0] = 'x'

	code, err := store.ReadBytes("lock")
	require.NoError(t, err)
	require.Equal(t, []byte("code"), code)

	code[0] = 'y'
	again, err := store.ReadBytes("lock")
	require.NoError(t, err)
	require.Equal(t, []byte("code"), again)

	_, err = store.ReadBytes("other")
	require.ErrorIs(t, err, protoerr.ErrMissingDependency)
}
