// Copyright (c) 2025 The ReuseCoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codestore provides the script binaries the workflow deploys.
package codestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/WilfredTA/ReuseCoin/protoerr"
)

// ErrCodeNotFound is returned when no binary is stored under a name.
var ErrCodeNotFound = errors.New("script code not found")

func notFound(name string, err error) error {
	if err == nil {
		err = ErrCodeNotFound
	} else {
		err = fmt.Errorf("%w: %v", ErrCodeNotFound, err)
	}
	return protoerr.New(protoerr.ErrMissingDependency,
		fmt.Sprintf("code %q", name), err)
}

// Dir reads binaries from files in a directory, one file per name.
type Dir struct {
	root string
}

// NewDir returns a store reading from root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// ReadBytes returns the content of the file called name. Names must not
// contain path separators.
func (d *Dir) ReadBytes(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || name == ".." {
		return nil, notFound(name, errors.New("invalid name"))
	}

	b, err := os.ReadFile(filepath.Join(d.root, name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, notFound(name, nil)
	case err != nil:
		return nil, notFound(name, err)
	}

	return b, nil
}

// Memory is an in-memory store. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	codes map[string][]byte
}

// NewMemory returns a store holding copies of codes.
func NewMemory(codes map[string][]byte) *Memory {
	m := &Memory{codes: make(map[string][]byte, len(codes))}
	for name, code := range codes {
		m.Put(name, code)
	}
	return m
}

// Put stores a copy of code under name.
func (m *Memory) Put(name string, code []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes[name] = append([]byte(nil), code...)
}

// ReadBytes returns a copy of the code stored under name.
func (m *Memory) ReadBytes(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.codes[name]
	if !ok {
		return nil, notFound(name, nil)
	}
	return append([]byte(nil), code...), nil
}
