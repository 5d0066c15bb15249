// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prefs holds a persisted key-value store for the analyzer
// configuration.
package prefs // import "github.com/go-lpc/sigcap/prefs"

import (
	"fmt"
	"strconv"
	"sync"
)

// Backend stores string values by namespace and key.
type Backend interface {
	Get(ns, key string) (string, bool, error)
	Put(ns, key, value string) error
}

// Store gives typed access to one namespace of a Backend.
//
// Getters return the provided default when the key is missing or
// can not be read; the first failure is kept until Err is called.
type Store struct {
	be  Backend
	ns  string
	err error
}

func New(be Backend, ns string) *Store {
	return &Store{be: be, ns: ns}
}

// Namespace returns the namespace of the store.
func (st *Store) Namespace() string { return st.ns }

// Err returns and clears the first error met by a getter.
func (st *Store) Err() error {
	err := st.err
	st.err = nil
	return err
}

func (st *Store) get(key string) (string, bool) {
	v, ok, err := st.be.Get(st.ns, key)
	if err != nil {
		if st.err == nil {
			st.err = fmt.Errorf("prefs: could not get %s/%s: %w", st.ns, key, err)
		}
		return "", false
	}
	return v, ok
}

func (st *Store) put(key, value string) error {
	err := st.be.Put(st.ns, key, value)
	if err != nil {
		return fmt.Errorf("prefs: could not put %s/%s: %w", st.ns, key, err)
	}
	return nil
}

func (st *Store) String(key, def string) string {
	v, ok := st.get(key)
	if !ok {
		return def
	}
	return v
}

func (st *Store) PutString(key, v string) error {
	return st.put(key, v)
}

func (st *Store) U32(key string, def uint32) uint32 {
	v, ok := st.get(key)
	if !ok {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		if st.err == nil {
			st.err = fmt.Errorf("prefs: invalid uint32 value %q for %s/%s: %w", v, st.ns, key, err)
		}
		return def
	}
	return uint32(u)
}

func (st *Store) PutU32(key string, v uint32) error {
	return st.put(key, strconv.FormatUint(uint64(v), 10))
}

func (st *Store) U8(key string, def uint8) uint8 {
	v, ok := st.get(key)
	if !ok {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		if st.err == nil {
			st.err = fmt.Errorf("prefs: invalid uint8 value %q for %s/%s: %w", v, st.ns, key, err)
		}
		return def
	}
	return uint8(u)
}

func (st *Store) PutU8(key string, v uint8) error {
	return st.put(key, strconv.FormatUint(uint64(v), 10))
}

func (st *Store) Int(key string, def int) int {
	v, ok := st.get(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if st.err == nil {
			st.err = fmt.Errorf("prefs: invalid int value %q for %s/%s: %w", v, st.ns, key, err)
		}
		return def
	}
	return i
}

func (st *Store) PutInt(key string, v int) error {
	return st.put(key, strconv.Itoa(v))
}

func (st *Store) Bool(key string, def bool) bool {
	v, ok := st.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		if st.err == nil {
			st.err = fmt.Errorf("prefs: invalid bool value %q for %s/%s: %w", v, st.ns, key, err)
		}
		return def
	}
	return b
}

func (st *Store) PutBool(key string, v bool) error {
	return st.put(key, strconv.FormatBool(v))
}

// Mem is a Backend held in memory.
type Mem struct {
	mu sync.RWMutex
	db map[string]string
}

func NewMem() *Mem {
	return &Mem{db: make(map[string]string)}
}

func (m *Mem) Get(ns, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.db[ns+"/"+key]
	return v, ok, nil
}

func (m *Mem) Put(ns, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db[ns+"/"+key] = value
	return nil
}

var (
	_ Backend = (*Mem)(nil)
	_ Backend = (*DB)(nil)
)
