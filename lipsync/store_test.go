// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lipsync

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mutecomm/lipsync/tabledb"
)

// memStore is an in-memory Store holding a single table with one column
// "text".
type memStore struct {
	mu         sync.Mutex
	name       string
	rows       map[string]map[string]string
	pending    int // rows without identifier
	provisions int
	commits    int
	rollbacks  int
}

func newMemStore(name string, ids ...string) *memStore {
	s := &memStore{name: name, rows: make(map[string]map[string]string)}
	for _, id := range ids {
		s.rows[id] = map[string]string{"text": "row " + id}
	}
	return s
}

func (s *memStore) Table(name string) (string, error) {
	if !strings.EqualFold(name, s.name) {
		return "", fmt.Errorf("%w: %q", tabledb.ErrUnknownTable, name)
	}
	return s.name, nil
}

func (s *memStore) Provision(table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisions++
	n := s.pending
	for i := 0; i < n; i++ {
		s.rows[fmt.Sprintf("%p-%d", s, i)] = map[string]string{"text": "new"}
	}
	s.pending = 0
	return n, nil
}

func (s *memStore) UUIDs(table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids(), nil
}

func (s *memStore) ids() []string {
	ids := make([]string, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *memStore) Rows(table string, uuids []string) (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make(map[string]map[string]string)
	for _, id := range uuids {
		if r, ok := s.rows[id]; ok {
			res[id] = r
		}
	}
	return res, nil
}

func (s *memStore) DataColumns(table string) ([]string, error) {
	return []string{"text"}, nil
}

func (s *memStore) Begin() (Tx, error) {
	return &memTx{store: s, rows: make(map[string]map[string]string)}, nil
}

type memTx struct {
	store *memStore
	rows  map[string]map[string]string
	done  bool
}

func (tx *memTx) Insert(table, id string, values map[string]string) error {
	if tx.done {
		return tabledb.ErrNoTx
	}
	if _, ok := tx.store.rows[id]; ok {
		return errors.New("duplicate identifier " + id)
	}
	tx.rows[id] = values
	return nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return tabledb.ErrNoTx
	}
	tx.done = true
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for id, r := range tx.rows {
		tx.store.rows[id] = r
	}
	tx.store.commits++
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Lock()
	tx.store.rollbacks++
	tx.store.mu.Unlock()
	return nil
}
