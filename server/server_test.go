// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mutecomm/lipsync/lipsync"
	"github.com/mutecomm/lipsync/tabledb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	passphrase = []byte("passphrase")
	secret     = []byte("shared secret")
)

const createNotes = "CREATE TABLE Notes (ID INTEGER PRIMARY KEY, Title TEXT);"

func createStore(t *testing.T, dir, name string, titles ...string) *tabledb.DB {
	stmts := []string{createNotes}
	for _, title := range titles {
		stmts = append(stmts, "INSERT INTO Notes (Title) VALUES ('"+title+"');")
	}
	dbname := filepath.Join(dir, name)
	require.NoError(t, tabledb.Create(dbname, passphrase, 64, stmts))
	db, err := tabledb.Open(dbname, passphrase)
	require.NoError(t, err)
	return db
}

func titles(t *testing.T, db *tabledb.DB) map[string]bool {
	ids, err := db.UUIDs("Notes")
	require.NoError(t, err)
	rows, err := db.Rows("Notes", ids)
	require.NoError(t, err)
	res := make(map[string]bool)
	for _, r := range rows {
		res[r["Title"]] = true
	}
	return res
}

func TestServe(t *testing.T) {
	tmpdir, err := ioutil.TempDir("", "server_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpdir)
	sdb := createStore(t, tmpdir, "server", "s1", "s2")
	defer sdb.Close()

	srv := New(lipsync.TableStore(sdb), secret)
	var (
		mu      sync.Mutex
		results []*lipsync.Result
	)
	srv.Done = func(remote string, res *lipsync.Result, err error) {
		assert.NoError(t, err)
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	clients := []*tabledb.DB{
		createStore(t, tmpdir, "client1", "c1"),
		createStore(t, tmpdir, "client2", "c2", "c3"),
	}
	var wg sync.WaitGroup
	for _, cdb := range clients {
		defer cdb.Close()
		wg.Add(1)
		go func(cdb *tabledb.DB) {
			defer wg.Done()
			conn, err := net.Dial("tcp", ln.Addr().String())
			if !assert.NoError(t, err) {
				return
			}
			_, err = lipsync.Sync(conn, lipsync.TableStore(cdb), secret, lipsync.Initiator, "Notes")
			assert.NoError(t, err)
		}(cdb)
	}
	wg.Wait()
	require.NoError(t, srv.Close())
	assert.Equal(t, ErrServerClosed, <-served)

	assert.Len(t, results, 2)
	assert.Equal(t, map[string]bool{"s1": true, "s2": true, "c1": true, "c2": true, "c3": true},
		titles(t, sdb))
	for _, cdb := range clients {
		got := titles(t, cdb)
		assert.True(t, got["s1"] && got["s2"])
	}
}

func TestCloseBeforeServe(t *testing.T) {
	srv := New(nil, secret)
	require.NoError(t, srv.Close())
	assert.NoError(t, srv.Close())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, ErrServerClosed, srv.Serve(ln))
	_, err = net.Dial("tcp", ln.Addr().String())
	assert.Error(t, err, "listener must be closed")
}
