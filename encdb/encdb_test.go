// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encdb

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passphrase = []byte("passphrase")

const iter int = 4096

func tempDB(t *testing.T) (string, func()) {
	tmpdir, err := ioutil.TempDir("", "encdb_test")
	require.NoError(t, err)
	return filepath.Join(tmpdir, "encdb_test"), func() { os.RemoveAll(tmpdir) }
}

func TestCreateOpenClose(t *testing.T) {
	dbname, cleanup := tempDB(t)
	defer cleanup()
	require.NoError(t, Create(dbname, passphrase, iter, []string{
		"CREATE TABLE notes (text TEXT);",
		"INSERT INTO notes (text) VALUES ('hello');",
	}))
	db, err := Open(dbname, passphrase)
	require.NoError(t, err)
	var text string
	require.NoError(t, db.QueryRow("SELECT text FROM notes;").Scan(&text))
	assert.Equal(t, "hello", text)
	assert.NoError(t, db.Close())
}

func TestCreateRekey(t *testing.T) {
	dbname, cleanup := tempDB(t)
	defer cleanup()
	require.NoError(t, Create(dbname, passphrase, iter, nil))
	newPass := []byte("newpass")
	require.NoError(t, Rekey(dbname, passphrase, newPass, iter))
	_, err := Open(dbname, passphrase)
	assert.Error(t, err)
	db, err := Open(dbname, newPass)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestRekeyFails(t *testing.T) {
	dbname, cleanup := tempDB(t)
	defer cleanup()
	require.NoError(t, Create(dbname, passphrase, iter, nil))
	assert.Error(t, Rekey(dbname, []byte("wrong"), []byte("newpass"), iter))
	assert.Error(t, Rekey(dbname, passphrase, []byte("newpass"), -1))
}

func TestCreateFails(t *testing.T) {
	dbname, cleanup := tempDB(t)
	defer cleanup()
	assert.Error(t, Create(dbname, passphrase, iter, []string{"create table Bogus"}))

	dbname2, cleanup2 := tempDB(t)
	defer cleanup2()
	assert.Error(t, Create(dbname2, passphrase, -1, nil))
}

func TestMultipleCreates(t *testing.T) {
	dbname, cleanup := tempDB(t)
	defer cleanup()
	require.NoError(t, Create(dbname, passphrase, iter, nil))
	require.Error(t, Create(dbname, passphrase, iter, nil), "second create should fail")
	os.Remove(dbname + DBSuffix)
	require.Error(t, Create(dbname, passphrase, iter, nil), "third create should fail")
}

func TestOpenFails(t *testing.T) {
	dbname, cleanup := tempDB(t)
	defer cleanup()
	require.NoError(t, Create(dbname, passphrase, iter, nil))
	_, err := Open(dbname, []byte("wrong"))
	assert.Error(t, err, "wrong passphrase")

	require.NoError(t, ioutil.WriteFile(dbname+KeySuffix, nil, 0600))
	_, err = Open(dbname, passphrase)
	assert.Error(t, err, "empty keyfile")

	os.Remove(dbname + KeySuffix)
	_, err = Open(dbname, passphrase)
	assert.Error(t, err, "missing keyfile")

	require.NoError(t, ioutil.WriteFile(dbname+DBSuffix, []byte("garbage"), 0600))
	_, err = Open(dbname, passphrase)
	assert.Error(t, err, "corrupt dbfile")

	os.Remove(dbname + DBSuffix)
	_, err = Open(dbname, passphrase)
	assert.Error(t, err, "missing dbfile")
}
