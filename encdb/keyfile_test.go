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

func tempKeyfile(t *testing.T) (string, func()) {
	tmpdir, err := ioutil.TempDir("", "keyfile_test")
	require.NoError(t, err)
	return filepath.Join(tmpdir, "keyfile_test.key"), func() { os.RemoveAll(tmpdir) }
}

func TestGenerateRead(t *testing.T) {
	keyfile, cleanup := tempKeyfile(t)
	defer cleanup()
	gkey, err := generateKeyfile(keyfile, passphrase, iter)
	require.NoError(t, err)
	rkey, err := readKeyfile(keyfile, passphrase)
	require.NoError(t, err)
	assert.Equal(t, gkey, rkey)
	fi, err := os.Stat(keyfile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestMultipleGenerates(t *testing.T) {
	keyfile, cleanup := tempKeyfile(t)
	defer cleanup()
	_, err := generateKeyfile(keyfile, passphrase, iter)
	require.NoError(t, err)
	_, err = generateKeyfile(keyfile, passphrase, iter)
	assert.Error(t, err, "second generate should fail")
}

func TestReplace(t *testing.T) {
	keyfile, cleanup := tempKeyfile(t)
	defer cleanup()
	gkey, err := generateKeyfile(keyfile, passphrase, iter)
	require.NoError(t, err)
	newPass := []byte("new passphrase")
	require.NoError(t, replaceKeyfile(keyfile, passphrase, newPass, iter/2))
	rkey, err := readKeyfile(keyfile, newPass)
	require.NoError(t, err)
	assert.Equal(t, gkey, rkey)
}

func TestFailingRead(t *testing.T) {
	keyfile, cleanup := tempKeyfile(t)
	defer cleanup()
	_, err := readKeyfile(keyfile, passphrase)
	assert.Error(t, err)
}

func TestBogusKeyfiles(t *testing.T) {
	maxed := make([]byte, 8+saltLen+encKeyLen)
	for k := 0; k < 8; k++ {
		maxed[k] = 255
	}
	for _, content := range [][]byte{
		nil,
		make([]byte, 8),
		make([]byte, 8+saltLen),
		make([]byte, 8+saltLen+encKeyLen), // iter == 0
		maxed,
	} {
		keyfile, cleanup := tempKeyfile(t)
		require.NoError(t, ioutil.WriteFile(keyfile, content, 0600))
		_, err := readKeyfile(keyfile, passphrase)
		assert.Error(t, err, "read should fail for %d bytes", len(content))
		cleanup()
	}
}

func TestInvalidIterGenerate(t *testing.T) {
	keyfile, cleanup := tempKeyfile(t)
	defer cleanup()
	_, err := generateKeyfile(keyfile, passphrase, -1)
	assert.Error(t, err)
	_, err = generateKeyfile(keyfile, passphrase, 0)
	assert.Error(t, err)
}
