// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encdb

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"os"

	"github.com/mutecomm/lipsync/cipher"
	"github.com/mutecomm/lipsync/log"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen   = 32
	keyLen    = 32
	maxIter   = 2147483647
	encKeyLen = 16 + keyLen // IV + encrypted key
)

/*
The keyfile implemented by this package provides a randomly generated AES-256
key stored in a file which itself is encrypted by AES-256.

Format of keyfile:

 0                   1                   2                   3
 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                  number of iterations for PBKDF2              |
|                                                               |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                                                               |
|                        salt for PBKDF2                        |
|                                                               |
|                                                               |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                            IV for                             |
|                       AES-256 encryption                      |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                                                               |
|                            AES-256                            |
|                           encrypted                           |
|                          AES-256 key                          |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

// writeKeyfile writes a key file with the given filename that contains the
// supplied key in AES-256 encrypted form.
func writeKeyfile(filename string, passphrase []byte, iter int, key []byte) error {
	if _, err := os.Stat(filename); err == nil {
		return log.Errorf("encdb: keyfile '%s' exists already", filename)
	}
	if iter <= 0 || iter > maxIter {
		return log.Errorf("encdb: writeKeyfile: invalid iter value %d", iter)
	}
	if len(key) != keyLen {
		return log.Errorf("encdb: writeKeyfile: len(key) != %d", keyLen)
	}
	var salt = make([]byte, saltLen)
	if _, err := io.ReadFull(cipher.RandReader, salt); err != nil {
		return log.Error(err)
	}
	dk := pbkdf2.Key(passphrase, salt, iter, keyLen, sha256.New)
	buf := make([]byte, 8, 8+saltLen+encKeyLen)
	binary.LittleEndian.PutUint64(buf, uint64(iter))
	buf = append(buf, salt...)
	buf = append(buf, cipher.AES256CBCEncrypt(dk, key, cipher.RandReader)...)
	keyfile, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return log.Error(err)
	}
	if _, err := keyfile.Write(buf); err != nil {
		keyfile.Close()
		return log.Error(err)
	}
	return keyfile.Close()
}

// generateKeyFile generates a key file with the given filename that contains a
// randomly generated and encrypted AES-256 key.
// The generated key is protected by a passphrase, which is processed by PBKDF2
// with iter many iterations to derive the AES-256 key to encrypt the generated
// key. The function returns the generated key in unencrypted form.
func generateKeyfile(filename string, passphrase []byte, iter int) (key []byte, err error) {
	var rawKey = make([]byte, keyLen)
	if _, err := io.ReadFull(cipher.RandReader, rawKey); err != nil {
		return nil, log.Error(err)
	}
	if err := writeKeyfile(filename, passphrase, iter, rawKey); err != nil {
		return nil, err
	}
	return rawKey, nil
}

// readKeyFile reads a randomly generated and encrypted AES-256 key from the
// file with the given filename and returns it in unencrypted form.
// The key is protected by a passphrase, which is processed by PBKDF2 to
// derive the AES-256 key to decrypt the generated key.
func readKeyfile(filename string, passphrase []byte) (key []byte, err error) {
	keyfile, err := os.Open(filename)
	if err != nil {
		return nil, log.Error(err)
	}
	defer keyfile.Close()
	buf := make([]byte, 8+saltLen+encKeyLen)
	if _, err := io.ReadFull(keyfile, buf); err != nil {
		return nil, log.Error(err)
	}
	uiter := binary.LittleEndian.Uint64(buf[:8])
	if uiter == 0 || uiter > maxIter {
		return nil, log.Errorf("encdb: readKeyfile: invalid iter value")
	}
	salt := buf[8 : 8+saltLen]
	dk := pbkdf2.Key(passphrase, salt, int(uiter), keyLen, sha256.New)
	return cipher.AES256CBCDecrypt(dk, buf[8+saltLen:]), nil
}

// replaceKeyfile re-encrypts the key in filename under newPassphrase.
func replaceKeyfile(filename string, oldPassphrase, newPassphrase []byte, newIter int) error {
	key, err := readKeyfile(filename, oldPassphrase)
	if err != nil {
		return err
	}
	tmpfile := filename + ".new"
	os.Remove(tmpfile) // ignore error
	if err := writeKeyfile(tmpfile, newPassphrase, newIter, key); err != nil {
		return err
	}
	return os.Rename(tmpfile, filename)
}
