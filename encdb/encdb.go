// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package encdb defines the encrypted database holding the synchronized tables.
Such an encrypted database consists of two files for a given database name
"dbname":

  dbname.db
  dbname.key

The file "dbname.db" is an AES-256 encrypted sqlite3 file managed by the
package "github.com/mutecomm/go-sqlcipher". The file named "dbname.key" is an
AES-256 encrypted file which contains the (randomly generated) raw encryption
key for "dbname.db". To decrypt the key file the key derivation function
PBKDF2 is applied to a supplied passphrase (with a configurable number of
iterations) and the derived key is used as the AES-256 key for "dbname.key".

A rekey only replaces the key file, the database file is not modified.
*/
package encdb

import (
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/frankbraun/codechain/util/file"
	"github.com/mutecomm/go-sqlcipher"
	"github.com/mutecomm/lipsync/log"
)

// DBSuffix defines the suffix for database files.
const DBSuffix = ".db"

// KeySuffix defines the suffix for key files.
const KeySuffix = ".key"

func dsn(dbfile string, key []byte) string {
	return dbfile + fmt.Sprintf("?_pragma_key=x'%s'&_pragma_cipher_page_size=4096",
		hex.EncodeToString(key))
}

// Create creates an encrypted database protected by passphrase (processed
// with iter many KDF iterations). The files dbname.db and dbname.key must not
// exist already. The database is initialized with the statements in
// createStmts.
func Create(dbname string, passphrase []byte, iter int, createStmts []string) error {
	dbfile := dbname + DBSuffix
	keyfile := dbname + KeySuffix
	for _, f := range []string{dbfile, keyfile} {
		exists, err := file.Exists(f)
		if err != nil {
			return log.Error(err)
		}
		if exists {
			return log.Errorf("encdb: file '%s' exists already", f)
		}
	}
	key, err := generateKeyfile(keyfile, passphrase, iter)
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", dsn(dbfile, key))
	if err != nil {
		return log.Error(err)
	}
	if _, err := db.Exec("PRAGMA auto_vacuum = full;"); err != nil {
		db.Close()
		return log.Error(err)
	}
	for _, stmt := range createStmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return log.Errorf("encdb: %q: %s", err, stmt)
		}
	}
	if err := db.Close(); err != nil {
		return log.Error(err)
	}
	encrypted, err := sqlite3.IsEncrypted(dbfile)
	if err != nil {
		return log.Error(err)
	}
	if !encrypted {
		return log.Errorf("encdb: created dbfile '%s' is not encrypted", dbfile)
	}
	return nil
}

// Open opens the encrypted database dbname with passphrase.
// In case of error (for example, the database files do not exist or the
// passphrase is wrong) an error is returned.
func Open(dbname string, passphrase []byte) (*sql.DB, error) {
	dbfile := dbname + DBSuffix
	keyfile := dbname + KeySuffix
	encrypted, err := sqlite3.IsEncrypted(dbfile)
	if err != nil {
		return nil, log.Error(err)
	}
	if !encrypted {
		return nil, log.Errorf("encdb: dbfile '%s' is not encrypted", dbfile)
	}
	key, err := readKeyfile(keyfile, passphrase)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn(dbfile, key))
	if err != nil {
		return nil, log.Error(err)
	}
	// a wrong key only shows on first use
	if _, err := db.Exec("SELECT count(*) FROM sqlite_master;"); err != nil {
		db.Close()
		return nil, log.Error(err)
	}
	return db, nil
}

// Rekey replaces the passphrase of the encrypted database dbname.
// The correct oldPassphrase must be supplied.
func Rekey(dbname string, oldPassphrase, newPassphrase []byte, newIter int) error {
	db, err := Open(dbname, oldPassphrase)
	if err != nil {
		return err
	}
	defer db.Close()
	return replaceKeyfile(dbname+KeySuffix, oldPassphrase, newPassphrase, newIter)
}
