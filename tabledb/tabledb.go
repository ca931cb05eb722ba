// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tabledb implements the row store synchronized by lipsync.
//
// A DB is either an encrypted SQLite database (see package encdb) or a MySQL
// database. Every synchronized table carries the identifier column
// def.UUIDColumn, which Provision adds and populates on first use. The local
// row id (an INTEGER PRIMARY KEY in SQLite, an AUTO_INCREMENT column in MySQL)
// is never part of the data columns, since it differs between peers.
package tabledb

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mutecomm/lipsync/def"
	"github.com/mutecomm/lipsync/encdb"
	"github.com/mutecomm/lipsync/log"

	// register MySQL driver
	_ "github.com/go-sql-driver/mysql"
)

// ErrUnknownTable is returned if a table does not exist.
var ErrUnknownTable = errors.New("tabledb: unknown table")

// ErrUnknownDriver is returned for an unsupported SQL driver.
var ErrUnknownDriver = errors.New("tabledb: unknown driver")

// ErrNoTx is returned if a finished transaction is used.
var ErrNoTx = errors.New("tabledb: transaction already finished")

// maxVariables bounds the number of identifiers per IN clause. SQLite allows
// at most 999 host parameters per statement.
const maxVariables = 500

// DB is a row store.
type DB struct {
	db      *sql.DB
	dialect dialect
}

// Create creates a new encrypted SQLite row store dbname, initialized with
// createStmts. See encdb.Create.
func Create(dbname string, passphrase []byte, iter int, createStmts []string) error {
	return encdb.Create(dbname, passphrase, iter, createStmts)
}

// Open opens the encrypted SQLite row store dbname with passphrase.
func Open(dbname string, passphrase []byte) (*DB, error) {
	db, err := encdb.Open(dbname, passphrase)
	if err != nil {
		return nil, err
	}
	return Wrap(db, "sqlite3")
}

// OpenURL opens a row store with the given SQL driver ("sqlite3" or "mysql")
// and data source name.
func OpenURL(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, log.Error(err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, log.Error(err)
	}
	tdb, err := Wrap(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return tdb, nil
}

// Wrap returns a row store for an already opened database.
func Wrap(db *sql.DB, driver string) (*DB, error) {
	var d dialect
	switch driver {
	case "sqlite3":
		d = sqliteDialect{}
		// SQLite has a single writer, sessions queue on the connection
		db.SetMaxOpenConns(1)
	case "mysql":
		d = mysqlDialect{}
	default:
		return nil, log.Error(fmt.Errorf("%w: %s", ErrUnknownDriver, driver))
	}
	return &DB{db: db, dialect: d}, nil
}

// Close closes the row store.
func (db *DB) Close() error {
	return db.db.Close()
}

// Exec executes a maintenance statement (like CREATE TABLE).
func (db *DB) Exec(stmt string, args ...interface{}) error {
	if _, err := db.db.Exec(stmt, args...); err != nil {
		return log.Error(err)
	}
	return nil
}

// Table returns the stored spelling of table name, which is looked up
// case-insensitively. An exact match is preferred.
func (db *DB) Table(name string) (string, error) {
	names, err := db.dialect.tables(db.db, name)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", log.Error(fmt.Errorf("%w: %q", ErrUnknownTable, name))
	}
	for _, n := range names {
		if n == name {
			return n, nil
		}
	}
	return names[0], nil
}

func (db *DB) columns(q queryer, table string) ([]string, error) {
	rows, err := q.Query(fmt.Sprintf("SELECT * FROM %s LIMIT 0;", db.dialect.quote(table)))
	if err != nil {
		return nil, log.Error(err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, log.Error(err)
	}
	return cols, nil
}

// Columns returns all column names of table in schema order.
func (db *DB) Columns(table string) ([]string, error) {
	return db.columns(db.db, table)
}

func (db *DB) dataColumns(q queryer, table string) ([]string, error) {
	cols, err := db.columns(q, table)
	if err != nil {
		return nil, err
	}
	rowIDs, err := db.dialect.rowIDColumns(q, table)
	if err != nil {
		return nil, err
	}
	skip := map[string]bool{def.UUIDColumn: true}
	for _, c := range rowIDs {
		skip[c] = true
	}
	var data []string
	for _, c := range cols {
		if !skip[c] {
			data = append(data, c)
		}
	}
	return data, nil
}

// DataColumns returns the columns of table which are transferred between
// peers: all columns except the identifier column and the local row id.
func (db *DB) DataColumns(table string) ([]string, error) {
	return db.dataColumns(db.db, table)
}

// Provision makes sure every row of table has an identifier. The identifier
// column is added if missing and all rows without an identifier get a fresh
// one, in one transaction. It returns the number of identifiers assigned.
func (db *DB) Provision(table string) (int, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return 0, log.Error(err)
	}
	n, err := db.provision(tx, table)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, log.Error(err)
	}
	if n > 0 {
		log.Infof("tabledb: assigned %d identifiers in table %s", n, table)
	}
	return n, nil
}

func (db *DB) provision(tx *sql.Tx, table string) (int, error) {
	cols, err := db.columns(tx, table)
	if err != nil {
		return 0, err
	}
	found := false
	for _, c := range cols {
		if c == def.UUIDColumn {
			found = true
			break
		}
	}
	if !found {
		log.Infof("tabledb: adding column %s to table %s", def.UUIDColumn, table)
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", db.dialect.quote(table),
			db.dialect.quote(def.UUIDColumn), db.dialect.uuidType())
		if _, err := tx.Exec(stmt); err != nil {
			return 0, log.Error(err)
		}
	}
	return db.dialect.fill(tx, table, func() string { return uuid.New().String() })
}

// UUIDs returns the identifiers of all rows in table.
func (db *DB) UUIDs(table string) ([]string, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s;",
		db.dialect.quote(def.UUIDColumn), db.dialect.quote(table),
		db.dialect.quote(def.UUIDColumn), db.dialect.quote(def.UUIDColumn))
	return queryStrings(db.db, q)
}

// Rows returns the data columns of the rows in table with the given
// identifiers, mapped by identifier. NULL values are left out of the column
// maps. Unknown identifiers are ignored.
func (db *DB) Rows(table string, uuids []string) (map[string]map[string]string, error) {
	cols, err := db.DataColumns(table)
	if err != nil {
		return nil, err
	}
	sel := []string{db.dialect.quote(def.UUIDColumn)}
	for _, c := range cols {
		sel = append(sel, db.dialect.quote(c))
	}
	res := make(map[string]map[string]string)
	for len(uuids) > 0 {
		n := len(uuids)
		if n > maxVariables {
			n = maxVariables
		}
		batch := uuids[:n]
		uuids = uuids[n:]
		args := make([]interface{}, len(batch))
		for i, u := range batch {
			args[i] = u
		}
		q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s);", strings.Join(sel, ", "),
			db.dialect.quote(table), db.dialect.quote(def.UUIDColumn),
			strings.TrimSuffix(strings.Repeat("?, ", n), ", "))
		if err := db.scanRows(res, cols, q, args); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (db *DB) scanRows(res map[string]map[string]string, cols []string, q string, args []interface{}) error {
	rows, err := db.db.Query(q, args...)
	if err != nil {
		return log.Error(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		values := make([]sql.NullString, len(cols))
		dest := []interface{}{&id}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return log.Error(err)
		}
		record := make(map[string]string)
		for i, v := range values {
			if v.Valid {
				record[cols[i]] = v.String
			}
		}
		res[id] = record
	}
	if err := rows.Err(); err != nil {
		return log.Error(err)
	}
	return nil
}

// Begin starts a transaction.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return nil, log.Error(err)
	}
	return &Tx{tx: tx, dialect: db.dialect}, nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
