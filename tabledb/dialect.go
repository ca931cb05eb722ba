// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabledb

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mutecomm/lipsync/def"
	"github.com/mutecomm/lipsync/log"
)

// queryer is implemented by *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// dialect hides the differences between the supported SQL backends.
type dialect interface {
	driver() string
	quote(ident string) string
	uuidType() string
	tables(q queryer, name string) ([]string, error)
	rowIDColumns(q queryer, table string) ([]string, error)
	fill(q queryer, table string, gen func() string) (int, error)
}

type sqliteDialect struct{}

func (sqliteDialect) driver() string { return "sqlite3" }

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.Replace(ident, `"`, `""`, -1) + `"`
}

func (sqliteDialect) uuidType() string { return def.UUIDColumnType }

func (sqliteDialect) tables(q queryer, name string) ([]string, error) {
	return queryStrings(q, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE;", name)
}

// A single INTEGER PRIMARY KEY column is an alias for the rowid.
func (d sqliteDialect) rowIDColumns(q queryer, table string) ([]string, error) {
	rows, err := q.Query(fmt.Sprintf("PRAGMA table_info(%s);", d.quote(table)))
	if err != nil {
		return nil, log.Error(err)
	}
	defer rows.Close()
	var (
		pks     []string
		integer bool
	)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, log.Error(err)
		}
		if pk > 0 {
			pks = append(pks, name)
			integer = strings.EqualFold(typ, "INTEGER")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, log.Error(err)
	}
	if len(pks) == 1 && integer {
		return pks, nil
	}
	return nil, nil
}

func (d sqliteDialect) fill(q queryer, table string, gen func() string) (int, error) {
	rows, err := q.Query(fmt.Sprintf("SELECT _rowid_ FROM %s WHERE %s IS NULL;",
		d.quote(table), d.quote(def.UUIDColumn)))
	if err != nil {
		return 0, log.Error(err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, log.Error(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, log.Error(err)
	}
	update := fmt.Sprintf("UPDATE %s SET %s = ? WHERE _rowid_ = ?;",
		d.quote(table), d.quote(def.UUIDColumn))
	for _, id := range ids {
		if _, err := q.Exec(update, gen(), id); err != nil {
			return 0, log.Error(err)
		}
	}
	return len(ids), nil
}

type mysqlDialect struct{}

func (mysqlDialect) driver() string { return "mysql" }

func (mysqlDialect) quote(ident string) string {
	return "`" + strings.Replace(ident, "`", "``", -1) + "`"
}

func (mysqlDialect) uuidType() string { return "VARCHAR(36)" }

func (mysqlDialect) tables(q queryer, name string) ([]string, error) {
	return queryStrings(q, `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND LOWER(TABLE_NAME) = LOWER(?);`, name)
}

func (mysqlDialect) rowIDColumns(q queryer, table string) ([]string, error) {
	return queryStrings(q, `SELECT COLUMN_NAME FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND EXTRA LIKE '%auto_increment%';`, table)
}

// MySQL has no portable rowid, update one row at a time instead.
func (d mysqlDialect) fill(q queryer, table string, gen func() string) (int, error) {
	update := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IS NULL LIMIT 1;",
		d.quote(table), d.quote(def.UUIDColumn), d.quote(def.UUIDColumn))
	n := 0
	for {
		res, err := q.Exec(update, gen())
		if err != nil {
			return 0, log.Error(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, log.Error(err)
		}
		if affected == 0 {
			return n, nil
		}
		n++
	}
}

func queryStrings(q queryer, query string, args ...interface{}) ([]string, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, log.Error(err)
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, log.Error(err)
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		return nil, log.Error(err)
	}
	return res, nil
}
