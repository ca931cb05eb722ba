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

// Tx is a row store transaction.
type Tx struct {
	tx      *sql.Tx
	dialect dialect
}

// Insert inserts a new row with identifier id and the given column values
// into table.
func (tx *Tx) Insert(table, id string, values map[string]string) error {
	if tx.tx == nil {
		return log.Error(ErrNoTx)
	}
	cols := []string{tx.dialect.quote(def.UUIDColumn)}
	args := []interface{}{id}
	for _, c := range sortedKeys(values) {
		if c == def.UUIDColumn {
			continue
		}
		cols = append(cols, tx.dialect.quote(c))
		args = append(args, values[c])
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", tx.dialect.quote(table),
		strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := tx.tx.Exec(stmt, args...); err != nil {
		return log.Error(err)
	}
	return nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if tx.tx == nil {
		return log.Error(ErrNoTx)
	}
	err := tx.tx.Commit()
	tx.tx = nil
	if err != nil {
		return log.Error(err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a
// no-op.
func (tx *Tx) Rollback() error {
	if tx.tx == nil {
		return nil
	}
	err := tx.tx.Rollback()
	tx.tx = nil
	if err != nil {
		return log.Error(err)
	}
	return nil
}
