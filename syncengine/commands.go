// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syncengine

import (
	"fmt"
	"net"

	"github.com/mutecomm/lipsync/client"
	"github.com/mutecomm/lipsync/encdb"
	"github.com/mutecomm/lipsync/lipsync"
	"github.com/mutecomm/lipsync/log"
	"github.com/mutecomm/lipsync/server"
	"github.com/mutecomm/lipsync/tabledb"
	"github.com/mutecomm/lipsync/util"
	"github.com/mutecomm/lipsync/util/bzero"
	"github.com/urfave/cli"
)

// create a new encrypted table database.
func (se *SyncEngine) create(c *cli.Context, iterations int) error {
	log.Infof("read passphrase from fd %d", se.fileTable.PassphraseFD)
	passphrase, err := util.Readline(se.fileTable.PassphraseFP)
	if err != nil {
		return err
	}
	defer bzero.Bytes(passphrase)
	if len(passphrase) == 0 {
		return log.Error("syncengine: empty passphrase")
	}
	dbname := se.dbname(c)
	log.Infof("create table database '%s'", dbname)
	return tabledb.Create(dbname, passphrase, iterations, nil)
}

// rekey the encrypted table database.
func (se *SyncEngine) rekey(c *cli.Context, iterations int) error {
	log.Infof("read old and new passphrase from fd %d", se.fileTable.PassphraseFD)
	lines, err := util.Readlines(se.fileTable.PassphraseFP, 2)
	if err != nil {
		return err
	}
	defer bzero.Bytes(lines[0])
	defer bzero.Bytes(lines[1])
	if len(lines[1]) == 0 {
		return log.Error("syncengine: empty passphrase")
	}
	return encdb.Rekey(se.dbname(c), lines[0], lines[1], iterations)
}

// openDB opens the table database selected by the global options.
func (se *SyncEngine) openDB(c *cli.Context) (*tabledb.DB, error) {
	var (
		db  *tabledb.DB
		err error
	)
	switch driver := c.GlobalString("driver"); driver {
	case "sqlite3":
		log.Infof("read passphrase from fd %d", se.fileTable.PassphraseFD)
		passphrase, err := util.Readline(se.fileTable.PassphraseFP)
		if err != nil {
			return nil, err
		}
		defer bzero.Bytes(passphrase)
		db, err = tabledb.Open(se.dbname(c), passphrase)
		if err != nil {
			return nil, err
		}
	case "mysql":
		db, err = tabledb.OpenURL(driver, c.GlobalString("dsn"))
		if err != nil {
			return nil, err
		}
	default:
		return nil, log.Error(fmt.Errorf("%w: %s", tabledb.ErrUnknownDriver, driver))
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	if se.db != nil {
		se.db.Close()
	}
	se.db = db
	return db, nil
}

func (se *SyncEngine) readSecret() ([]byte, error) {
	log.Infof("read shared secret from fd %d", se.fileTable.SecretFD)
	secret, err := util.Readline(se.fileTable.SecretFP)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, log.Error("syncengine: empty shared secret")
	}
	return secret, nil
}

func (se *SyncEngine) exec(c *cli.Context, stmt string) error {
	db, err := se.openDB(c)
	if err != nil {
		return err
	}
	log.Infof("exec: %s", stmt)
	return db.Exec(stmt)
}

func (se *SyncEngine) columns(c *cli.Context, table string) error {
	db, err := se.openDB(c)
	if err != nil {
		return err
	}
	name, err := db.Table(table)
	if err != nil {
		return err
	}
	cols, err := db.DataColumns(name)
	if err != nil {
		return err
	}
	for _, col := range cols {
		fmt.Fprintln(se.fileTable.OutputFP, col)
	}
	return nil
}

func (se *SyncEngine) serve(c *cli.Context, addr string) error {
	db, err := se.openDB(c)
	if err != nil {
		return err
	}
	secret, err := se.readSecret()
	if err != nil {
		return err
	}
	srv := server.New(lipsync.TableStore(db), secret)
	bzero.Bytes(secret)
	srv.Done = func(remote string, res *lipsync.Result, err error) {
		if err != nil {
			fmt.Fprintf(se.fileTable.OutputFP, "%s: %s\n", remote, err)
			return
		}
		fmt.Fprintf(se.fileTable.OutputFP, "%s: %s\n", remote, summary(res))
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return log.Error(err)
	}
	se.mu.Lock()
	if se.closed {
		se.mu.Unlock()
		ln.Close()
		return nil
	}
	se.srv = srv
	se.mu.Unlock()
	if err := srv.Serve(ln); err != server.ErrServerClosed {
		return err
	}
	return nil
}

func (se *SyncEngine) sync(c *cli.Context, addr, table string) error {
	db, err := se.openDB(c)
	if err != nil {
		return err
	}
	secret, err := se.readSecret()
	if err != nil {
		return err
	}
	defer bzero.Bytes(secret)
	res, err := client.Sync(addr, table, secret, lipsync.TableStore(db))
	if err != nil {
		return err
	}
	fmt.Fprintln(se.fileTable.OutputFP, summary(res))
	return nil
}

func summary(res *lipsync.Result) string {
	return fmt.Sprintf("table %s: %d sent, %d received, %d discarded",
		res.Table, res.Sent, res.Received, res.Discarded)
}
