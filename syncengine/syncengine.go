// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package syncengine implements the command engine for lipsync.
package syncengine

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mutecomm/lipsync/cipher"
	"github.com/mutecomm/lipsync/def"
	"github.com/mutecomm/lipsync/def/version"
	"github.com/mutecomm/lipsync/log"
	"github.com/mutecomm/lipsync/server"
	"github.com/mutecomm/lipsync/tabledb"
	"github.com/mutecomm/lipsync/util"
	"github.com/mutecomm/lipsync/util/descriptors"
	"github.com/urfave/cli"
)

// SyncEngine abstracts a lipsync command engine.
type SyncEngine struct {
	prepared  bool
	homedir   string
	fileTable *descriptors.Table
	app       *cli.App

	mu     sync.Mutex
	db     *tabledb.DB
	srv    *server.Server
	closed bool
}

func (se *SyncEngine) prepare(c *cli.Context) error {
	if se.prepared {
		return nil
	}
	se.homedir = c.GlobalString("homedir")
	// create the necessary directories if they don't already exist
	err := util.CreateDirs(se.homedir, c.GlobalString("logdir"))
	if err != nil {
		return err
	}
	// initialize logging framework
	err = log.Init(c.GlobalString("loglevel"), "lsync",
		c.GlobalString("logdir"), c.GlobalBool("logconsole"))
	if err != nil {
		return err
	}
	se.fileTable, err = descriptors.NewTable(c)
	if err != nil {
		return err
	}
	se.prepared = true
	return nil
}

func noArgs(c *cli.Context) error {
	if len(c.Args()) > 0 {
		return log.Errorf("superfluous argument(s): %s", strings.Join(c.Args(), " "))
	}
	return nil
}

func mandatory(c *cli.Context, names ...string) error {
	for _, name := range names {
		if !c.IsSet(name) {
			return log.Errorf("option --%s is mandatory", name)
		}
	}
	return nil
}

// New returns a new lipsync command engine.
func New() *SyncEngine {
	var se SyncEngine
	se.app = cli.NewApp()
	se.app.Name = "lipsync"
	se.app.Usage = "synchronize database tables between two peers sharing a secret"
	se.app.Version = version.Number
	se.app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "homedir",
			Value: def.HomeDir(),
			Usage: "set home directory",
		},
		cli.StringFlag{
			Name:  "db",
			Value: "lipsync",
			Usage: "name of the encrypted table database in homedir",
		},
		cli.StringFlag{
			Name:  "driver",
			Value: "sqlite3",
			Usage: "table database driver {sqlite3, mysql}",
		},
		cli.StringFlag{
			Name:  "dsn",
			Usage: "data source name (driver mysql only)",
		},
		descriptors.OutputFDFlag,
		descriptors.PassphraseFDFlag,
		descriptors.SecretFDFlag,
		cli.StringFlag{
			Name:  "loglevel",
			Value: "info",
			Usage: "logging level {trace, debug, info, warn, error, critical}",
		},
		cli.StringFlag{
			Name:  "logdir",
			Value: def.LogDir(),
			Usage: "directory to log output",
		},
		cli.BoolFlag{
			Name:  "logconsole",
			Usage: "enable logging to console",
		},
	}
	se.app.Before = func(c *cli.Context) error {
		return se.prepare(c)
	}
	se.app.Commands = []cli.Command{
		{
			Name:  "create",
			Usage: "create encrypted table database",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "iterations",
					Value: def.KDFIterations,
					Usage: "number of KDF iterations used for database creation",
				},
			},
			Before: noArgs,
			Action: func(c *cli.Context) error {
				return se.create(c, c.Int("iterations"))
			},
		},
		{
			Name:  "rekey",
			Usage: "change passphrase of encrypted table database",
			Description: `
Reads the old and the new passphrase from two lines of --passphrase-fd.
`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "iterations",
					Value: def.KDFIterations,
					Usage: "number of KDF iterations used for rekeying",
				},
			},
			Before: noArgs,
			Action: func(c *cli.Context) error {
				return se.rekey(c, c.Int("iterations"))
			},
		},
		{
			Name:      "exec",
			Usage:     "execute SQL statement on table database",
			ArgsUsage: "statement",
			Before: func(c *cli.Context) error {
				if len(c.Args()) == 0 {
					return log.Error("statement missing")
				}
				return nil
			},
			Action: func(c *cli.Context) error {
				return se.exec(c, strings.Join(c.Args(), " "))
			},
		},
		{
			Name:  "columns",
			Usage: "show synchronized columns of table",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "table",
					Usage: "table name",
				},
			},
			Before: func(c *cli.Context) error {
				if err := noArgs(c); err != nil {
					return err
				}
				return mandatory(c, "table")
			},
			Action: func(c *cli.Context) error {
				return se.columns(c, c.String("table"))
			},
		},
		{
			Name:  "secret",
			Usage: "generate a random shared secret",
			Before: noArgs,
			Action: func(c *cli.Context) error {
				fmt.Fprintln(se.fileTable.OutputFP, cipher.RandPass(cipher.RandReader))
				return nil
			},
		},
		{
			Name:  "serve",
			Usage: "answer sync requests",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "listen",
					Value: ":" + def.DefaultPort,
					Usage: "address to listen on",
				},
			},
			Before: noArgs,
			Action: func(c *cli.Context) error {
				return se.serve(c, c.String("listen"))
			},
		},
		{
			Name:  "sync",
			Usage: "synchronize table with server",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "connect",
					Value: "localhost:" + def.DefaultPort,
					Usage: "server address",
				},
				cli.StringFlag{
					Name:  "table",
					Usage: "table name",
				},
			},
			Before: func(c *cli.Context) error {
				if err := noArgs(c); err != nil {
					return err
				}
				return mandatory(c, "table")
			},
			Action: func(c *cli.Context) error {
				return se.sync(c, c.String("connect"), c.String("table"))
			},
		},
	}
	return &se
}

// Start starts the sync engine with the given args.
func (se *SyncEngine) Start(args []string) error {
	return se.app.Run(args)
}

// Close stops a running server and closes the table database.
func (se *SyncEngine) Close() {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.closed = true
	if se.srv != nil {
		se.srv.Close()
		se.srv = nil
	}
	if se.db != nil {
		se.db.Close()
		se.db = nil
	}
}

func (se *SyncEngine) dbname(c *cli.Context) string {
	return filepath.Join(se.homedir, c.GlobalString("db"))
}
