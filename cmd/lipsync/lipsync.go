// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// lipsync synchronizes database tables between two peers sharing a secret.
package main

import (
	"os"

	"github.com/mutecomm/lipsync/log"
	"github.com/mutecomm/lipsync/release"
	"github.com/mutecomm/lipsync/syncengine"
	"github.com/mutecomm/lipsync/util"
	"github.com/mutecomm/lipsync/util/interrupt"
	"github.com/urfave/cli"
)

func init() {
	cli.VersionPrinter = release.PrintVersion
}

func lipsyncMain() error {
	defer log.Flush()

	// create sync engine
	se := syncengine.New()
	defer se.Close()

	// add interrupt handler
	interrupt.AddInterruptHandler(func() {
		log.Infof("gracefully shutting down...")
		se.Close()
	})

	// start sync engine
	go func() {
		if err := se.Start(os.Args); err != nil {
			interrupt.ShutdownChannel <- err
			return
		}
		interrupt.ShutdownChannel <- nil
	}()

	return <-interrupt.ShutdownChannel
}

func main() {
	// work around defer not working after os.Exit()
	if err := lipsyncMain(); err != nil {
		util.Fatal(err)
	}
}
