// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package client connects to a lipsync server and runs an initiator session.
package client

import (
	"net"
	"time"

	"github.com/jpillora/backoff"
	"github.com/mutecomm/lipsync/def"
	"github.com/mutecomm/lipsync/lipsync"
	"github.com/mutecomm/lipsync/log"
)

// Dial connects to the TCP address addr. Failed attempts are retried with
// exponential backoff until def.DialMaxDuration has passed.
func Dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, def.IdleTimeout)
	if err == nil {
		return conn, nil
	}
	log.Warnf("client: dial %s: %s", addr, err)
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 1.5,
		Jitter: false,
	}
	var total time.Duration
	for total < def.DialMaxDuration {
		d := b.Duration()
		time.Sleep(d)
		total += d
		conn, err = net.DialTimeout("tcp", addr, def.IdleTimeout)
		if err == nil {
			return conn, nil
		}
		log.Warnf("client: dial %s: %s", addr, err)
	}
	return nil, log.Error(err)
}

// Sync connects to the server at addr and synchronizes table of store with
// it.
func Sync(addr, table string, secret []byte, store lipsync.Store) (*lipsync.Result, error) {
	conn, err := Dial(addr)
	if err != nil {
		return nil, err
	}
	log.Infof("client: connected to %s", addr)
	return lipsync.Sync(conn, store, secret, lipsync.Initiator, table)
}
