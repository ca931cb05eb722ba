// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package lipsync synchronizes one table between two peers sharing a secret.

A session runs over a single connection and passes five phases:

  Auth      both peers prove they derived the same key from the secret
  Status    the peers exchange the identifiers they hold for the table
  Request   each peer asks for the identifiers it is missing
  Response  the requested records are transferred in both directions
  Terminate the peers say goodbye, drain the connection, and close it

The initiator names the table and sends its status first, the responder
learns the table from that status. Terminate always runs, also after a failed
phase, so the peer is never left blocked on a vanished reader.
*/
package lipsync

import (
	"errors"
	"fmt"

	"github.com/mutecomm/lipsync/channel"
	"github.com/mutecomm/lipsync/message"
	"github.com/mutecomm/lipsync/tabledb"
)

// ErrAuth is returned if the peer used a different secret or protocol
// version, or did not acknowledge the authentication.
var ErrAuth = errors.New("lipsync: authentication failed")

// ErrProtocolMismatch is returned if the peers disagree on the table.
var ErrProtocolMismatch = errors.New("lipsync: protocol mismatch")

// ErrTerminated is returned if the peer terminated the session early.
var ErrTerminated = errors.New("lipsync: session terminated by peer")

// ErrUsed is returned if a session is run more than once.
var ErrUsed = errors.New("lipsync: session already used")

// Errors of the lower layers a session can return.
var (
	ErrCryptoInit        = channel.ErrCryptoInit
	ErrChannelClosed     = channel.ErrClosed
	ErrMalformedMessage  = message.ErrMalformed
	ErrUnexpectedMessage = message.ErrUnexpected
)

// Role is the part a peer plays in a session.
type Role int

const (
	// Initiator opens the session and names the table.
	Initiator Role = iota
	// Responder accepts the session and learns the table from the initiator.
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// State is the protocol state of a session. States are passed in order.
type State int

// Session states.
const (
	Init State = iota
	Authenticating
	ExchangingStatus
	RequestingNeeds
	TransferringRecords
	Terminating
	Closed
)

var stateNames = []string{
	"Init",
	"Authenticating",
	"ExchangingStatus",
	"RequestingNeeds",
	"TransferringRecords",
	"Terminating",
	"Closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Store is the row store a session synchronizes.
type Store interface {
	// Table returns the stored spelling of table name.
	Table(name string) (string, error)
	// Provision assigns an identifier to every row of table which has none.
	Provision(table string) (int, error)
	// UUIDs returns the identifiers of all rows in table.
	UUIDs(table string) ([]string, error)
	// Rows returns the data columns of the given rows, mapped by identifier.
	Rows(table string, uuids []string) (map[string]map[string]string, error)
	// DataColumns returns the columns of table transferred between peers.
	DataColumns(table string) ([]string, error)
	// Begin starts the transaction received records are inserted in.
	Begin() (Tx, error)
}

// Tx is a row store transaction.
type Tx interface {
	Insert(table, id string, values map[string]string) error
	Commit() error
	Rollback() error
}

// Result summarizes a session.
type Result struct {
	Table     string // table synchronized
	Sent      int    // records sent to the peer
	Received  int    // records received and inserted
	Discarded int    // received records which were not requested
}

type tableStore struct {
	*tabledb.DB
}

func (s tableStore) Begin() (Tx, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// TableStore returns db as a Store.
func TableStore(db *tabledb.DB) Store {
	return tableStore{db}
}
