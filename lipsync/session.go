// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lipsync

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mutecomm/lipsync/channel"
	"github.com/mutecomm/lipsync/def"
	"github.com/mutecomm/lipsync/log"
	"github.com/mutecomm/lipsync/message"
	"github.com/mutecomm/lipsync/reconcile"
	"golang.org/x/sync/errgroup"
)

// Session is a single synchronization of one table over one connection.
type Session struct {
	store   Store
	secret  []byte
	role    Role
	timeout time.Duration

	mu    sync.Mutex
	state State

	ch     *channel.Channel
	table  string
	needed []string // identifiers this peer is missing
	toSend []string // identifiers the peer asked for
	tx     Tx
	result Result
}

// NewSession returns a new session for store. The secret is used to derive
// the session key when Run is called and dropped afterwards.
func NewSession(store Store, secret []byte, role Role) *Session {
	return &Session{
		store:   store,
		secret:  secret,
		role:    role,
		timeout: def.IdleTimeout,
	}
}

// SetIdleTimeout sets the maximum time a single network operation may block.
func (s *Session) SetIdleTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// State returns the current state of s. It is safe to call from other
// goroutines.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	log.Tracef("lipsync: %s: state %s", s.role, state)
}

// Sync runs a new session with role on conn. The initiator synchronizes
// table, the responder ignores it.
func Sync(conn channel.Conn, store Store, secret []byte, role Role, table string) (*Result, error) {
	return NewSession(store, secret, role).Run(conn, table)
}

// Run runs the session on conn and closes conn when done. The initiator
// synchronizes table, the responder the table the initiator asks for.
// Run returns the first error of the phases Auth to Response; errors during
// Terminate are ignored. The result is returned also in case of error.
func (s *Session) Run(conn channel.Conn, table string) (*Result, error) {
	if s.State() != Init {
		return nil, log.Error(ErrUsed)
	}
	ch, err := channel.Open(s.secret, conn)
	s.secret = nil
	if err != nil {
		conn.Close()
		s.setState(Closed)
		return nil, err
	}
	ch.SetIdleTimeout(s.timeout)
	s.ch = ch
	log.Infof("lipsync: %s: session started", s.role)
	err = s.run(table)
	s.terminate()
	switch {
	case err == nil:
		log.Infof("lipsync: %s: table %s synchronized: %d sent, %d received, %d discarded",
			s.role, s.result.Table, s.result.Sent, s.result.Received, s.result.Discarded)
	case errors.Is(err, ErrTerminated):
		log.Infof("lipsync: %s: %s", s.role, err)
	default:
		log.Warnf("lipsync: %s: session failed: %s", s.role, err)
	}
	res := s.result
	return &res, err
}

func (s *Session) run(table string) error {
	s.setState(Authenticating)
	if err := s.authenticate(); err != nil {
		return err
	}
	s.setState(ExchangingStatus)
	if err := s.exchangeStatus(table); err != nil {
		return err
	}
	s.setState(RequestingNeeds)
	if err := s.exchangeNeeds(); err != nil {
		return err
	}
	s.setState(TransferringRecords)
	return s.transfer()
}

func (s *Session) send(m *message.Message) error {
	data, err := message.Encode(m)
	if err != nil {
		return err
	}
	return s.ch.Send(data)
}

// receive returns the next message. A Continue(false) from the peer is
// returned as ErrTerminated.
func (s *Session) receive() (*message.Message, error) {
	data, err := s.ch.Receive()
	if err != nil {
		return nil, err
	}
	m, err := message.Decode(data)
	if err != nil {
		return nil, err
	}
	if m.Terminated() {
		return nil, fmt.Errorf("%w during %s", ErrTerminated, s.State())
	}
	return m, nil
}

func (s *Session) expect(kind message.Kind) (*message.Message, error) {
	m, err := s.receive()
	if err != nil {
		return nil, err
	}
	if k := m.Kind(); k != kind {
		return nil, log.Error(fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, k, kind))
	}
	return m, nil
}

// authError maps everything but a failed transport to ErrAuth. A peer with
// a different key produces undecodable frames.
func authError(err error) error {
	if errors.Is(err, ErrChannelClosed) {
		return err
	}
	return log.Error(fmt.Errorf("%w: %v", ErrAuth, err))
}

func (s *Session) authenticate() error {
	digest := s.ch.Digest()
	if err := s.send(message.Auth(def.ProtocolVersion, digest)); err != nil {
		return err
	}
	m, err := s.expect(message.KindAuth)
	if err != nil {
		return authError(err)
	}
	if m.Version != def.ProtocolVersion {
		return log.Error(fmt.Errorf("%w: peer speaks version %q", ErrAuth, m.Version))
	}
	if subtle.ConstantTimeCompare([]byte(m.Digest), []byte(digest)) != 1 {
		return log.Error(fmt.Errorf("%w: key digest mismatch", ErrAuth))
	}
	if err := s.send(message.Continue(true)); err != nil {
		return err
	}
	if _, err := s.expect(message.KindContinue); err != nil {
		return authError(err)
	}
	log.Debugf("lipsync: %s: authenticated", s.role)
	return nil
}

func (s *Session) status(table string) ([]string, error) {
	if _, err := s.store.Provision(table); err != nil {
		return nil, err
	}
	return s.store.UUIDs(table)
}

func (s *Session) exchangeStatus(table string) error {
	if s.role == Initiator {
		if _, err := s.store.Table(table); err != nil {
			return err
		}
		local, err := s.status(table)
		if err != nil {
			return err
		}
		if err := s.send(message.Status(table, local)); err != nil {
			return err
		}
		m, err := s.expect(message.KindStatus)
		if err != nil {
			return err
		}
		if m.Table != table {
			return log.Error(fmt.Errorf("%w: requested table %q, peer answered %q",
				ErrProtocolMismatch, table, m.Table))
		}
		s.table = table
		s.needed = reconcile.Missing(local, m.UUIDs)
	} else {
		m, err := s.expect(message.KindStatus)
		if err != nil {
			return err
		}
		name, err := s.store.Table(m.Table)
		if err != nil {
			return err
		}
		local, err := s.status(name)
		if err != nil {
			return err
		}
		s.table = name
		s.needed = reconcile.Missing(local, m.UUIDs)
		if err := s.send(message.Status(name, local)); err != nil {
			return err
		}
	}
	s.result.Table = s.table
	log.Debugf("lipsync: %s: table %s: missing %d records", s.role, s.table, len(s.needed))
	return nil
}

func (s *Session) exchangeNeeds() error {
	if err := s.send(message.NeedList(s.needed)); err != nil {
		return err
	}
	m, err := s.expect(message.KindNeedList)
	if err != nil {
		return err
	}
	s.toSend = reconcile.Missing(nil, m.Need)
	log.Debugf("lipsync: %s: table %s: peer requests %d records", s.role, s.table, len(s.toSend))
	return nil
}

// transfer sends the requested records while receiving the missing ones.
// The two directions use independent cipher streams.
func (s *Session) transfer() error {
	rows, err := s.store.Rows(s.table, s.toSend)
	if err != nil {
		return err
	}
	cols, err := s.store.DataColumns(s.table)
	if err != nil {
		return err
	}
	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	s.tx = tx
	var g errgroup.Group
	g.Go(func() error {
		return s.sendRecords(rows)
	})
	recvErr := s.receiveRecords(cols)
	sendErr := g.Wait()
	if recvErr != nil {
		return recvErr
	}
	if sendErr != nil {
		return sendErr
	}
	s.tx = nil
	return tx.Commit()
}

func (s *Session) sendRecords(rows map[string]map[string]string) error {
	for _, id := range s.toSend {
		record, ok := rows[id]
		if !ok {
			log.Warnf("lipsync: %s: peer requested unknown record %s", s.role, id)
			continue
		}
		if err := s.send(message.Record(id, record)); err != nil {
			return err
		}
		s.result.Sent++
	}
	return s.send(message.Done())
}

func (s *Session) receiveRecords(cols []string) error {
	need := reconcile.NewSet(s.needed)
	known := reconcile.NewSet(cols)
	for {
		m, err := s.receive()
		if err != nil {
			return err
		}
		switch m.Kind() {
		case message.KindDone:
			return nil
		case message.KindRecord:
		default:
			return log.Error(fmt.Errorf("%w: got %s during transfer",
				ErrUnexpectedMessage, m.Kind()))
		}
		if !need.Contains(m.UUID) {
			log.Warnf("lipsync: %s: discarding unrequested record %s", s.role, m.UUID)
			s.result.Discarded++
			continue
		}
		values := make(map[string]string, len(m.Record))
		for col, v := range m.Record {
			if !known.Contains(col) {
				log.Warnf("lipsync: %s: dropping unknown column %s", s.role, col)
				continue
			}
			values[col] = v
		}
		if err := s.tx.Insert(s.table, m.UUID, values); err != nil {
			return err
		}
		delete(need, m.UUID)
		s.result.Received++
	}
}

// terminate tells the peer the session is over and drains the connection
// until the peer says the same or the connection fails. It always closes the
// channel and rolls back an unfinished transaction.
func (s *Session) terminate() {
	s.setState(Terminating)
	if err := s.send(message.Continue(false)); err != nil {
		log.Debugf("lipsync: %s: terminate: %s", s.role, err)
	}
	for {
		if _, err := s.receive(); err != nil {
			break
		}
	}
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			log.Warnf("lipsync: %s: rollback: %s", s.role, err)
		}
		s.tx = nil
	}
	if err := s.ch.Close(); err != nil {
		log.Debugf("lipsync: %s: close: %s", s.role, err)
	}
	s.setState(Closed)
}
