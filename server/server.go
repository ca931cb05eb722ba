// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server accepts lipsync connections and answers each with a
// responder session.
package server

import (
	"errors"
	"net"
	"sync"

	"github.com/mutecomm/lipsync/lipsync"
	"github.com/mutecomm/lipsync/log"
	"github.com/mutecomm/lipsync/util/bzero"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server: closed")

// Server runs one responder session per accepted connection. Sessions run
// concurrently and share the store.
type Server struct {
	store  lipsync.Store
	secret []byte

	// Done is called after every session, if set.
	Done func(remote string, res *lipsync.Result, err error)

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// New returns a new server for store. The server keeps a copy of secret
// until it is closed.
func New(store lipsync.Store, secret []byte) *Server {
	return &Server{
		store:  store,
		secret: append([]byte(nil), secret...),
	}
}

// Serve accepts connections on ln until Close is called. It always returns
// an error, ErrServerClosed after Close.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()
	log.Infof("server: listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return log.Error(err)
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return ErrServerClosed
		}
		s.wg.Add(1)
		secret := append([]byte(nil), s.secret...)
		s.mu.Unlock()
		go s.handle(conn, secret)
	}
}

func (s *Server) handle(conn net.Conn, secret []byte) {
	defer s.wg.Done()
	remote := conn.RemoteAddr().String()
	log.Infof("server: session with %s", remote)
	res, err := lipsync.Sync(conn, s.store, secret, lipsync.Responder, "")
	bzero.Bytes(secret)
	if s.Done != nil {
		s.Done(remote, res, err)
	}
}

// Close stops accepting connections and waits for running sessions.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	bzero.Bytes(s.secret)
	s.mu.Unlock()
	s.wg.Wait()
	return err
}
