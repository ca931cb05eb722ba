// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package def defines all default values used in lipsync.
//
// The protocol constants are part of the wire contract between independently
// built peers and must not be changed.
package def

import (
	"os"
	"path/filepath"
	"time"
)

// ProtocolVersion is sent in the Auth message and must match on both sides.
const ProtocolVersion = "1.0"

// Terminator ends every framed message (ASCII ETB).
const Terminator byte = 0x17

// Padding fills a message up to the block boundary before the terminator.
const Padding byte = ' '

// IdleTimeout bounds every blocking read and write on a sync connection.
const IdleTimeout = 30 * time.Second

// MaxReadAttempts is the number of consecutive failed reads tolerated while
// reading one cipher block.
const MaxReadAttempts = 5

// UUIDColumn is the reserved column holding record identifiers.
const UUIDColumn = "_lipsync_uuid"

// UUIDColumnType is the SQL type of UUIDColumn.
const UUIDColumnType = "TEXT"

// DefaultPort is the TCP port the server listens on by default.
const DefaultPort = "7911"

// KDFIterations defines the default number of PBKDF2 iterations used to
// protect the key file of an encrypted table database.
const KDFIterations = 64000

// DialMaxDuration defines the maximum duration a client keeps retrying to
// connect to a server.
var DialMaxDuration = 1 * time.Minute

// HomeDir returns the default lipsync home directory.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lipsync"
	}
	return filepath.Join(home, ".lipsync")
}

// LogDir returns the default log directory.
func LogDir() string {
	return filepath.Join(HomeDir(), "log")
}
