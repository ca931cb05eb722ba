// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package channel implements the encrypted message channel of a lipsync
connection.

Both peers derive the same AES-256 key from the shared secret (SHA-256) and
the same IV (the last 8 key bytes, used for both IV halves). Each direction
uses one CTR stream for the whole connection: the keystream continues from one
message to the next and is never reset. Messages must therefore be received in
exactly the order they were sent, and a lost or corrupted block desynchronizes
the remainder of the connection.

A framed message is the payload, padded with spaces so that the payload plus
the terminator byte (0x17) is a multiple of the AES block size, followed by the
terminator. The receiver reads and decrypts one block at a time until a block
ends with the terminator.
*/
package channel

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	lcipher "github.com/mutecomm/lipsync/cipher"
	"github.com/mutecomm/lipsync/def"
	"github.com/mutecomm/lipsync/log"
	"github.com/mutecomm/lipsync/util/bzero"
)

// BlockSize is the cipher block size; every frame is a multiple of it.
const BlockSize = aes.BlockSize

// ErrCryptoInit is returned if the session ciphers cannot be constructed.
var ErrCryptoInit = errors.New("channel: cannot initialize session cipher")

// ErrClosed is returned if the connection failed, timed out, or did not
// deliver data after def.MaxReadAttempts consecutive reads.
var ErrClosed = errors.New("channel: connection closed")

// ErrMalformedFrame is returned if a decrypted block contains bytes a framed
// text message never contains. This happens if the peer uses a different key
// or the stream lost synchronization. It is also returned by Send for payloads
// that cannot be framed.
var ErrMalformedFrame = errors.New("channel: malformed frame")

// Conn is the transport a Channel runs on. It is satisfied by net.Conn.
type Conn interface {
	Read(b []byte) (n int, err error)
	Write(b []byte) (n int, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Channel is an encrypted, framed message channel over a Conn.
// Send and Receive may run in different goroutines (the two directions use
// independent streams), but neither may be called concurrently with itself.
type Channel struct {
	conn    Conn
	key     []byte
	iv      []byte
	enc     cipher.Stream
	dec     cipher.Stream
	timeout time.Duration
	closed  bool
}

// DeriveKey derives the session key and IV from secret.
// The key is SHA-256(secret), the IV consists of the last 8 bytes of the key
// in both its high and its low half.
func DeriveKey(secret []byte) (key, iv []byte) {
	key = lcipher.SHA256(secret)
	iv = make([]byte, BlockSize)
	tail := key[len(key)-BlockSize/2:]
	copy(iv[:BlockSize/2], tail)
	copy(iv[BlockSize/2:], tail)
	return key, iv
}

// Open derives the session key material from secret and returns a new
// channel on conn. The secret is not retained.
func Open(secret []byte, conn Conn) (*Channel, error) {
	key, iv := DeriveKey(secret)
	enc, err := lcipher.AES256CTRStream(key, iv)
	if err != nil {
		return nil, log.Error(fmt.Errorf("%w: %v", ErrCryptoInit, err))
	}
	dec, err := lcipher.AES256CTRStream(key, iv)
	if err != nil {
		return nil, log.Error(fmt.Errorf("%w: %v", ErrCryptoInit, err))
	}
	return &Channel{
		conn:    conn,
		key:     key,
		iv:      iv,
		enc:     enc,
		dec:     dec,
		timeout: def.IdleTimeout,
	}, nil
}

// SetIdleTimeout sets the maximum time a single read or write may block.
func (c *Channel) SetIdleTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Digest returns the session key in lower-case hex encoding. Two peers have
// the same digest exactly if they used the same shared secret.
func (c *Channel) Digest() string {
	return hex.EncodeToString(c.key)
}

// Frame returns msg padded and terminated for encryption.
// The length of the result is a multiple of BlockSize.
func Frame(msg []byte) []byte {
	n := len(msg) + 1
	if r := n % BlockSize; r != 0 {
		n += BlockSize - r
	}
	frame := make([]byte, n)
	copy(frame, msg)
	for i := len(msg); i < n-1; i++ {
		frame[i] = def.Padding
	}
	frame[n-1] = def.Terminator
	return frame
}

// textByte reports whether b may appear inside a framed message.
func textByte(b byte) bool {
	return b >= 0x20 || b == '\t' || b == '\n' || b == '\r'
}

// Send frames msg, encrypts it with the running send stream, and writes it.
func (c *Channel) Send(msg []byte) error {
	if c.closed {
		return log.Error(fmt.Errorf("%w: send on closed channel", ErrClosed))
	}
	for _, b := range msg {
		if !textByte(b) {
			return log.Error(fmt.Errorf("%w: payload contains byte 0x%02x",
				ErrMalformedFrame, b))
		}
	}
	frame := Frame(msg)
	c.enc.XORKeyStream(frame, frame)
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return log.Error(fmt.Errorf("%w: %v", ErrClosed, err))
	}
	if _, err := c.conn.Write(frame); err != nil {
		return log.Error(fmt.Errorf("%w: %v", ErrClosed, err))
	}
	log.Tracef("channel: sent %d bytes (%d framed)", len(msg), len(frame))
	return nil
}

// Receive reads, decrypts, and returns the next message. The terminator is
// removed, the padding is not.
func (c *Channel) Receive() ([]byte, error) {
	if c.closed {
		return nil, log.Error(fmt.Errorf("%w: receive on closed channel", ErrClosed))
	}
	var plaintext []byte
	for {
		block, err := c.readBlock()
		if err != nil {
			return nil, err
		}
		c.dec.XORKeyStream(block, block)
		for i, b := range block {
			if textByte(b) {
				continue
			}
			if b == def.Terminator && i == len(block)-1 {
				plaintext = append(plaintext, block[:i]...)
				log.Tracef("channel: received %d bytes", len(plaintext))
				return plaintext, nil
			}
			return nil, log.Error(fmt.Errorf("%w: byte 0x%02x at offset %d",
				ErrMalformedFrame, b, len(plaintext)+i))
		}
		plaintext = append(plaintext, block...)
	}
}

// readBlock reads exactly one cipher block. A read that fails or delivers no
// data is retried; after def.MaxReadAttempts such reads in a row the block is
// given up. A timeout is never retried.
func (c *Channel) readBlock() ([]byte, error) {
	block := make([]byte, BlockSize)
	var (
		offset   int
		failures int
		lastErr  error
	)
	for offset < len(block) {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, log.Error(fmt.Errorf("%w: %v", ErrClosed, err))
		}
		n, err := c.conn.Read(block[offset:])
		if n > 0 {
			offset += n
			failures = 0
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, log.Error(fmt.Errorf("%w: idle timeout: %v", ErrClosed, err))
			}
			lastErr = err
		}
		if n > 0 {
			continue
		}
		failures++
		if failures >= def.MaxReadAttempts {
			if lastErr == nil {
				lastErr = errors.New("no data")
			}
			return nil, log.Error(fmt.Errorf("%w: %d failed reads: %v",
				ErrClosed, failures, lastErr))
		}
		log.Debugf("channel: read failed (%d/%d), retry", failures, def.MaxReadAttempts)
	}
	return block, nil
}

// Close finalizes both cipher streams, zeroes the key material, and closes
// the underlying connection. Calling Close more than once is a no-op.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	bzero.Bytes(c.key)
	bzero.Bytes(c.iv)
	c.enc = nil
	c.dec = nil
	if err := c.conn.Close(); err != nil {
		return log.Error(err)
	}
	return nil
}
