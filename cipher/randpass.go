// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher

import (
	"encoding/base64"
	"io"

	"github.com/mutecomm/lipsync/log"
)

// RandPass returns a random 256-bit password in base64 encoding.
// It is suitable both as a database passphrase and as a shared secret.
func RandPass(rand io.Reader) string {
	var pass = make([]byte, 32)
	if _, err := io.ReadFull(rand, pass); err != nil {
		panic(log.Critical(err))
	}
	return base64.StdEncoding.EncodeToString(pass)
}
