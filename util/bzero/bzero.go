// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bzero defines helper functions to zero sensitive memory.
package bzero

import "crypto/subtle"

// Bytes overwrites all entries in the given byte slice buffer with zeros.
func Bytes(buffer []byte) {
	if len(buffer) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, buffer, make([]byte, len(buffer)))
}
