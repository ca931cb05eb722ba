// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher

import (
	"crypto/sha256"
)

// SHA256 computes the SHA256 hash of the given buffer.
// In lipsync SHA256 turns the shared secret into the session key.
func SHA256(buffer []byte) []byte {
	hash := sha256.New()
	hash.Write(buffer)
	return hash.Sum(make([]byte, 0, sha256.Size))
}
