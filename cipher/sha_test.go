// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher

import (
	"encoding/hex"
	"testing"
)

func TestSHA256(t *testing.T) {
	if hex.EncodeToString(SHA256([]byte(""))) != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Error("SHA256(\"\") != \"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855\")")
	}
	if hex.EncodeToString(SHA256([]byte("abc"))) != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Error("SHA256(\"abc\") != \"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad\")")
	}
}
