// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher

import (
	"io"
	"testing"
)

var (
	secret   = "this is a secret"
	key      = make([]byte, 32)
	iv       = make([]byte, 16)
	shortKey = make([]byte, 31)
	shortIV  = make([]byte, 15)
)

func init() {
	if _, err := io.ReadFull(RandReader, key); err != nil {
		panic(err)
	}
	if _, err := io.ReadFull(RandReader, iv); err != nil {
		panic(err)
	}
}

func TestAES256CBC(t *testing.T) {
	ciphertext := AES256CBCEncrypt(key, []byte(secret), RandReader)
	plaintext := string(AES256CBCDecrypt(key, ciphertext))
	if plaintext != secret {
		t.Error("AES256CBC: plaintext != secret")
	}
}

func TestAES256Stream(t *testing.T) {
	stream, err := AES256CTRStream(key, iv)
	if err != nil {
		t.Fatal(err)
	}
	ciphertext := make([]byte, len(secret))
	stream.XORKeyStream(ciphertext, []byte(secret))
	stream, err = AES256CTRStream(key, iv)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := make([]byte, len(secret))
	stream.XORKeyStream(plaintext, ciphertext)
	if string(plaintext) != secret {
		t.Error("AES256CTRStream: plaintext != secret")
	}
}

// Encrypting in pieces must give the same ciphertext as encrypting at once.
func TestAES256StreamContinuity(t *testing.T) {
	msg := []byte(secret + secret + "tail")
	whole, _ := AES256CTRStream(key, iv)
	expected := make([]byte, len(msg))
	whole.XORKeyStream(expected, msg)

	pieces, _ := AES256CTRStream(key, iv)
	actual := make([]byte, len(msg))
	pieces.XORKeyStream(actual[:5], msg[:5])
	pieces.XORKeyStream(actual[5:16], msg[5:16])
	pieces.XORKeyStream(actual[16:], msg[16:])
	if string(actual) != string(expected) {
		t.Error("AES256CTRStream: split encryption differs")
	}
}

func shouldPanic(t *testing.T) {
	if r := recover(); r == nil {
		t.Fatal("should panic")
	}
}

func TestAESCBCEncryptShortKey(t *testing.T) {
	defer shouldPanic(t)
	AES256CBCEncrypt(shortKey, []byte(secret), RandReader)
}

func TestAESCBCEncryptRandFail(t *testing.T) {
	defer shouldPanic(t)
	AES256CBCEncrypt(key, []byte(secret), RandFail)
}

func TestAESCBCDecryptShortCiphertext(t *testing.T) {
	defer shouldPanic(t)
	AES256CBCDecrypt(key, []byte("too short"))
}

func TestAESCTRStreamShortKey(t *testing.T) {
	if _, err := AES256CTRStream(shortKey, iv); err != ErrKeyLength {
		t.Errorf("AES256CTRStream: err = %v, want ErrKeyLength", err)
	}
}

func TestAESCTRStreamShortIV(t *testing.T) {
	if _, err := AES256CTRStream(key, shortIV); err != ErrIVLength {
		t.Errorf("AES256CTRStream: err = %v, want ErrIVLength", err)
	}
}
