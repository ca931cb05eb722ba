// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cipher wraps the symmetric primitives used by lipsync.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"io"

	"github.com/mutecomm/lipsync/log"
)

// ErrKeyLength is returned if an AES-256 key is not 32 bytes long.
var ErrKeyLength = errors.New("cipher: AES-256 key is not 32 bytes long")

// ErrIVLength is returned if an IV is not one AES block long.
var ErrIVLength = errors.New("cipher: AES-256 IV is not 16 bytes long")

// AES256CBCEncrypt encrypts the given plaintext with AES-256 in CBC mode.
// The supplied key must be 32 bytes long and the plaintext a multiple of the
// block size. The returned ciphertext is prepended by a randomly generated IV.
func AES256CBCEncrypt(key, plaintext []byte, rand io.Reader) (ciphertext []byte) {
	if len(key) != 32 {
		panic(log.Critical(ErrKeyLength))
	}
	block, _ := aes.NewCipher(key) // correct key length was enforced above
	if len(plaintext)%aes.BlockSize != 0 {
		panic(log.Critical("cipher: plaintext is not a multiple of the block size"))
	}
	ciphertext = make([]byte, aes.BlockSize+len(plaintext))
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand, iv); err != nil {
		panic(log.Critical(err))
	}
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext[aes.BlockSize:], plaintext)
	return
}

// AES256CBCDecrypt decrypts the given ciphertext with AES-256 in CBC mode and
// returns the resulting plaintext. The supplied key must be 32 bytes long and
// the ciphertext must be prepended by the corresponding IV.
func AES256CBCDecrypt(key, ciphertext []byte) (plaintext []byte) {
	if len(key) != 32 {
		panic(log.Critical(ErrKeyLength))
	}
	block, _ := aes.NewCipher(key) // correct key length was enforced above
	if len(ciphertext) < aes.BlockSize {
		panic(log.Critical("cipher: ciphertext too short"))
	}
	iv := ciphertext[:aes.BlockSize]
	ciphertext = ciphertext[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		panic(log.Critical("cipher: ciphertext is not a multiple of the block size"))
	}
	plaintext = make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext)
	return
}

// AES256CTRStream creates a new AES-256 stream in CTR mode.
// The supplied key must be 32 bytes long and the iv 16 bytes.
// The stream keeps its counter position between XORKeyStream calls, so a
// single stream can encrypt (or decrypt) an unbounded sequence of messages.
func AES256CTRStream(key, iv []byte) (cipher.Stream, error) {
	if len(key) != 32 {
		return nil, ErrKeyLength
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrIVLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}
