package bzero

import (
	"bytes"
	"io"
	"testing"

	"github.com/mutecomm/lipsync/cipher"
)

func TestBytes(t *testing.T) {
	zero := make([]byte, 1024)
	buf := make([]byte, 1024)
	if _, err := io.ReadFull(cipher.RandReader, buf); err != nil {
		t.Fatal(err)
	}
	Bytes(buf)
	if !bytes.Equal(buf, zero) {
		t.Error("buffers differ")
	}
}

func TestBytesEmpty(t *testing.T) {
	Bytes(nil)
	Bytes([]byte{})
}
