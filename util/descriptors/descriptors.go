// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package descriptors defines helper functions for common file descriptors.
package descriptors

import (
	"os"
	"strconv"
	"syscall"

	"github.com/mutecomm/lipsync/log"
	"github.com/urfave/cli"
)

var (
	// OutputFDFlag defines the standard --output-fd flag.
	OutputFDFlag = cli.StringFlag{
		Name:  "output-fd",
		Value: "stdout",
		Usage: "output file descriptor",
	}
	// PassphraseFDFlag defines the standard --passphrase-fd flag.
	PassphraseFDFlag = cli.StringFlag{
		Name:  "passphrase-fd",
		Value: "stdin",
		Usage: "passphrase file descriptor (table database)",
	}
	// SecretFDFlag defines the standard --secret-fd flag.
	SecretFDFlag = cli.StringFlag{
		Name:  "secret-fd",
		Value: "3",
		Usage: "shared secret file descriptor",
	}
)

// Table contains all standard file descriptors and file pointers.
type Table struct {
	OutputFD     uintptr  // output file descriptor
	PassphraseFD uintptr  // passphrase file descriptor
	SecretFD     uintptr  // shared secret file descriptor
	OutputFP     *os.File // output file pointer
	PassphraseFP *os.File // passphrase file pointer
	SecretFP     *os.File // shared secret file pointer
}

// ParseFD parses a file descriptor option value: "stdin", "stdout",
// "stderr", or an integer.
func ParseFD(name, fs string) (fd uintptr, fp *os.File, err error) {
	switch fs {
	case "stdin":
		fd = uintptr(syscall.Stdin)
		fp = os.Stdin
	case "stdout":
		fd = uintptr(syscall.Stdout)
		fp = os.Stdout
	case "stderr":
		fd = uintptr(syscall.Stderr)
		fp = os.Stderr
	default:
		i, err := strconv.Atoi(fs)
		if err != nil || i < 0 {
			return 0, nil,
				log.Errorf("cannot parse --%s %s: argument must be \"stdin\", "+
					"\"stdout\", \"stderr\" or an integer (a file descriptor)",
					name, fs)
		}
		fd = uintptr(i)
		fp = os.NewFile(fd, name)
	}
	return
}

// NewTable parses the standard file descriptor options in context c and
// returns a table with the corresponding file descriptors and file pointers.
func NewTable(c *cli.Context) (*Table, error) {
	var t Table
	var err error
	t.OutputFD, t.OutputFP, err = ParseFD("output-fd", c.GlobalString("output-fd"))
	if err != nil {
		return nil, err
	}
	t.PassphraseFD, t.PassphraseFP, err = ParseFD("passphrase-fd", c.GlobalString("passphrase-fd"))
	if err != nil {
		return nil, err
	}
	t.SecretFD, t.SecretFP, err = ParseFD("secret-fd", c.GlobalString("secret-fd"))
	if err != nil {
		return nil, err
	}
	return &t, nil
}
