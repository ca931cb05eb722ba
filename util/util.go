// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package util contains utility functions for lipsync.
package util

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mutecomm/lipsync/log"
	"golang.org/x/crypto/ssh/terminal"
)

// Fatal prints err to stderr and exits the process with exit code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "%s: error: %s\n", os.Args[0], err)
	os.Exit(1)
}

// Readline reads a single line from the file pointer fp.
// It closes the file pointer afterwards.
// Make sure you do not call it multiple times on the same file pointer!
func Readline(fp *os.File) ([]byte, error) {
	defer fp.Close()
	fd := int(fp.Fd())
	if terminal.IsTerminal(fd) {
		return terminal.ReadPassword(fd)
	}
	scanner := bufio.NewScanner(fp)
	var line []byte
	if scanner.Scan() {
		line = append(line, scanner.Bytes()...)
	} else if err := scanner.Err(); err != nil {
		return nil, log.Error(err)
	}
	return line, nil
}

// Readlines reads n lines from the file pointer fp and closes it afterwards.
// Missing lines are an error.
func Readlines(fp *os.File, n int) ([][]byte, error) {
	defer fp.Close()
	scanner := bufio.NewScanner(fp)
	var lines [][]byte
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		return nil, log.Error(err)
	}
	if len(lines) < n {
		return nil, log.Errorf("util: expected %d lines, got %d", n, len(lines))
	}
	return lines, nil
}

// CreateDirs creates all given directories.
func CreateDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return log.Error(err)
		}
	}
	return nil
}
