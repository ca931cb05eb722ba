// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cihub/seelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitInvalid(t *testing.T) {
	assert.Error(t, Init("verbose", "test ", "", false))
	assert.Error(t, Init("info", "toolong", "", false))
}

func TestErrorKeepsIdentity(t *testing.T) {
	defer UseLogger(seelog.Disabled)
	var buf bytes.Buffer
	require.NoError(t, SetLogWriter(&buf))
	sentinel := errors.New("pkg: sentinel")
	wrapped := fmt.Errorf("pkg: context: %w", sentinel)
	err := Error(wrapped)
	assert.True(t, errors.Is(err, sentinel))
	logger.Flush()
	assert.True(t, strings.Contains(buf.String(), "pkg: context"))
}

func TestErrorf(t *testing.T) {
	err := Errorf("table %s unknown", "notes")
	require.Error(t, err)
	assert.Equal(t, "table notes unknown", err.Error())
}

func TestSetLogWriterNil(t *testing.T) {
	assert.Error(t, SetLogWriter(nil))
}
