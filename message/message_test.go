// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	msgs := []*Message{
		Auth("1.0", "6b86b273ff34fce19d6b804eff5a3f5747ada4eaa22f1d49c01e52ddb7875b4b"),
		Continue(true),
		Continue(false),
		Status("notes", nil),
		Status("notes", []string{"a"}),
		Status("notes", []string{"a", "b", "c"}),
		NeedList(nil),
		NeedList([]string{"b", "a"}),
		Record("a", nil),
		Record("a", map[string]string{"text": "hello"}),
		Record("a", map[string]string{
			"_lipsync_uuid": "a",
			"text":          "grüße \"quoted\"\n",
			"empty":         "",
		}),
		Done(),
	}
	for _, m := range msgs {
		enc, err := Encode(m)
		require.NoError(t, err)
		dec, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, m, dec, string(enc))
		assert.Equal(t, m.Kind(), dec.Kind())
	}
}

func TestEncodeWire(t *testing.T) {
	tests := []struct {
		m    *Message
		wire string
	}{
		{Auth("1.0", "ab"), `{"LipSync_Digest":"ab","LipSync_Version":"1.0"}`},
		{Continue(true), `{"LipSync_Continue":true}`},
		{Continue(false), `{"LipSync_Continue":false}`},
		{Done(), `{"LipSync_Done":true}`},
		{Status("t", nil), `{"table":"t","uuids":[]}`},
		{NeedList(nil), `{"need":[]}`},
		{Record("u", map[string]string{"b": "2", "a": "1"}), `{"record":{"a":"1","b":"2"},"uuid":"u"}`},
	}
	for _, test := range tests {
		enc, err := Encode(test.m)
		require.NoError(t, err)
		assert.Equal(t, test.wire, string(enc))
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindAuth, Auth("1.0", "x").Kind())
	assert.Equal(t, KindContinue, Continue(false).Kind())
	assert.Equal(t, KindStatus, Status("t", nil).Kind())
	assert.Equal(t, KindNeedList, NeedList(nil).Kind())
	assert.Equal(t, KindRecord, Record("u", nil).Kind())
	assert.Equal(t, KindDone, Done().Kind())
	assert.Equal(t, KindUnknown, (&Message{}).Kind())
	assert.Equal(t, "NeedList", KindNeedList.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestTerminated(t *testing.T) {
	assert.True(t, Continue(false).Terminated())
	assert.False(t, Continue(true).Terminated())
	assert.False(t, Done().Terminated())
}

func TestDecodePadding(t *testing.T) {
	m, err := Decode([]byte(`{"need":["x"]}` + "          "))
	require.NoError(t, err)
	assert.Equal(t, NeedList([]string{"x"}), m)
}

func TestDecodeUnknownField(t *testing.T) {
	m, err := Decode([]byte(`{"LipSync_Continue":true,"extra":42}`))
	require.NoError(t, err)
	assert.Equal(t, Continue(true), m)
}

func TestDecodeMalformed(t *testing.T) {
	for _, data := range []string{"", "{", "not json", `{"need":"x"}`, `[1,2]`} {
		_, err := Decode([]byte(data))
		assert.True(t, errors.Is(err, ErrMalformed), data)
	}
}

func TestExpect(t *testing.T) {
	_, err := Expect([]byte(`{"LipSync_Done":true}`), KindDone)
	assert.NoError(t, err)
	_, err = Expect([]byte(`{"LipSync_Done":true}`), KindStatus)
	assert.True(t, errors.Is(err, ErrUnexpected))
	_, err = Expect([]byte(`}`), KindStatus)
	assert.True(t, errors.Is(err, ErrMalformed))
}
