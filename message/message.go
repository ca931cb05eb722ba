// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package message defines the application messages of the lipsync protocol
// and their JSON encoding.
//
// Messages carry no type tag, the kind of a message is determined by the
// fields it contains:
//
//   Auth      {"LipSync_Digest": "<hex>", "LipSync_Version": "1.0"}
//   Continue  {"LipSync_Continue": true|false}
//   Status    {"table": "<name>", "uuids": [...]}
//   NeedList  {"need": [...]}
//   Record    {"record": {"<column>": "<value>", ...}, "uuid": "<id>"}
//   Done      {"LipSync_Done": true}
//
// Continue(false) doubles as the terminate signal.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/structs"
	"github.com/mutecomm/lipsync/log"
)

// ErrMalformed is returned if a message is not well-formed JSON.
var ErrMalformed = errors.New("message: malformed message")

// ErrUnexpected is returned if a message is well-formed but not of the kind
// the protocol expects at this point.
var ErrUnexpected = errors.New("message: unexpected message")

// Kind is the kind of a message, derived from the fields it contains.
type Kind int

// Message kinds.
const (
	KindUnknown Kind = iota
	KindAuth
	KindContinue
	KindStatus
	KindNeedList
	KindRecord
	KindDone
)

var kindNames = []string{
	"Unknown",
	"Auth",
	"Continue",
	"Status",
	"NeedList",
	"Record",
	"Done",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Message is a lipsync protocol message. Only the fields of one kind are set.
// Nil slices, maps, and pointers are absent, empty ones are present.
type Message struct {
	Version  string            `json:"LipSync_Version,omitempty" structs:"LipSync_Version,omitempty"`
	Digest   string            `json:"LipSync_Digest,omitempty" structs:"LipSync_Digest,omitempty"`
	Continue *bool             `json:"LipSync_Continue,omitempty" structs:"LipSync_Continue,omitempty,omitnested"`
	Done     *bool             `json:"LipSync_Done,omitempty" structs:"LipSync_Done,omitempty,omitnested"`
	Table    string            `json:"table,omitempty" structs:"table,omitempty"`
	UUIDs    []string          `json:"uuids,omitempty" structs:"uuids,omitempty,omitnested"`
	Need     []string          `json:"need,omitempty" structs:"need,omitempty,omitnested"`
	UUID     string            `json:"uuid,omitempty" structs:"uuid,omitempty"`
	Record   map[string]string `json:"record,omitempty" structs:"record,omitempty,omitnested"`
}

// Auth returns an Auth message.
func Auth(version, digest string) *Message {
	return &Message{Version: version, Digest: digest}
}

// Continue returns a Continue message. Continue(false) terminates a session.
func Continue(cont bool) *Message {
	return &Message{Continue: &cont}
}

// Status returns a Status message announcing the identifiers of table.
func Status(table string, uuids []string) *Message {
	if uuids == nil {
		uuids = []string{}
	}
	return &Message{Table: table, UUIDs: uuids}
}

// NeedList returns a NeedList message requesting the given identifiers.
func NeedList(need []string) *Message {
	if need == nil {
		need = []string{}
	}
	return &Message{Need: need}
}

// Record returns a Record message carrying the columns of one row.
func Record(uuid string, record map[string]string) *Message {
	if record == nil {
		record = make(map[string]string)
	}
	return &Message{UUID: uuid, Record: record}
}

// Done returns a Done message.
func Done() *Message {
	done := true
	return &Message{Done: &done}
}

// Kind returns the kind of m.
func (m *Message) Kind() Kind {
	switch {
	case m.Version != "" || m.Digest != "":
		return KindAuth
	case m.Continue != nil:
		return KindContinue
	case m.Done != nil:
		return KindDone
	case m.UUIDs != nil:
		return KindStatus
	case m.Need != nil:
		return KindNeedList
	case m.Record != nil:
		return KindRecord
	default:
		return KindUnknown
	}
}

// Terminated reports whether m is a Continue(false) message.
func (m *Message) Terminated() bool {
	return m.Continue != nil && !*m.Continue
}

// Encode returns the JSON encoding of m. Keys are sorted, so equal messages
// have equal encodings.
func Encode(m *Message) ([]byte, error) {
	enc, err := json.Marshal(structs.Map(m))
	if err != nil {
		return nil, log.Error(err)
	}
	return enc, nil
}

// Decode parses a JSON encoded message. Trailing padding and unknown fields
// are ignored.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, log.Error(fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	return &m, nil
}

// Expect decodes data and makes sure the result is of the given kind.
func Expect(data []byte, kind Kind) (*Message, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if k := m.Kind(); k != kind {
		return nil, log.Error(fmt.Errorf("%w: got %s, want %s", ErrUnexpected, k, kind))
	}
	return m, nil
}
