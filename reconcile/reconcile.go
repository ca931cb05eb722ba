// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reconcile computes which records a peer is missing.
package reconcile

// Set is a set of record identifiers.
type Set map[string]struct{}

// NewSet returns a set containing ids.
func NewSet(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in s.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Missing returns the identifiers in remote that are not in local, in the
// order they appear in remote and without duplicates. The result is never nil.
func Missing(local, remote []string) []string {
	have := NewSet(local)
	missing := make([]string, 0)
	for _, id := range remote {
		if have.Contains(id) {
			continue
		}
		have[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}
