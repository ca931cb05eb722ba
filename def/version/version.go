// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version defines the current lipsync version number.
package version

// Number is the current lipsync version number.
// We use semantic versioning (http://semver.org/).
const Number = "0.1.0"
