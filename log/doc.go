// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package log implements the logging framework used by lipsync.

See https://github.com/cihub/seelog/wiki/Log-levels for an introduction to the
different logging levels.

Error conditions are logged once, as early as possible. When an external
package returns an error, it is wrapped in a log.Error() call before it is
passed on. Errors created by lipsync itself are created with log.Error[f]().
Values for panic() are created with log.Critical[f](). A peer that terminates
a session early is not a local failure and is logged with log.Info[f]().

Logging is disabled until Init is called, so library users that never call
Init get a silent package.
*/
package log
