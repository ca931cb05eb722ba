// Copyright (c) 2015 Mute Communications Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cihub/seelog"
)

// PrefixLen is the length of the command prefix written into every log line.
const PrefixLen = 5

var logger seelog.LoggerInterface

func init() {
	logger = seelog.Disabled
}

const configTemplate = `
<seelog type="adaptive" mininterval="2000000" maxinterval="100000000"
	critmsgcount="500" minlevel="%s">
	<outputs formatid="all">
		%s
		%s
	</outputs>
	<formats>
		<format id="all" format="%%UTCDate %%UTCTime [%s] [%%LEV] %%Msg%%n" />
	</formats>
</seelog>`

// Init initializes logging to the given level.
// If logDir is not empty, output is written to a rolling logfile in that
// directory. If logToConsole is true, output is also written to the console.
// cmdPrefix must be PrefixLen characters long, it is used to distinguish the
// log lines of different commands (e.g. "serve" and "sync ").
func Init(logLevel, cmdPrefix, logDir string, logToConsole bool) error {
	if _, found := seelog.LogLevelFromString(logLevel); !found {
		return fmt.Errorf("log: level '%s' is invalid", logLevel)
	}
	if len(cmdPrefix) != PrefixLen {
		return fmt.Errorf("log: len(cmdPrefix) must be %d: \"%s\"", PrefixLen, cmdPrefix)
	}
	var console string
	if logToConsole {
		console = "<console />"
	}
	var file string
	if logDir != "" {
		name := filepath.Base(os.Args[0]) + ".log"
		file = fmt.Sprintf("<rollingfile type=\"size\" filename=\"%s\" maxsize=\"10485760\" maxrolls=\"3\" />",
			filepath.Join(logDir, name))
	}
	config := fmt.Sprintf(configTemplate, logLevel, console, file, cmdPrefix)
	newLogger, err := seelog.LoggerFromConfigAsString(config)
	if err != nil {
		return err
	}
	newLogger.SetAdditionalStackDepth(1)
	UseLogger(newLogger)
	Infof("%s started (built with %s %s for %s/%s)", os.Args[0],
		runtime.Compiler, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}

// Flush flushes all the messages in the logger.
func Flush() {
	Infof("%s stopping", os.Args[0])
	logger.Flush()
}

// Critical logs v with log level = Critical and returns it as an error.
// If v is a single error, that error is returned unchanged.
func Critical(v ...interface{}) error {
	if err, ok := single(v); ok {
		logger.Critical(err)
		return err
	}
	return logger.Critical(v...)
}

// Criticalf formats message according to format specifier, logs it with log
// level = Critical and returns it as an error.
func Criticalf(format string, params ...interface{}) error {
	return logger.Criticalf(format, params...)
}

// Error logs v with log level = Error and returns it as an error.
// If v is a single error, that error is returned unchanged, so wrapped errors
// keep working with errors.Is.
func Error(v ...interface{}) error {
	if err, ok := single(v); ok {
		logger.Error(err)
		return err
	}
	return logger.Error(v...)
}

// Errorf formats message according to format specifier, logs it with log
// level = Error and returns it as an error.
func Errorf(format string, params ...interface{}) error {
	return logger.Errorf(format, params...)
}

// Warn logs v with log level = Warn and returns it as an error.
func Warn(v ...interface{}) error {
	if err, ok := single(v); ok {
		logger.Warn(err)
		return err
	}
	return logger.Warn(v...)
}

// Warnf formats message according to format specifier, logs it with log
// level = Warn and returns it as an error.
func Warnf(format string, params ...interface{}) error {
	return logger.Warnf(format, params...)
}

// Info logs v with log level = Info.
func Info(v ...interface{}) {
	logger.Info(v...)
}

// Infof formats message according to format specifier and logs it with log
// level = Info.
func Infof(format string, params ...interface{}) {
	logger.Infof(format, params...)
}

// Debug logs v with log level = Debug.
func Debug(v ...interface{}) {
	logger.Debug(v...)
}

// Debugf formats message according to format specifier and logs it with log
// level = Debug.
func Debugf(format string, params ...interface{}) {
	logger.Debugf(format, params...)
}

// Trace logs v with log level = Trace.
func Trace(v ...interface{}) {
	logger.Trace(v...)
}

// Tracef formats message according to format specifier and logs it with log
// level = Trace.
func Tracef(format string, params ...interface{}) {
	logger.Tracef(format, params...)
}

// UseLogger replaces the package logger.
func UseLogger(newLogger seelog.LoggerInterface) {
	logger = newLogger
}

// SetLogWriter logs everything (trace and up) to writer.
// Tests use it to capture session logs.
func SetLogWriter(writer io.Writer) error {
	if writer == nil {
		return errors.New("log: nil writer")
	}
	newLogger, err := seelog.LoggerFromWriterWithMinLevel(writer, seelog.TraceLvl)
	if err != nil {
		return err
	}
	UseLogger(newLogger)
	return nil
}

func single(v []interface{}) (error, bool) {
	if len(v) != 1 {
		return nil, false
	}
	err, ok := v[0].(error)
	return err, ok
}
