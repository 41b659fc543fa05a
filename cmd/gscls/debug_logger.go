// Copyright (C) 2024 The gscls Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gscode/gscls/core/log"
)

const maxLogHistory = 5

// debugLogger will write all stdin, stdout and log messages to log files
// next to the executable when enabled.
type debugLogger struct {
	enabled   bool
	stdin     io.Reader // The real stdin.
	stdout    io.Writer // The real stdout.
	stdinLog  io.WriteCloser
	stdoutLog io.WriteCloser
	msgLog    io.WriteCloser
	stop      func()
}

func (d *debugLogger) Read(p []byte) (n int, err error) {
	n, err = d.stdin.Read(p)
	if d.stdinLog != nil {
		d.stdinLog.Write(p[:n])
	}
	return
}

func (d *debugLogger) Write(p []byte) (n int, err error) {
	if d.stdoutLog != nil {
		d.stdoutLog.Write(p)
	}
	return d.stdout.Write(p)
}

func (d *debugLogger) bind(ctx context.Context) context.Context {
	return log.PutHandler(ctx, log.HandlerFunc(func(m log.Message) {
		if d.msgLog != nil {
			fmt.Fprintf(d.msgLog, "%s %s %s\n", m.Time.Format("15:04:05.000"), m.Severity.Short(), m.Text)
		}
	}))
}

func (d *debugLogger) setEnabled(enabled bool) error {
	if enabled == d.enabled {
		return nil
	}
	d.enabled = enabled
	if !enabled {
		d.stop()
		return nil
	}

	d.stop()
	dir := executableDir()
	for name, w := range map[string]*io.WriteCloser{
		"stdin.log":   &d.stdinLog,
		"stdout.log":  &d.stdoutLog,
		"message.log": &d.msgLog,
	} {
		path := filepath.Join(dir, name)
		rotateLogs(path)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		*w = f
	}
	d.stop = func() {
		for _, w := range []io.WriteCloser{d.stdinLog, d.stdoutLog, d.msgLog} {
			if w != nil {
				w.Close()
			}
		}
		d.stdinLog, d.stdoutLog, d.msgLog = nil, nil, nil
		d.stop = func() {}
	}
	return nil
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// rotateLogs renames the log file at path by inserting '-1' between the
// file name and extension. If a file already exists with the new path,
// then that file is also renamed with the numeric part incremented. This
// renaming continues for maxLogHistory number of files; beyond that the
// oldest file is deleted.
func rotateLogs(path string) error {
	ext := filepath.Ext(path)
	noExt := path[:len(path)-len(ext)]

	ithPath := func(i int) string {
		if i > 0 {
			return fmt.Sprintf("%s-%d%s", noExt, i, ext)
		}
		return path
	}

	for i := maxLogHistory - 1; i >= 0; i-- {
		src := ithPath(i)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if i < maxLogHistory-1 {
			if err := os.Rename(src, ithPath(i+1)); err != nil {
				return err
			}
		} else {
			if err := os.Remove(src); err != nil {
				return err
			}
		}
	}
	return nil
}
