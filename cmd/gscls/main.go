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

// The gscls command implements a language server for the GSC and CSC
// game scripting dialects.
//
// See https://microsoft.github.io/language-server-protocol for the wire
// protocol the server speaks.
package main

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gscode/gscls/core/event/task"
	ls "github.com/gscode/gscls/core/langsvr"
	"github.com/gscode/gscls/core/log"
	"github.com/gscode/gscls/gsc/api"
)

const apiFeedBase = "https://gscode.net/api/libraries/"

var (
	flagPipe  string
	flagDebug bool
)

func main() {
	root := &cobra.Command{
		Use:   "gscls",
		Short: "Language server for the GSC and CSC scripting dialects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.Flags().StringVar(&flagPipe, "pipe", "", "connect over the named pipe instead of stdio")
	root.Flags().BoolVar(&flagDebug, "debug", false, "log protocol traffic to files next to the executable")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve() error {
	dl := &debugLogger{stdin: os.Stdin, stdout: os.Stdout, stop: func() {}}
	defer dl.stop()
	if flagDebug {
		if err := dl.setEnabled(true); err != nil {
			return err
		}
	}

	ctx := dl.bind(context.Background())
	if flagDebug {
		ctx = log.PutFilter(ctx, log.Debug)
	}
	defer handlePanic(ctx)

	stream, err := openStream(dl)
	if err != nil {
		log.E(ctx, "transport failed: %v", err)
		return err
	}

	srv := &server{
		registry:    &api.Registry{},
		debugLogger: dl,
		debug:       flagDebug,
		indexDone:   task.FiredSignal,
	}
	if err := ls.Connect(ctx, stream, srv); err != nil {
		log.E(ctx, "%v", err)
		return err
	}
	return nil
}

// openStream returns the client byte stream: the wrapped stdio pair by
// default, or a named pipe connection when --pipe is given.
func openStream(dl *debugLogger) (io.ReadWriter, error) {
	if flagPipe == "" {
		return dl, nil
	}
	return net.Dial(pipeNetwork(), flagPipe)
}

func pipeNetwork() string {
	if runtime.GOOS == "windows" {
		return "tcp"
	}
	return "unix"
}

// defaultAPISources lists where each language's builtin API feed is looked
// for: the hosted feed first, then a JSON file shipped next to the
// executable.
func defaultAPISources() []api.Source {
	dir := executableDir()
	return []api.Source{
		{URL: apiFeedBase + "t7/gsc.json", File: filepath.Join(dir, "api", "gsc.json")},
		{URL: apiFeedBase + "t7/csc.json", File: filepath.Join(dir, "api", "csc.json")},
	}
}

func handlePanic(ctx context.Context) {
	if r := recover(); r != nil {
		buf := make([]byte, 64<<10)
		buf = buf[:runtime.Stack(buf, true)]
		log.E(ctx, "panic: %v\n%s", r, string(buf))
	}
}
