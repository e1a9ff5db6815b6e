// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/datastage/cmd/datastage/commands"
	"github.com/bureau-foundation/datastage/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// run cancels the command on SIGINT or SIGTERM so a staging run can
// release its lock before exiting.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := commands.Root(commands.Streams{Stdout: os.Stdout, Stderr: os.Stderr})
	return root.Execute(ctx, os.Args[1:])
}
