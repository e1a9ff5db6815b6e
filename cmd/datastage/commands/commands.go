// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the datastage command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/datastage/cmd/datastage/cli"
	"github.com/bureau-foundation/datastage/lib/version"
)

// Streams are where commands write results and diagnostics.
type Streams struct {
	// Stdout receives command results only: a path, JSON, or the
	// version string.
	Stdout io.Writer

	// Stderr receives logs and help.
	Stderr io.Writer
}

// Root builds the complete command tree.
func Root(streams Streams) *cli.Command {
	return &cli.Command{
		Name: "datastage",
		Description: `datastage: dataset staging for CI evaluation jobs.

Stages compressed datasets from shared storage onto a job's fast local
disk, one extraction at a time per host, waiting for free space first.`,
		HelpOutput: streams.Stderr,
		Subcommands: []*cli.Command{
			stageCommand(streams),
			manifestCommand(streams),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string) error {
					_, err := fmt.Fprintf(streams.Stdout, "datastage %s\n", version.Full())
					return err
				},
			},
		},
	}
}

func newLogger(streams Streams, command string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return cli.NewCommandLogger(streams.Stderr, level).With("command", command)
}
