// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package diskspace

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/datastage/lib/toolexec"
)

// Df measures available space by running "df -P -k <path>". -P forces
// one line per filesystem even for long device names, and -k pins the
// unit to kilobytes regardless of BLOCKSIZE in the environment.
type Df struct {
	runner toolexec.Runner
}

// NewDf returns a Df probe that executes the real tool.
func NewDf() *Df {
	return &Df{runner: toolexec.Exec{}}
}

// NewDfWithRunner returns a Df probe that executes through runner.
func NewDfWithRunner(runner toolexec.Runner) *Df {
	return &Df{runner: runner}
}

// AvailableKB returns the "Available" column for the filesystem holding
// path.
func (d *Df) AvailableKB(ctx context.Context, path string) (uint64, error) {
	target, err := ExistingAncestor(path)
	if err != nil {
		return 0, fmt.Errorf("locating filesystem for %s: %w", path, err)
	}

	output, err := d.runner.Run(ctx, "df", "-P", "-k", target)
	if err != nil {
		return 0, err
	}
	return parseDf(output)
}

// parseDf extracts the fourth whitespace-separated field of the second
// line of df output.
func parseDf(output string) (uint64, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("df output has %d line(s), want at least 2", len(lines))
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 4 {
		return 0, fmt.Errorf("df output line %q has %d field(s), want at least 4", lines[1], len(fields))
	}
	available, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing df available field %q: %w", fields[3], err)
	}
	return available, nil
}
