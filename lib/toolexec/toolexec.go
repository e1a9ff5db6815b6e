// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package toolexec runs the external system tools that datastage
// delegates to (findmnt, df, 7z). It centralizes binary resolution and
// gives every invocation the same error format: the command line
// followed by the tool's stderr, or the exec error when stderr is
// empty.
package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external tool and returns its stdout. The
// indirection lets tests substitute canned output for findmnt and df
// without those tools installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Exec is the production Runner. It resolves name on PATH for every
// call, so a tool installed after startup is picked up.
type Exec struct{}

// Run resolves name on PATH, executes it with args, and returns stdout.
// Stderr is captured separately and folded into the error on failure.
func (Exec) Run(ctx context.Context, name string, args ...string) (string, error) {
	binaryPath, err := FindBinary(name)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binaryPath, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", formatError(name, args, &stderr, err)
	}
	return stdout.String(), nil
}

// FindBinary resolves a tool by name on PATH. Absolute and relative
// paths containing a separator are checked directly by exec.LookPath.
func FindBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return path, nil
}

// formatError prefers the tool's own stderr (which carries the actual
// diagnosis) over the generic exec error.
func formatError(name string, args []string, stderr *bytes.Buffer, err error) error {
	commandString := name + " " + strings.Join(args, " ")
	stderrText := strings.TrimSpace(stderr.String())
	if stderrText != "" {
		return &Error{Command: commandString, Stderr: stderrText, Err: err}
	}
	return &Error{Command: commandString, Err: err}
}

// Error reports a failed tool invocation. Err is the underlying exec
// error (usually *exec.ExitError) and is reachable through errors.As.
type Error struct {
	Command string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
