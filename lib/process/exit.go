// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own exit code,
// such as cli.ExitError.
type exitCoder interface {
	ExitCode() int
}

// Fatal reports err to stderr and exits. See [Report].
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes "error: err" to w and returns 1. Errors carrying their
// own exit code are handled non-zero exits: the command has already
// written its output, so Report writes nothing and returns the code.
func Report(w io.Writer, err error) int {
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
