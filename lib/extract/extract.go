// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/bureau-foundation/datastage/lib/toolexec"
)

// Extractor unpacks archive into destination. destination is created
// if it does not exist.
type Extractor interface {
	Extract(ctx context.Context, archive, destination string) error
}

// New returns the extractor registered under tool ("7z" or "native").
// binary names the 7z executable and is ignored for native extraction.
func New(tool, binary string) (Extractor, error) {
	switch tool {
	case "7z":
		if binary == "" {
			binary = "7z"
		}
		return &SevenZip{Binary: binary, runner: toolexec.Exec{}}, nil
	case "native":
		return Native{}, nil
	default:
		return nil, fmt.Errorf("unknown extraction tool %q (expected 7z or native)", tool)
	}
}

// SevenZip extracts with the 7-Zip command line tool.
type SevenZip struct {
	// Binary is the executable name or path, usually "7z" or "7za".
	Binary string

	runner toolexec.Runner
}

// NewSevenZipWithRunner returns a SevenZip extractor that executes
// through runner.
func NewSevenZipWithRunner(binary string, runner toolexec.Runner) *SevenZip {
	return &SevenZip{Binary: binary, runner: runner}
}

// Extract runs "7z x -y <archive> -o<destination>". The tool's exit
// status is checked: a non-zero exit is an error carrying 7z's stderr.
func (s *SevenZip) Extract(ctx context.Context, archive, destination string) error {
	if err := os.MkdirAll(destination, 0o755); err != nil {
		return fmt.Errorf("creating destination %s: %w", destination, err)
	}
	if _, err := s.runner.Run(ctx, s.Binary, "x", "-y", archive, "-o"+destination); err != nil {
		return fmt.Errorf("extracting %s: %w", archive, err)
	}
	return nil
}
