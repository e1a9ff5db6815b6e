// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/datastage/lib/toolexec"
)

// Findmnt resolves identities through "findmnt -T <path> --json".
type Findmnt struct {
	runner toolexec.Runner
}

// NewFindmnt returns a Findmnt resolver that executes the real tool.
func NewFindmnt() *Findmnt {
	return &Findmnt{runner: toolexec.Exec{}}
}

// NewFindmntWithRunner returns a Findmnt resolver that executes through
// runner. Tests use it to feed canned findmnt output.
func NewFindmntWithRunner(runner toolexec.Runner) *Findmnt {
	return &Findmnt{runner: runner}
}

// findmntOutput is the subset of findmnt's JSON output we consume.
type findmntOutput struct {
	Filesystems []struct {
		Target string `json:"target"`
		Source string `json:"source"`
	} `json:"filesystems"`
}

// Identity returns the source of the filesystem containing path.
func (f *Findmnt) Identity(ctx context.Context, path string) (Identity, error) {
	absolute, err := existingAbsolute(path)
	if err != nil {
		return "", err
	}

	output, err := f.runner.Run(ctx, "findmnt", "-T", absolute, "--json")
	if err != nil {
		return "", &ResolutionError{Path: absolute, Err: err}
	}

	source, err := parseFindmnt([]byte(output))
	if err != nil {
		return "", &ResolutionError{Path: absolute, Err: err}
	}
	return Identity(source), nil
}

func parseFindmnt(data []byte) (string, error) {
	var parsed findmntOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parsing findmnt output: %w", err)
	}
	if len(parsed.Filesystems) == 0 {
		return "", errors.New("findmnt reported no filesystems")
	}
	source := parsed.Filesystems[0].Source
	if source == "" {
		return "", errors.New("findmnt reported an empty source")
	}
	return source, nil
}
