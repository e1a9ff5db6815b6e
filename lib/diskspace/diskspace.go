// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package diskspace reports free space, in kilobytes, on the filesystem
// holding a path.
//
// [Statfs] queries the kernel directly. [Df] runs "df -P -k" and reads
// the fourth field of the second line, which is the contract the
// original CI scripts relied on. Both accept a path that does not exist
// yet (a working directory the extractor will create) and measure the
// nearest existing ancestor instead.
package diskspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Probe reports the space available to unprivileged users on the
// filesystem containing path, in 1024-byte units.
type Probe interface {
	AvailableKB(ctx context.Context, path string) (uint64, error)
}

// New returns the probe registered under name ("statfs" or "df").
func New(name string) (Probe, error) {
	switch name {
	case "statfs":
		return newStatfs()
	case "df":
		return NewDf(), nil
	default:
		return nil, fmt.Errorf("unknown space probe %q (expected statfs or df)", name)
	}
}

// ExistingAncestor returns path if it exists, otherwise its closest
// existing parent directory. The result is absolute.
func ExistingAncestor(path string) (string, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(current)
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		current = parent
	}
}
