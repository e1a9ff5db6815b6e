// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin

package diskspace

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// Statfs measures available space with statfs(2).
type Statfs struct{}

// AvailableKB returns f_bavail * f_bsize in kilobytes, rounded down.
func (Statfs) AvailableKB(_ context.Context, path string) (uint64, error) {
	target, err := ExistingAncestor(path)
	if err != nil {
		return 0, fmt.Errorf("locating filesystem for %s: %w", path, err)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(target, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", target, err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize) / 1024, nil
}

func newStatfs() (Probe, error) {
	return Statfs{}, nil
}
