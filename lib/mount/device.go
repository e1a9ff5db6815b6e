// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin

package mount

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// Device resolves identities from the device number reported by
// stat(2), formatted as "dev:<major>:<minor>".
type Device struct{}

// Identity returns the device identity of the filesystem holding path.
func (Device) Identity(_ context.Context, path string) (Identity, error) {
	absolute, err := existingAbsolute(path)
	if err != nil {
		return "", err
	}

	var stat unix.Stat_t
	if err := unix.Stat(absolute, &stat); err != nil {
		return "", &ResolutionError{Path: absolute, Err: fmt.Errorf("stat: %w", err)}
	}
	device := uint64(stat.Dev)
	return Identity(fmt.Sprintf("dev:%d:%d", unix.Major(device), unix.Minor(device))), nil
}

func newDevice() (Resolver, error) {
	return Device{}, nil
}
