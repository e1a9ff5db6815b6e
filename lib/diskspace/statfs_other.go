// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !(linux || darwin)

package diskspace

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

var errStatfsUnsupported = fmt.Errorf("statfs space probe on %s: %w", runtime.GOOS, errors.ErrUnsupported)

// Statfs is unavailable on this platform. Use the df probe.
type Statfs struct{}

// AvailableKB always fails with an error wrapping errors.ErrUnsupported.
func (Statfs) AvailableKB(context.Context, string) (uint64, error) {
	return 0, errStatfsUnsupported
}

func newStatfs() (Probe, error) {
	return nil, errStatfsUnsupported
}
