// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !(linux || darwin)

package mount

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

var errDeviceUnsupported = fmt.Errorf("device mount resolver on %s: %w", runtime.GOOS, errors.ErrUnsupported)

// Device is unavailable on this platform. Use the findmnt resolver.
type Device struct{}

// Identity always fails with an error wrapping errors.ErrUnsupported.
func (Device) Identity(context.Context, string) (Identity, error) {
	return "", errDeviceUnsupported
}

func newDevice() (Resolver, error) {
	return nil, errDeviceUnsupported
}
