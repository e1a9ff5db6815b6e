// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is an opaque identifier for the storage backing a path. Two
// paths are on the same storage iff their identities are equal.
type Identity string

// Resolver maps a filesystem path to the identity of its backing
// storage.
type Resolver interface {
	Identity(ctx context.Context, path string) (Identity, error)
}

// ResolutionError reports that the mount backing Path could not be
// determined. Err is the underlying cause.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving mount for %s: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// New returns the resolver registered under name ("findmnt" or
// "device").
func New(name string) (Resolver, error) {
	switch name {
	case "findmnt":
		return NewFindmnt(), nil
	case "device":
		return newDevice()
	default:
		return nil, fmt.Errorf("unknown mount resolver %q (expected findmnt or device)", name)
	}
}

// existingAbsolute makes path absolute and verifies it exists. Both
// resolvers require an existing path: a dataset whose location cannot
// be characterized cannot be staged correctly.
func existingAbsolute(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", &ResolutionError{Path: path, Err: err}
	}
	if _, err := os.Stat(absolute); err != nil {
		return "", &ResolutionError{Path: absolute, Err: err}
	}
	return absolute, nil
}
