// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/datastage/lib/mount"
)

const gibKB uint64 = 1 << 20

// fakeMounts maps path prefixes to identities, longest prefix first.
type fakeMounts map[string]mount.Identity

func (f fakeMounts) Identity(_ context.Context, path string) (mount.Identity, error) {
	clean := filepath.Clean(path)
	best := ""
	for prefix := range f {
		if (clean == prefix || strings.HasPrefix(clean, prefix+"/")) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", &mount.ResolutionError{Path: path, Err: fs.ErrNotExist}
	}
	return f[best], nil
}

// fakeSpace returns successive values from readings; the last value
// repeats once the list is exhausted.
type fakeSpace struct {
	mu       sync.Mutex
	readings []uint64
	calls    int
	last     uint64
}

func (f *fakeSpace) AvailableKB(context.Context, string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index := min(f.calls, len(f.readings)-1)
	f.calls++
	f.last = f.readings[index]
	return f.last, nil
}

func (f *fakeSpace) lastReading() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// growingSpace returns startKB and grows by stepKB on every call.
func growingSpace(startKB, stepKB uint64, polls int) *fakeSpace {
	readings := make([]uint64, polls)
	for i := range readings {
		readings[i] = startKB + uint64(i)*stepKB
	}
	return &fakeSpace{readings: readings}
}

type extractCall struct {
	archive     string
	destination string
	availableKB uint64
	lockHeld    bool
}

type fakeExtractor struct {
	space    *fakeSpace
	lockPath string
	err      error
	calls    []extractCall

	// during runs while the lock is held, before err is returned.
	during func()
}

func (f *fakeExtractor) Extract(_ context.Context, archive, destination string) error {
	call := extractCall{archive: archive, destination: destination, lockHeld: fileExists(f.lockPath)}
	if f.space != nil {
		call.availableKB = f.space.lastReading()
	}
	f.calls = append(f.calls, call)
	if f.during != nil {
		f.during()
	}
	return f.err
}

// fakeFiles stands in for os.Stat so tests can present archives of any
// size. Entries with size -1 are directories.
type fakeFiles map[string]int64

func (f fakeFiles) stat(path string) (fs.FileInfo, error) {
	size, ok := f[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return fakeInfo{name: filepath.Base(path), size: size}, nil
}

type fakeInfo struct {
	name string
	size int64
}

func (i fakeInfo) Name() string { return i.name }
func (i fakeInfo) Size() int64  { return max(i.size, 0) }
func (i fakeInfo) Mode() fs.FileMode {
	if i.size < 0 {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.size < 0 }
func (i fakeInfo) Sys() any           { return nil }

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
