// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stagelock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bureau-foundation/datastage/lib/clock"
)

// DefaultPollInterval is how often Acquire checks a held lock.
const DefaultPollInterval = time.Second

// ErrLockTimeout is returned by Acquire when Options.Deadline elapses
// before the lock becomes free.
var ErrLockTimeout = errors.New("timed out waiting for staging lock")

// DefaultPath is the lock file shared by all staging runs on a host
// unless configured otherwise.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "uncompression.lock")
}

// Options configures a Lock. Zero values select the defaults.
type Options struct {
	// PollInterval is the delay between checks while the lock is held
	// elsewhere. Default DefaultPollInterval.
	PollInterval time.Duration

	// Deadline bounds the total wait. Zero waits forever.
	Deadline time.Duration

	// Clock drives the polling loop. Default clock.Real().
	Clock clock.Clock

	// Logger receives wait diagnostics. Default slog.Default().
	Logger *slog.Logger
}

// Lock is a file-based mutual exclusion primitive scoped to one path.
type Lock struct {
	path         string
	pollInterval time.Duration
	deadline     time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// New returns a Lock on path.
func New(path string, options Options) *Lock {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Lock{
		path:         path,
		pollInterval: options.PollInterval,
		deadline:     options.Deadline,
		clock:        options.Clock,
		logger:       options.Logger,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Held is an acquired lock. Call Release exactly once when the
// critical section ends; further calls are no-ops.
type Held struct {
	lock     *Lock
	contents []byte
	released bool
}

// Acquire blocks until the lock file can be created, then writes a
// Record carrying label. While waiting it logs the holder each time the
// lock file's contents change, so a long wait behind one holder
// produces one line rather than one per poll.
func (l *Lock) Acquire(ctx context.Context, label string) (*Held, error) {
	start := l.clock.Now()
	observed := false
	var lastContents string

	for {
		held, err := l.tryCreate(label)
		if err == nil {
			l.logger.Info("acquired staging lock", "lock_file", l.path, "label", label)
			return held, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}

		contents, err := os.ReadFile(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			// Released between our create attempt and the read.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading lock file %s: %w", l.path, err)
		}

		current := strings.TrimSpace(string(contents))
		if !observed || current != lastContents {
			l.logger.Info("waiting for staging lock to be released",
				"lock_file", l.path,
				"holder", describe([]byte(current)),
			)
			observed = true
			lastContents = current
		}

		if l.deadline > 0 && l.clock.Now().Sub(start) >= l.deadline {
			return nil, fmt.Errorf("%w after %s (%s held by %s)",
				ErrLockTimeout, l.deadline, l.path, describe([]byte(current)))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.clock.After(l.pollInterval):
		}
	}
}

// tryCreate makes one exclusive-create attempt. An error wrapping
// fs.ErrExist means the lock is held.
func (l *Lock) tryCreate(label string) (*Held, error) {
	contents, err := newRecord(label, l.clock.Now()).encode()
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, fmt.Errorf("creating lock file %s: %w", l.path, err)
	}

	// Write and close. On failure remove the file we just created so a
	// half-written lock does not block every later run.
	if _, err := file.Write(contents); err != nil {
		file.Close()
		os.Remove(l.path)
		return nil, fmt.Errorf("writing lock file %s: %w", l.path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(l.path)
		return nil, fmt.Errorf("closing lock file %s: %w", l.path, err)
	}

	return &Held{lock: l, contents: contents}, nil
}

// Release removes the lock file. A missing file is not an error. A file
// whose contents differ from what this holder wrote belongs to someone
// else: it is left in place with a warning, and Release succeeds.
func (h *Held) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	path := h.lock.path

	current, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		h.lock.logger.Warn("staging lock already removed", "lock_file", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading lock file %s before release: %w", path, err)
	}
	if !bytes.Equal(current, h.contents) {
		h.lock.logger.Warn("staging lock was replaced by another holder",
			"lock_file", path,
			"holder", describe(bytes.TrimSpace(current)),
		)
		return nil
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing lock file %s: %w", path, err)
	}
	h.lock.logger.Info("released staging lock", "lock_file", path)
	return nil
}

// With acquires the lock, runs fn, and releases the lock however fn
// exits. If both fn and the release fail, the returned error joins
// them; the section's error is never replaced.
func (l *Lock) With(ctx context.Context, label string, fn func(context.Context) error) (err error) {
	held, err := l.Acquire(ctx, label)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := held.Release(); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()
	return fn(ctx)
}
