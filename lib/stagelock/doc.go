// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stagelock serializes dataset staging across processes on one
// host with a marker file.
//
// The lock is the presence of a single file. Acquire polls until the
// file can be created exclusively (O_CREATE|O_EXCL), so two processes
// that observe the file disappear at the same moment cannot both win.
// The winner writes a JSON [Record] naming itself and the archive being
// staged; waiting processes show that record in their diagnostics but
// never parse it for correctness.
//
// Release removes the file. It is idempotent and refuses to remove a
// file that no longer holds this process's record (an operator deleted
// a stale lock and another process took it over).
//
// [Lock.With] wraps a critical section so the release runs on every
// exit path, including panics. A lock left behind would block every
// future staging run on the host until someone removes it by hand.
//
// Typical usage:
//
//	lock := stagelock.New("/tmp/uncompression.lock", stagelock.Options{Logger: logger})
//	err := lock.With(ctx, archivePath, func(ctx context.Context) error {
//	    return extract(ctx)
//	})
package stagelock
