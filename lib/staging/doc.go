// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package staging coordinates moving a dataset onto fast storage before
// a CI job consumes it.
//
// A dataset is named by its stem: a path without archive extension.
// [Coordinator.Run] executes three phases in order:
//
//  1. Resolve. If no archive exists next to the stem, the uncompressed
//     directory is usable in place when it lives on the same storage as
//     the working directory; otherwise the run fails with
//     [ErrUnresolvableLocation]. If an archive exists it is always
//     staged, even when an uncompressed copy is also present.
//  2. Lock. Staging runs under a host-wide [stagelock.Lock] so that only
//     one extraction saturates the disks at a time.
//  3. Wait and extract. Under the lock, [Coordinator.WaitForSpace] polls
//     until the working directory's filesystem has room for the archive
//     plus a safety padding, then the extractor unpacks the archive into
//     the working directory.
//
// The lock is released however phase 3 ends. An extraction failure is
// returned as an [*ExtractionError] after the release.
//
// Free space is observed, never reserved: another process can consume
// space between the check and the extraction.
package staging
