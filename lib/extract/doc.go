// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract unpacks dataset archives into a destination
// directory, overwriting existing files without prompting.
//
// [SevenZip] shells out to "7z x -y". [Native] decodes the archive in
// process and supports .zip, .tar, .tar.gz (.tgz), .tar.zst and
// .tar.lz4. Native extraction rejects entries whose names or symlink
// targets would land outside the destination.
//
// Both report failures as errors; the caller decides what a failed
// extraction means for the staging run.
package extract
