// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mount resolves the storage device backing a filesystem path.
//
// The staging coordinator compares the [Identity] of a dataset with the
// identity of the working directory: equal identities mean the dataset
// is already on fast storage and can be used in place.
//
// Two resolvers are provided:
//
//   - [Findmnt] asks findmnt(8) for the mount containing the path and
//     uses its "source" field (for example "/dev/nvme0n1p2" or
//     "nas:/export/datasets"). This is the default.
//   - [Device] uses stat(2) and identifies the path by its device
//     number. It needs no external tool but treats bind mounts of the
//     same device as the same storage.
//
// Identities are computed on every call and never cached.
package mount
