// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for datastage.
//
// Configuration comes from at most one file, named by the
// DATASTAGE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file discovery: absent both,
// [Default] is used as is. File values overlay the defaults field by
// field, and command-line flags overlay the result.
//
// Durations are Go duration strings ("1s", "90m"). Sizes are
// human-readable strings ("50GiB", "512m") parsed with
// github.com/docker/go-units; all size units are binary.
//
// The lock path supports ${VAR} and ${VAR:-default} expansion after
// loading, so a shared config can say "${TMPDIR:-/tmp}/ci.lock".
//
// This package depends on no other datastage packages.
package config
