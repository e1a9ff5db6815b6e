// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler used before the
// structured logger exists. Raw writes to stderr are confined to this
// package and the CLI layer's result output.
package process
