// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for datastage packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that a test blocked on a goroutine fails instead of
// hanging. They are the only place in the test suite that uses real
// wall-clock timeouts; polling loops under test run on a fake clock.
//
// [LogBuffer] captures slog output so tests can assert on the
// diagnostics a wait loop emitted. [DiscardLogger] silences components
// whose logs are not under test.
//
// [UniqueID] generates distinct labels without consulting the clock.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
