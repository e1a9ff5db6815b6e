// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the staging
// polling loops.
//
// The lock wait and the free-space wait both sleep between checks.
// Production code uses Real(); tests use Fake(), which only moves when
// Advance is called, so a test can step a wait loop one poll at a time
// without real sleeps:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	done := make(chan struct{})
//	go func() { defer close(done); stager.WaitForSpace(ctx, ...) }()
//	for fake.WaitForTimersOrDone(1, done) {
//	    fake.Advance(time.Second)
//	}
//
// WaitForTimersOrDone closes the race between the loop registering its
// next sleep and the test advancing time.
package clock
