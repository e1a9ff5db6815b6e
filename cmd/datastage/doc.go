// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Datastage stages CI datasets onto fast local storage. Its stage
// subcommand prints the directory a job should read a dataset from,
// extracting the dataset's archive first when needed; manifest
// generates the evaluation jobs that call it.
package main
