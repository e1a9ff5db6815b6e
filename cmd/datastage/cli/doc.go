// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for datastage.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory and a Run
// function. [Command.Execute] routes subcommands, parses flags and
// prints help with examples. Unknown subcommands and flags get a
// Levenshtein suggestion (distance <= 3).
//
// Flags are usually declared as tagged struct fields and bound with
// [FlagsFromParams]. Underscores in flag names typed by the user are
// normalized to dashes, so --lock_file and --lock-file are the same
// flag.
//
// A command that has already reported a failure returns [ExitError]
// to set the exit code without a second "error:" line.
package cli
