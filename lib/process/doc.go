// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process maps the error returned by a binary's run function
// to a report on stderr and a process exit code.
//
// Binaries follow the same shape:
//
//	func main() {
//	    process.Exit(run())
//	}
//
// run returns an error carrying an ExitCode method (ExitError) when a
// specific non-zero code is part of the binary's contract, and a plain
// error for everything that simply could not start.
package process
