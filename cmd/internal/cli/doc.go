// Copyright 2026 The Kosha Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the shared command-tree framework for the kosha
// binaries: nested subcommand dispatch over pflag, structured help
// output, typo suggestions, and the common logger and output helpers.
package cli
