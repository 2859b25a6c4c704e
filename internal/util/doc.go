// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small string and file helpers shared by the server,
// the CLI and the terminal client.
//
//   - TruncateRunes, TruncateWidth: UTF-8 and display-width safe truncation
//   - Wrap: width-aware word wrapping for terminal output
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
