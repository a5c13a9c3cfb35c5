// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-preview-stream is the live preview agent that runs inside a
// sandbox next to a development server. It waits for the server to
// answer, opens the page in headless Chromium, and posts a JPEG of the
// viewport to the control plane every --interval seconds whenever the
// page has changed:
//
//	POST {control-plane-url}/sessions/{session-id}/stream-frame
//	Authorization: Bearer {auth-token}
//
// Settings come from a YAML or JSONC file (--config or
// $BUREAU_PREVIEW_CONFIG) overlaid by any flags given explicitly. The
// auth token can be read from a file with --auth-token-file to keep it
// out of the process table.
//
// SIGINT and SIGTERM stop the agent: the current wait is interrupted,
// Chromium is closed, and the process exits 0.
//
// Exit codes:
//
//	0  ran and stopped
//	1  could not start (bad flags or configuration)
//	2  the target never became available
//	3  Chromium could not be launched or the page failed to load
//
// With --status-file the agent keeps a CBOR snapshot of its phase and
// frame counters at that path; bureau-preview-status renders it.
package main
