// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config defines the parameters of one preview streaming run
// and loads them.
//
// A run is configured from three layers, later layers winning:
//
//  1. Default(): the documented defaults (2s interval, 1280×720,
//     JPEG quality 80, 3 retries 1s apart, 60s probe budget).
//  2. An optional config file named by --config or the
//     BUREAU_PREVIEW_CONFIG environment variable. Files ending in
//     .yaml or .yml are YAML; .json and .jsonc are JSON with comments
//     and trailing commas. String values may reference environment
//     variables as ${NAME} or ${NAME:-default}, so a sandbox image can
//     ship a static file and inject the session token at start.
//  3. Command-line flags that were explicitly set.
//
// The merged Stream is validated once and then treated as immutable.
package config
