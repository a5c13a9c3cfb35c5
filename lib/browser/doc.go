// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package browser abstracts the headless rendering engine the preview
// tools drive.
//
// [Capability] is the four-operation contract the streaming agent
// depends on: launch an engine at a viewport, navigate once, capture
// the visible viewport, close. [Rod] implements it over go-rod and a
// headless Chromium. Tests substitute browsertest.Fake, which returns
// scripted image bytes and errors.
//
// The one-shot tools need two more operations, expressed as separate
// optional interfaces so the streaming path does not depend on them:
// [Evaluator] runs a JavaScript function in the page, and
// [PageCapturer] captures the full scrollable page. [InspectPoint] and
// [Screenshot] build the one-shot flows on top.
package browser
