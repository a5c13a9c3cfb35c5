// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"encoding/base64"

	"github.com/bureau-foundation/preview/lib/browser"
	"github.com/bureau-foundation/preview/lib/frame"
)

// Wire constants of the stream-frame message.
const (
	PayloadType = "screenshot_frame"
	ImageType   = "jpeg"
)

// Payload is the JSON body of one stream-frame request.
type Payload struct {
	Type        string `json:"type"`
	FrameNumber uint64 `json:"frameNumber"`
	FrameHash   string `json:"frameHash"`
	// Timestamp is the capture time in fractional Unix seconds.
	Timestamp float64 `json:"timestamp"`
	ImageData string  `json:"imageData"`
	ImageType string  `json:"imageType"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// NewPayload builds the wire message for a sequenced frame.
func NewPayload(f frame.Frame, viewport browser.Viewport) Payload {
	return Payload{
		Type:        PayloadType,
		FrameNumber: f.Sequence,
		FrameHash:   f.Fingerprint.String(),
		Timestamp:   float64(f.CapturedAt.UnixNano()) / 1e9,
		ImageData:   base64.StdEncoding.EncodeToString(f.Data),
		ImageType:   ImageType,
		Width:       viewport.Width,
		Height:      viewport.Height,
	}
}
