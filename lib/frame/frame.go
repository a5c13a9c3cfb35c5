// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// FingerprintSize is the length of a Fingerprint in bytes.
const FingerprintSize = 8

// Fingerprint identifies a frame's content.
type Fingerprint [FingerprintSize]byte

// String returns the lowercase hex form used on the wire.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint parses the 16-character hex form.
func ParseFingerprint(value string) (Fingerprint, error) {
	var fingerprint Fingerprint
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return fingerprint, fmt.Errorf("parsing frame fingerprint: %w", err)
	}
	if len(decoded) != FingerprintSize {
		return fingerprint, fmt.Errorf("frame fingerprint is %d bytes, want %d", len(decoded), FingerprintSize)
	}
	copy(fingerprint[:], decoded)
	return fingerprint, nil
}

// domainKey keys the hash so frame fingerprints never coincide with
// BLAKE3 digests computed elsewhere over the same bytes.
var domainKey = [32]byte{
	'b', 'u', 'r', 'e', 'a', 'u', '.', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '.',
	'f', 'r', 'a', 'm', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Compute returns the fingerprint of data.
func Compute(data []byte) Fingerprint {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes.
		panic("frame: " + err.Error())
	}
	hasher.Write(data)

	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}

// Detect reports whether data differs from the frame whose fingerprint
// is previous (nil when nothing has been captured yet), and returns
// data's fingerprint either way. It holds no state: the caller keeps
// the previous fingerprint.
func Detect(data []byte, previous *Fingerprint) (bool, Fingerprint) {
	fingerprint := Compute(data)
	if previous != nil && *previous == fingerprint {
		return false, fingerprint
	}
	return true, fingerprint
}

// Frame is one captured image. Sequence is zero until the frame has
// been judged new and assigned a number.
type Frame struct {
	Data        []byte
	Fingerprint Fingerprint
	Sequence    uint64
	CapturedAt  time.Time
}
