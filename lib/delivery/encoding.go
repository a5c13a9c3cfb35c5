// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Encoding is an HTTP Content-Encoding applied to request bodies.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingGzip     Encoding = "gzip"
	EncodingZstd     Encoding = "zstd"
)

// ParseEncoding accepts the names above. The empty string means
// identity.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingIdentity:
		return EncodingIdentity, nil
	case EncodingGzip:
		return EncodingGzip, nil
	case EncodingZstd:
		return EncodingZstd, nil
	default:
		return "", fmt.Errorf("unknown content encoding %q", name)
	}
}

// zstd.Encoder is safe for concurrent EncodeAll calls.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("delivery: zstd encoder initialization failed: " + err.Error())
	}
}

func (e Encoding) encode(body []byte) ([]byte, error) {
	switch e {
	case "", EncodingIdentity:
		return body, nil
	case EncodingGzip:
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(body); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return buffer.Bytes(), nil
	case EncodingZstd:
		return zstdEncoder.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", e)
	}
}

// header returns the Content-Encoding header value, or "" for
// identity.
func (e Encoding) header() string {
	if e == "" || e == EncodingIdentity {
		return ""
	}
	return string(e)
}
