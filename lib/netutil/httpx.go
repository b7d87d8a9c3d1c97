// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds and decodes HTTP response bodies for the task
// gateway.
//
// Every body read is capped at MaxResponseSize so a misbehaving server
// cannot exhaust memory. The gateway sets its own Accept-Encoding
// header, which turns off net/http's transparent gzip handling, so
// [ReadResponse] undoes the Content-Encoding itself (zstd and gzip,
// via github.com/klauspost/compress).
package netutil

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// MaxResponseSize caps decoded JSON API response bodies at 32 MB. A
// task list response is orders of magnitude smaller.
const MaxResponseSize int64 = 32 << 20

// AcceptEncoding is the value the gateway sends in Accept-Encoding.
const AcceptEncoding = "zstd, gzip"

// ReadResponse reads and decodes response.Body according to its
// Content-Encoding header. The caller still closes response.Body.
func ReadResponse(response *http.Response) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(response.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return readLimited(response.Body)
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip body: %w", err)
		}
		defer reader.Close()
		return readLimited(reader)
	case "zstd":
		decoder, err := zstd.NewReader(response.Body, zstd.WithDecoderMaxMemory(uint64(MaxResponseSize)))
		if err != nil {
			return nil, fmt.Errorf("opening zstd body: %w", err)
		}
		defer decoder.Close()
		return readLimited(decoder)
	default:
		return nil, fmt.Errorf("unsupported Content-Encoding %q", encoding)
	}
}

func readLimited(reader io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxResponseSize)
	}
	return data, nil
}
