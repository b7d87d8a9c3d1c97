// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the CBOR configuration for files the client writes
// to disk, currently the persisted credential record.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// record always produces the same bytes. time.Time values encode as
// RFC 3339 text so records stay readable with any CBOR diagnostic tool.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Records are versioned; an unknown field means a newer writer,
		// which the reader must not silently misinterpret.
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v, rejecting fields v does not declare.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
