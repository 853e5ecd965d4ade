// Copyright 2026 The Crewplan Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Session records must be byte-identical when re-encoded, so encoding
// follows RFC 8949 Core Deterministic Encoding: sorted map keys,
// shortest integer forms, definite lengths throughout.
var encMode = mustEncMode()

// Decoding accepts any well-formed CBOR and skips unknown fields, so
// newer binaries read older records. Untyped targets decode maps as
// map[string]any; the library default of map[any]any cannot pass
// through encoding/json when records are dumped for diagnostics.
var decMode = mustDecMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: building CBOR encode mode: " + err.Error())
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	options := cbor.DecOptions{
		DefaultMapType: reflect.TypeFor[map[string]any](),
	}
	mode, err := options.DecMode()
	if err != nil {
		panic("codec: building CBOR decode mode: " + err.Error())
	}
	return mode
}

// Marshal renders v as deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal parses CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
