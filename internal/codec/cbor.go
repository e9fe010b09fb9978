// Package codec holds the broker's canonical binary encoding.
//
// Encoding uses CBOR Core Deterministic Encoding (RFC 8949 §4.2): map keys
// sorted, integers in their shortest form, no indefinite-length items. The
// same logical value always produces identical bytes, which is what content
// derived identifiers rely on.
package codec

import "github.com/fxamacker/cbor/v2"

var encMode cbor.EncMode

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	var err error
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
// Struct fields without a cbor tag fall back to their json tag name.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}
