// Package identity derives content-addressed identifiers for permissions.
//
// A provider and the kernel compute the same id for the same permission
// without a round trip: the value is normalised to its JSON data model,
// encoded canonically and hashed with SHA-256.
package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/reglet-dev/reglet-broker/internal/codec"
)

// DeriveID returns the lowercase hex SHA-256 of the canonical encoding of v.
// Typed structs and the equivalent map[string]any produce the same id.
func DeriveID(v any) (string, error) {
	normalized, err := normalize(v)
	if err != nil {
		return "", err
	}
	data, err := codec.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to encode value: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MustDeriveID is DeriveID for values known to be serialisable.
// It panics otherwise, since that is a programming error.
func MustDeriveID(v any) string {
	id, err := DeriveID(v)
	if err != nil {
		panic("identity: " + err.Error())
	}
	return id
}

// normalize maps v onto the JSON data model with integral numbers as int64,
// so 240, 240.0 and int(240) all encode alike.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return numbers(generic)
}

// numbers rewrites json.Number leaves. Integers beyond int64 stay exact as
// CBOR bignums; numbers outside the float64 range are rejected.
func numbers(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			n, err := numbers(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			t[k] = n
		}
		return t, nil
	case []any:
		for i, val := range t {
			n, err := numbers(val)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			t[i] = n
		}
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		if bi, ok := new(big.Int).SetString(t.String(), 10); ok {
			return bignum(bi), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s is out of range", t)
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return int64(f), nil
		}
		return f, nil
	default:
		return v, nil
	}
}

// bignum tags an integer per RFC 8949 section 3.4.3.
func bignum(n *big.Int) cbor.Tag {
	if n.Sign() < 0 {
		m := new(big.Int).Neg(n)
		return cbor.Tag{Number: 3, Content: m.Sub(m, big.NewInt(1)).Bytes()}
	}
	return cbor.Tag{Number: 2, Content: n.Bytes()}
}
