package rpc

import (
	"context"
	"encoding/json"
)

// Method is a typed method implementation.
// It accepts a context and a decoded request and returns a typed response.
type Method[Req any, Resp any] func(context.Context, Req) (Resp, error)

// ByteHandler accepts raw JSON params and returns raw JSON results.
// This is the common shape every registered method is reduced to.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// Decoder turns raw params into a request value. It is the hook for
// schema validation ahead of struct decoding.
type Decoder func(raw []byte, out any) error

type handlerConfig struct {
	decode Decoder
}

// HandlerOption configures NewJSONHandler.
type HandlerOption func(*handlerConfig)

// WithDecoder replaces plain json.Unmarshal for request decoding.
// Errors returned by the decoder are reported as validation failures.
func WithDecoder(d Decoder) HandlerOption {
	return func(c *handlerConfig) {
		c.decode = d
	}
}

// NewJSONHandler wraps a typed Method into a ByteHandler.
// It handles decoding of the request and encoding of the response. A
// response implementing json.Marshaler is emitted exactly as it marshals
// itself.
//
// Usage:
//
//	offer := rpc.NewJSONHandler(func(ctx context.Context, o entities.PermissionOffer) (bool, error) {
//	    return k.Offer(ctx, o)
//	})
func NewJSONHandler[Req any, Resp any](fn Method[Req, Resp], opts ...HandlerOption) ByteHandler {
	cfg := handlerConfig{
		decode: func(raw []byte, out any) error { return json.Unmarshal(raw, out) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if err := cfg.decode(payload, &req); err != nil {
			return nil, NewValidationError("failed to decode params", err)
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}

		if m, ok := any(resp).(json.Marshaler); ok {
			out, err := m.MarshalJSON()
			if err != nil {
				return nil, NewInternalError("failed to encode result: " + err.Error())
			}
			return out, nil
		}

		out, err := json.Marshal(resp)
		if err != nil {
			return nil, NewInternalError("failed to encode result: " + err.Error())
		}
		return out, nil
	}
}
