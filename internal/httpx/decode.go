package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

type decodeOptions struct {
	allowEmpty   bool
	allowUnknown bool
}

// DecodeOption relaxes the default strict decoding rules.
type DecodeOption func(*decodeOptions)

// AllowEmptyBody makes an empty body decode to the zero value instead of failing.
func AllowEmptyBody() DecodeOption {
	return func(o *decodeOptions) { o.allowEmpty = true }
}

// AllowUnknownFields makes the decoder ignore fields T does not declare.
func AllowUnknownFields() DecodeOption {
	return func(o *decodeOptions) { o.allowUnknown = true }
}

// DecodeJSON decodes JSON from the request body with size limits and validation.
// By default the body must be present and may not contain unknown fields.
func DecodeJSON[T any](r *http.Request, opts ...DecodeOption) (T, error) {
	var zeroValue T

	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)
	if !o.allowUnknown {
		decoder.DisallowUnknownFields()
	}

	var v T
	if err := decoder.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return zeroValue, fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
		case errors.As(err, &unmarshalErr) && unmarshalErr.Field == "":
			return zeroValue, fmt.Errorf("request body must be a JSON object, got %s", unmarshalErr.Value)
		case errors.As(err, &unmarshalErr):
			return zeroValue, fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
		case errors.As(err, &maxBytesErr):
			return zeroValue, fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
		case errors.Is(err, io.EOF):
			if o.allowEmpty {
				return zeroValue, nil
			}
			return zeroValue, errors.New("request body is empty")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return zeroValue, errors.New("malformed JSON: unexpected end of body")
		default:
			return zeroValue, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	// Ensure there's no additional data after the JSON object
	if decoder.More() {
		return zeroValue, errors.New("request body contains multiple JSON objects")
	}

	return v, nil
}
