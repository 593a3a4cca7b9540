package cborx

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// DecodeError indicates a payload that could not be decoded as CBOR:
// truncated input, a reserved/unsupported type tag, or bytes that are not
// valid under the encoding grammar. The underlying cause is retained.
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode CBOR: %v", e.cause)
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// Decode turns a CBOR payload into a generic JSON-representable value.
//
// The input is either raw bytes or a string representation of them: strings
// consisting solely of hex digits are decoded as hex, anything else is
// treated as base64. Decoded maps become map[string]any (non-string keys are
// stringified), arrays become []any, byte strings become base64 strings,
// and integers are kept as int64 where they fit.
func Decode(input any) (any, error) {
	switch v := input.(type) {
	case []byte:
		return DecodeBytes(v)
	case string:
		raw, err := decodeStringInput(v)
		if err != nil {
			return nil, &DecodeError{cause: err}
		}
		return DecodeBytes(raw)
	default:
		return nil, &DecodeError{cause: fmt.Errorf("unsupported input type %T", input)}
	}
}

// DecodeBytes decodes a raw CBOR byte buffer.
func DecodeBytes(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, &DecodeError{cause: fmt.Errorf("empty payload")}
	}

	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return nil, &DecodeError{cause: err}
	}

	return toGeneric(decoded), nil
}

func decodeStringInput(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty payload string")
	}

	if hexPattern.MatchString(s) {
		raw, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return raw, nil
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return raw, nil
}

// toGeneric converts fxamacker/cbor's default decode shapes into values that
// survive a round trip through encoding/json.
func toGeneric(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[stringifyKey(k)] = toGeneric(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toGeneric(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toGeneric(item)
		}
		return out
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case uint64:
		if val <= uint64(1<<63-1) {
			return int64(val)
		}
		return float64(val)
	case int64:
		return val
	case int:
		return int64(val)
	case float32:
		return float64(val)
	case big.Int:
		return val.String()
	case *big.Int:
		return val.String()
	case cbor.Tag:
		// Tag numbers carry no meaning for meter payloads; keep the content.
		return toGeneric(val.Content)
	default:
		return val
	}
}

func stringifyKey(k any) string {
	switch key := k.(type) {
	case string:
		return key
	case []byte:
		return base64.StdEncoding.EncodeToString(key)
	case uint64:
		return strconv.FormatUint(key, 10)
	case int64:
		return strconv.FormatInt(key, 10)
	case float64:
		return strconv.FormatFloat(key, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", key)
	}
}
