package cborx

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := cbor.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return data
}

func TestDecode_RoundTrip(t *testing.T) {
	// Values within the supported subset must survive encode/decode
	// unchanged.
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"string", "hello", "hello"},
		{"int", int64(42), int64(42)},
		{"negative int", int64(-7), int64(-7)},
		{"float", 482.5, 482.5},
		{"bool", true, true},
		{"array", []any{int64(1), "two", 3.5}, []any{int64(1), "two", 3.5}},
		{
			"map",
			map[string]any{"a": int64(1), "b": "x"},
			map[string]any{"a": int64(1), "b": "x"},
		},
		{
			"nested",
			map[string]any{"outer": map[string]any{"inner": []any{int64(1), int64(2)}}},
			map[string]any{"outer": map[string]any{"inner": []any{int64(1), int64(2)}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeBytes(encode(t, tc.in))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestDecode_MeterPayload(t *testing.T) {
	payload := map[string]any{
		"meter_number":  "12345",
		"reading_value": 482.5,
		"reading_date":  "2024-03-01",
	}

	decoded, err := DecodeBytes(encode(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("Expected map, got %T", decoded)
	}
	if obj["meter_number"] != "12345" {
		t.Errorf("Expected meter_number 12345, got %v", obj["meter_number"])
	}
	if obj["reading_value"] != 482.5 {
		t.Errorf("Expected reading_value 482.5, got %v", obj["reading_value"])
	}
	if obj["reading_date"] != "2024-03-01" {
		t.Errorf("Expected reading_date 2024-03-01, got %v", obj["reading_date"])
	}
}

func TestDecode_Deterministic(t *testing.T) {
	data := encode(t, map[string]any{"meter_number": "99", "value": int64(3)})

	first, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	second, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Same bytes decoded to different structures")
	}
}

func TestDecode_HexString(t *testing.T) {
	data := encode(t, map[string]any{"meter_number": "12345"})

	decoded, err := Decode(hex.EncodeToString(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	obj := decoded.(map[string]any)
	if obj["meter_number"] != "12345" {
		t.Errorf("Expected meter_number 12345, got %v", obj["meter_number"])
	}
}

func TestDecode_Base64String(t *testing.T) {
	// Encode a payload whose base64 form contains non-hex characters so the
	// hex detector cannot misfire.
	data := encode(t, map[string]any{"meterId": "X-99", "value": 5.0})

	decoded, err := Decode(base64.StdEncoding.EncodeToString(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	obj := decoded.(map[string]any)
	if obj["meterId"] != "X-99" {
		t.Errorf("Expected meterId X-99, got %v", obj["meterId"])
	}
}

func TestDecode_ByteStringBecomesBase64(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xff}
	decoded, err := DecodeBytes(encode(t, map[string]any{"blob": raw}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	obj := decoded.(map[string]any)
	want := base64.StdEncoding.EncodeToString(raw)
	if obj["blob"] != want {
		t.Errorf("Expected byte string as base64 %q, got %v", want, obj["blob"])
	}
}

func TestDecode_TruncatedPayload(t *testing.T) {
	data := encode(t, map[string]any{"meter_number": "12345", "reading_value": 482.5})

	_, err := DecodeBytes(data[:len(data)-3])
	if err == nil {
		t.Fatal("Expected error for truncated payload")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected *DecodeError, got %T", err)
	}
	if decodeErr.Unwrap() == nil {
		t.Error("Expected DecodeError to carry the underlying cause")
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	if _, err := DecodeBytes(nil); err == nil {
		t.Error("Expected error for empty payload")
	}
}

func TestDecode_InvalidBase64(t *testing.T) {
	_, err := Decode("not base64 at all!!!")
	if err == nil {
		t.Fatal("Expected error for invalid base64 string")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected *DecodeError, got %T", err)
	}
}

func TestDecode_UnsupportedInputType(t *testing.T) {
	if _, err := Decode(42); err == nil {
		t.Error("Expected error for unsupported input type")
	}
}
