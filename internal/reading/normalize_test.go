package reading

import (
	"reflect"
	"testing"
	"time"

	"github.com/submeterhq/submeter-ingest/tools/timeparser"
)

func TestNormalize_CanonicalKeys(t *testing.T) {
	payload := map[string]any{
		"meter_number":  "12345",
		"reading_value": 482.5,
		"reading_date":  "2024-03-01",
	}

	nr, err := Normalize(payload, SourceChineseDevice)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if nr.MeterNumber != "12345" {
		t.Errorf("Expected meter number 12345, got %q", nr.MeterNumber)
	}
	if nr.ReadingValue != 482.5 {
		t.Errorf("Expected reading value 482.5, got %v", nr.ReadingValue)
	}
	if nr.ReadingDate != "2024-03-01" {
		t.Errorf("Expected reading date 2024-03-01, got %q", nr.ReadingDate)
	}
	if nr.Source != SourceChineseDevice {
		t.Errorf("Expected source chinese_device, got %q", nr.Source)
	}
	if !reflect.DeepEqual(nr.RawData, payload) {
		t.Error("Expected raw payload to be carried unmodified")
	}
}

func TestNormalize_AliasInvariance(t *testing.T) {
	canonical := map[string]any{
		"meter_number":  "X",
		"reading_value": 5.0,
		"reading_date":  "2024-01-01",
	}
	aliased := map[string]any{
		"meterId": "X",
		"value":   5.0,
		"date":    "2024-01-01",
	}

	a, err := Normalize(canonical, SourceBadgerOrion)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	b, err := Normalize(aliased, SourceBadgerOrion)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if a.MeterNumber != b.MeterNumber || a.ReadingValue != b.ReadingValue || a.ReadingDate != b.ReadingDate {
		t.Errorf("Alias resolution diverged: %+v vs %+v", a, b)
	}
}

func TestNormalize_SourcesShareAliases(t *testing.T) {
	payload := map[string]any{
		"device_id": "D-1",
		"reading":   7.25,
		"timestamp": "2024-06-15T09:30:00Z",
	}

	badger, err := Normalize(payload, SourceBadgerOrion)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	chinese, err := Normalize(payload, SourceChineseDevice)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if badger.MeterNumber != chinese.MeterNumber ||
		badger.ReadingValue != chinese.ReadingValue ||
		badger.ReadingDate != chinese.ReadingDate {
		t.Error("Expected identical field mapping for both device families")
	}
	if badger.Source == chinese.Source {
		t.Error("Expected differing provenance tags")
	}
}

func TestNormalize_DefaultDateIsToday(t *testing.T) {
	nr, err := Normalize(map[string]any{
		"meter_number":  "X",
		"reading_value": 5.0,
	}, SourceBadgerOrion)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	today := timeparser.ToReadingDate(time.Now())
	if nr.ReadingDate != today {
		t.Errorf("Expected default date %s, got %s", today, nr.ReadingDate)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	nr, err := Normalize(map[string]any{}, SourceManual)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if nr.MeterNumber != "" {
		t.Errorf("Expected empty meter number default, got %q", nr.MeterNumber)
	}
	if nr.ReadingValue != 0 {
		t.Errorf("Expected zero value default, got %v", nr.ReadingValue)
	}
}

func TestNormalize_TimestampTruncatedToDate(t *testing.T) {
	nr, err := Normalize(map[string]any{
		"meter_number": "X",
		"value":        1.0,
		"timestamp":    "2024-03-01T23:45:00Z",
	}, SourceChineseDevice)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if nr.ReadingDate != "2024-03-01" {
		t.Errorf("Expected 2024-03-01, got %s", nr.ReadingDate)
	}
}

func TestNormalize_EpochTimestamp(t *testing.T) {
	// 2024-03-01T00:00:00Z
	nr, err := Normalize(map[string]any{
		"meter_number": "X",
		"value":        1.0,
		"timestamp":    int64(1709251200),
	}, SourceChineseDevice)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if nr.ReadingDate != "2024-03-01" {
		t.Errorf("Expected 2024-03-01, got %s", nr.ReadingDate)
	}
}

func TestNormalize_StringValueCoerced(t *testing.T) {
	nr, err := Normalize(map[string]any{
		"meter_number": "X",
		"value":        "[482.5]",
		"date":         "2024-03-01",
	}, SourceChineseDevice)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if nr.ReadingValue != 482.5 {
		t.Errorf("Expected 482.5, got %v", nr.ReadingValue)
	}
}

func TestNormalize_MalformedValueFails(t *testing.T) {
	_, err := Normalize(map[string]any{
		"meter_number": "X",
		"value":        "not-a-number",
		"date":         "2024-03-01",
	}, SourceChineseDevice)

	if err == nil {
		t.Error("Expected error for non-coercible reading value")
	}
}

func TestNormalize_NumericMeterNumberStringified(t *testing.T) {
	nr, err := Normalize(map[string]any{
		"device_id": int64(12345),
		"value":     1.0,
		"date":      "2024-03-01",
	}, SourceBadgerOrion)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if nr.MeterNumber != "12345" {
		t.Errorf("Expected meter number 12345, got %q", nr.MeterNumber)
	}
}
