package reading

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/submeterhq/submeter-ingest/tools/timeparser"
)

// Normalize maps a decoded device payload into the canonical reading record.
//
// It is a best-effort mapper: callers are expected to have run Validate
// first, so missing fields fall back to defaults rather than failing. The
// meter identifier defaults to "", the value to 0, and the date to today's
// UTC calendar date — the documented fallback for device payloads that omit
// timestamps. The only error condition is a reading value that is present
// but cannot be interpreted as a number at all.
//
// Alias resolution is identical for both device families today; the source
// tag selects the alias set so the mapping can diverge per vendor later
// without touching callers.
func Normalize(payload map[string]any, source Source) (NormalizedReading, error) {
	aliases := aliasesFor(source)

	meterNumber := resolveString(payload, aliases.meterNumber)

	value, err := resolveValue(payload, aliases.readingValue)
	if err != nil {
		return NormalizedReading{}, err
	}

	date, err := resolveDate(payload, aliases.readingDate, time.Now())
	if err != nil {
		return NormalizedReading{}, err
	}

	return NormalizedReading{
		MeterNumber:  meterNumber,
		ReadingValue: value,
		ReadingDate:  date,
		RawData:      payload,
		Source:       source,
	}, nil
}

// firstPresent returns the value of the first alias key that is set to
// something other than nil or an empty string.
func firstPresent(payload map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func resolveString(payload map[string]any, keys []string) string {
	v, ok := firstPresent(payload, keys)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case uint64:
		return strconv.FormatUint(s, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func resolveValue(payload map[string]any, keys []string) (float64, error) {
	v, ok := firstPresent(payload, keys)
	if !ok {
		return 0, nil
	}

	if n, ok := asNumber(v); ok {
		return n, nil
	}

	// Some devices report values as quoted strings, occasionally wrapped in
	// square brackets.
	if s, ok := v.(string); ok {
		trimmed := strings.Trim(strings.TrimSpace(s), "[]")
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid reading value %q: %w", s, err)
		}
		return n, nil
	}

	return 0, fmt.Errorf("invalid reading value of type %T", v)
}

// resolveDate resolves the reading date as a YYYY-MM-DD string. Timestamps
// are truncated to their calendar date; numeric values are treated as Unix
// epoch seconds (milliseconds when large enough). A missing date falls back
// to now.
func resolveDate(payload map[string]any, keys []string, now time.Time) (string, error) {
	v, ok := firstPresent(payload, keys)
	if !ok {
		return timeparser.ToReadingDate(now), nil
	}

	switch d := v.(type) {
	case string:
		t, err := timeparser.ParseMeterTimestamp(strings.TrimSpace(d))
		if err != nil {
			return "", err
		}
		return timeparser.ToReadingDate(t), nil
	default:
		n, ok := asNumber(v)
		if !ok {
			return "", fmt.Errorf("invalid reading date of type %T", v)
		}
		return timeparser.ToReadingDate(epochToTime(n)), nil
	}
}

// epochToTime interprets n as epoch seconds unless it is clearly in the
// millisecond range.
func epochToTime(n float64) time.Time {
	const millisecondThreshold = 1e12
	if n >= millisecondThreshold {
		return time.UnixMilli(int64(n))
	}
	return time.Unix(int64(n), 0)
}
