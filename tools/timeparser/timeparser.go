package timeparser

import (
	"fmt"
	"time"
)

// ReadingDateLayout is the canonical calendar-date format for stored readings.
const ReadingDateLayout = "2006-01-02"

// ParseMeterTimestamp attempts to parse a device-supplied date or timestamp
// with the formats seen across submetering device families.
func ParseMeterTimestamp(dateStr string) (time.Time, error) {
	formats := []string{
		ReadingDateLayout,     // YYYY-MM-DD
		time.RFC3339,          // Standard RFC3339
		"2006-01-02T15:04:05", // RFC3339 without zone
		"2006-01-02 15:04:05", // Space-separated timestamp
		"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}

// ToReadingDate truncates a timestamp to its calendar date in UTC.
func ToReadingDate(t time.Time) string {
	return t.UTC().Format(ReadingDateLayout)
}
