// Package reading defines the canonical meter reading record and the pure
// validation/normalization step that maps heterogeneous device payloads
// into it.
package reading

// Source records which device family or process produced a reading.
type Source string

const (
	SourceBadgerOrion   Source = "badger_orion"
	SourceChineseDevice Source = "chinese_device"
	SourceManual        Source = "manual"
)

// Valid reports whether s is a known provenance tag.
func (s Source) Valid() bool {
	switch s {
	case SourceBadgerOrion, SourceChineseDevice, SourceManual:
		return true
	}
	return false
}

// NormalizedReading is the canonical ingestion record. It is only ever fully
// populated: callers validate the payload first and reject it before a record
// is constructed.
type NormalizedReading struct {
	MeterNumber  string
	ReadingValue float64
	ReadingDate  string
	RawData      map[string]any
	Source       Source
}

// aliasSet lists the accepted payload keys per semantic field, in resolution
// order.
type aliasSet struct {
	meterNumber  []string
	readingValue []string
	readingDate  []string
}

// Both device families currently share one alias set. They probably should
// not (different vendors, different field conventions), but until real
// divergence shows up in the field the mapping stays shared and only the
// provenance tag differs.
var defaultAliases = aliasSet{
	meterNumber:  []string{"meter_number", "meterId", "device_id"},
	readingValue: []string{"reading_value", "value", "reading"},
	readingDate:  []string{"reading_date", "date", "timestamp"},
}

func aliasesFor(Source) aliasSet {
	return defaultAliases
}
