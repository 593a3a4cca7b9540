package reading

// ValidationResult holds the outcome of payload validation. A payload with a
// non-empty Errors slice must be rejected before normalization.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Validate checks a decoded payload for the three required semantic fields:
// a meter identifier, a numeric reading value, and a reading date/timestamp,
// each under any of its accepted key aliases. One error message is appended
// per missing field, in that fixed order. Validate never fails itself and is
// identical for every device family.
func Validate(payload map[string]any) ValidationResult {
	var errs []string
	aliases := defaultAliases

	if _, ok := firstPresent(payload, aliases.meterNumber); !ok {
		errs = append(errs, "Missing meter identifier")
	}

	if !hasNumeric(payload, aliases.readingValue) {
		errs = append(errs, "Missing or invalid reading value")
	}

	if _, ok := firstPresent(payload, aliases.readingDate); !ok {
		errs = append(errs, "Missing reading date/timestamp")
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

func hasNumeric(payload map[string]any, keys []string) bool {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok || v == nil {
			continue
		}
		if _, ok := asNumber(v); ok {
			return true
		}
	}
	return false
}

// asNumber accepts the numeric shapes produced by encoding/json and the CBOR
// decoder. Strings are deliberately not numbers here; the validator demands
// a typed numeric value.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
