package service

import "fmt"

// MeterNotFoundError indicates that a reading's meter number does not
// resolve to an active meter. Terminal: the reading is rejected, nothing is
// written.
type MeterNotFoundError struct {
	MeterNumber string
}

func (e *MeterNotFoundError) Error() string {
	return fmt.Sprintf("meter not found: %s", e.MeterNumber)
}
