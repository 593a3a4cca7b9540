package anomaly

import (
	"fmt"
)

// Detector flags suspicious submeter readings with configurable thresholds.
// Findings are advisory: ingestion stores the reading either way.
type Detector struct {
	spikeThreshold float64
	minDataPoints  int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPoints int) *Detector {
	return &Detector{
		spikeThreshold: spikeThreshold,
		minDataPoints:  minDataPoints,
	}
}

// Check inspects a reading value against the meter's recent history.
// Submeter readings are cumulative, so a value below the most recent stored
// reading indicates a meter rollback or swap, and a value far above the
// rolling average indicates a spike or unit mismatch.
func (d *Detector) Check(value float64, historical []float64) (bool, string) {
	if value < 0 {
		return true, "negative value"
	}

	if len(historical) == 0 {
		return false, ""
	}

	// historical is ordered newest first
	if latest := historical[0]; value < latest {
		return true, fmt.Sprintf("reading %.2f below previous reading %.2f", value, latest)
	}

	if len(historical) < d.minDataPoints {
		return false, ""
	}

	sum := 0.0
	for _, v := range historical {
		sum += v
	}
	average := sum / float64(len(historical))

	if average > 0 && value > d.spikeThreshold*average {
		return true, fmt.Sprintf("sudden spike detected: value %.2f exceeds %.1fx rolling average %.2f",
			value, d.spikeThreshold, average)
	}

	return false, ""
}
