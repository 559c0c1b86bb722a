package plan

import (
	"fmt"
)

// ValidationResult is the per-candidate-BPM outcome of a plan check.
type ValidationResult struct {
	TotalDurationSeconds float64  `json:"total_duration"`
	SecondsPerBeat       float64  `json:"seconds_per_beat"`
	ExtractionErrors     []string `json:"extraction_errors"`
	Valid                bool     `json:"valid"`
}

// ValidatePlan rederives every extraction's timing from its stored beat
// range at each candidate tempo and reports non-positive or excessive
// durations. It mutates nothing and is safe to run repeatedly; findings are
// diagnostics, never aborts.
func ValidatePlan(p *BuildPlan, candidateBPMs []float64, maxSegmentSeconds float64) map[float64]*ValidationResult {
	if maxSegmentSeconds <= 0 {
		maxSegmentSeconds = 300
	}

	results := make(map[float64]*ValidationResult, len(candidateBPMs))
	for _, bpm := range candidateBPMs {
		results[bpm] = validateAtBPM(p, bpm, maxSegmentSeconds)
	}
	return results
}

func validateAtBPM(p *BuildPlan, bpm, maxSegmentSeconds float64) *ValidationResult {
	result := &ValidationResult{}

	if bpm <= 0 {
		result.ExtractionErrors = append(result.ExtractionErrors,
			fmt.Sprintf("invalid bpm %g", bpm))
		return result
	}

	secondsPerBeat := 60.0 / bpm
	result.SecondsPerBeat = secondsPerBeat
	result.TotalDurationSeconds = float64(p.RenderRange.EndBeat-p.RenderRange.StartBeat) * secondsPerBeat

	for _, ex := range p.SnippetExtractions {
		duration := float64(ex.EndBeat-ex.StartBeat) * secondsPerBeat
		if duration <= 0 {
			result.ExtractionErrors = append(result.ExtractionErrors,
				fmt.Sprintf("segment %s: invalid duration %gs at %g bpm", ex.SegmentID, duration, bpm))
			continue
		}
		if duration > maxSegmentSeconds {
			result.ExtractionErrors = append(result.ExtractionErrors,
				planErr(ErrExcessiveDuration, ex.SegmentID,
					"%.3fs at %g bpm (ceiling %.0fs)", duration, bpm, maxSegmentSeconds).Error())
		}
	}

	result.Valid = len(result.ExtractionErrors) == 0
	return result
}
