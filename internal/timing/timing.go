// Package timing converts between musical beat positions and wall-clock
// seconds for a given tempo. All conversions are pure; the same inputs
// always produce the same outputs.
package timing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBPM is returned when a tempo of zero or less reaches a
	// beat/second conversion.
	ErrInvalidBPM = errors.New("bpm must be greater than zero")

	// ErrInvalidRange is returned when a beat range ends before it starts.
	ErrInvalidRange = errors.New("end beat before start beat")
)

// Timing locates a beat range on the wall clock for one tempo.
type Timing struct {
	BPM             float64 `json:"bpm"`
	BeatsPerMeasure int     `json:"beats_per_measure"`
	StartBeat       int     `json:"start_beat"`
	EndBeat         int     `json:"end_beat"`
}

// NewTiming validates and builds a Timing value.
func NewTiming(bpm float64, beatsPerMeasure, startBeat, endBeat int) (Timing, error) {
	if bpm <= 0 {
		return Timing{}, fmt.Errorf("timing: %w (got %g)", ErrInvalidBPM, bpm)
	}
	if beatsPerMeasure <= 0 {
		return Timing{}, fmt.Errorf("timing: beats per measure must be positive (got %d)", beatsPerMeasure)
	}
	if endBeat < startBeat {
		return Timing{}, fmt.Errorf("timing: %w (%d < %d)", ErrInvalidRange, endBeat, startBeat)
	}
	return Timing{
		BPM:             bpm,
		BeatsPerMeasure: beatsPerMeasure,
		StartBeat:       startBeat,
		EndBeat:         endBeat,
	}, nil
}

// SecondsPerBeat returns the wall-clock length of one beat.
func (t Timing) SecondsPerBeat() float64 {
	return 60.0 / t.BPM
}

// StartSeconds returns the wall-clock position of the range start.
func (t Timing) StartSeconds() float64 {
	return float64(t.StartBeat) * t.SecondsPerBeat()
}

// Duration returns the wall-clock length of the range in seconds.
func (t Timing) Duration() float64 {
	return float64(t.EndBeat-t.StartBeat) * t.SecondsPerBeat()
}

// AtBPM rederives the same beat range at a different tempo.
func (t Timing) AtBPM(bpm float64) (Timing, error) {
	return NewTiming(bpm, t.BeatsPerMeasure, t.StartBeat, t.EndBeat)
}

// BeatsToSeconds converts a beat count to seconds at the given tempo.
func BeatsToSeconds(beats, bpm float64) (float64, error) {
	if bpm <= 0 {
		return 0, fmt.Errorf("timing: %w (got %g)", ErrInvalidBPM, bpm)
	}
	return beats * 60.0 / bpm, nil
}

// SecondsToBeats converts a duration in seconds to beats at the given tempo.
func SecondsToBeats(seconds, bpm float64) (float64, error) {
	if bpm <= 0 {
		return 0, fmt.Errorf("timing: %w (got %g)", ErrInvalidBPM, bpm)
	}
	return seconds * bpm / 60.0, nil
}
