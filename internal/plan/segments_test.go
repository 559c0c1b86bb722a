package plan

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/timing"
)

func mustTiming(t *testing.T, bpm float64, start, end int) timing.Timing {
	t.Helper()
	tm, err := timing.NewTiming(bpm, 4, start, end)
	if err != nil {
		t.Fatalf("NewTiming() error = %v", err)
	}
	return tm
}

func TestPlanSnippets_StretchFactor(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	tm := mustTiming(t, 120, 0, 16)

	segments := []komposition.Segment{
		{
			ID:           "s1",
			SourceRef:    "city.mp4",
			StartBeat:    0,
			EndBeat:      16,
			SourceTiming: komposition.SourceTiming{OriginalStart: 0, OriginalDuration: 10},
			Method:       komposition.MethodTimeStretch,
		},
	}

	extractions, skipped, err := planSnippets(context.Background(), segments,
		RenderRange{StartBeat: 0, EndBeat: 16}, tm, catalog, nil)
	if err != nil {
		t.Fatalf("planSnippets() error = %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}
	if len(extractions) != 1 {
		t.Fatalf("extractions = %d, want 1", len(extractions))
	}

	ex := extractions[0]
	// 16 beats at 120 BPM is 8 seconds, stretched from a 10 second slice.
	if math.Abs(ex.TargetDurationSeconds-8.0) > 1e-9 {
		t.Errorf("target duration = %g, want 8.0", ex.TargetDurationSeconds)
	}
	if math.Abs(ex.StretchFactor-0.8) > 1e-9 {
		t.Errorf("stretch factor = %g, want 0.8", ex.StretchFactor)
	}
	if ex.SourceID != "src-city" {
		t.Errorf("source id = %s", ex.SourceID)
	}
	if ex.OutputRef != "snippet_s1" {
		t.Errorf("output ref = %s, want snippet_s1", ex.OutputRef)
	}
}

func TestPlanSnippets_StretchInferredFromSourceTiming(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	tm := mustTiming(t, 120, 0, 16)

	// No operation field: a 10 second slice in an 8 second slot must come
	// out retimed, not trimmed.
	doc, err := komposition.Parse([]byte(`{
	  "metadata": {"title": "x", "bpm": 120, "totalBeats": 16},
	  "segments": [{"id": "s1", "sourceRef": "city.mp4", "startBeat": 0, "endBeat": 16,
	   "source_timing": {"original_start": 0, "original_duration": 10}}]
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	extractions, skipped, err := planSnippets(context.Background(), doc.Segments,
		RenderRange{StartBeat: 0, EndBeat: 16}, tm, catalog, nil)
	if err != nil {
		t.Fatalf("planSnippets() error = %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}
	if len(extractions) != 1 {
		t.Fatalf("extractions = %d, want 1", len(extractions))
	}

	ex := extractions[0]
	if ex.Method != komposition.MethodTimeStretch {
		t.Errorf("method = %s, want time_stretch", ex.Method)
	}
	if math.Abs(ex.TargetDurationSeconds-8.0) > 1e-9 {
		t.Errorf("target duration = %g, want 8.0", ex.TargetDurationSeconds)
	}
	if math.Abs(ex.StretchFactor-0.8) > 1e-9 {
		t.Errorf("stretch factor = %g, want 0.8", ex.StretchFactor)
	}
}

func TestPlanSnippets_RenderRangeFiltering(t *testing.T) {
	tests := []struct {
		name      string
		startBeat int
		endBeat   int
		want      int // number of extractions
	}{
		{"fully inside", 4, 12, 1},
		{"ends exactly at window start", 0, 8, 0},
		{"starts exactly at window end", 24, 32, 0},
		{"partial overlap at start is kept whole", 4, 12, 1},
		{"partial overlap at end is kept whole", 20, 28, 1},
		{"fully before", 0, 4, 0},
		{"fully after", 30, 40, 0},
		{"spans entire window", 0, 32, 1},
	}

	renderRange := RenderRange{StartBeat: 8, EndBeat: 24}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, _ := newTestCatalog(t)
			tm := mustTiming(t, 120, 8, 24)

			segments := []komposition.Segment{{
				ID:        "s1",
				SourceRef: "city.mp4",
				StartBeat: tt.startBeat,
				EndBeat:   tt.endBeat,
				Method:    komposition.MethodTrim,
			}}

			extractions, _, err := planSnippets(context.Background(), segments, renderRange, tm, catalog, nil)
			if err != nil {
				t.Fatalf("planSnippets() error = %v", err)
			}
			if len(extractions) != tt.want {
				t.Errorf("extractions = %d, want %d", len(extractions), tt.want)
			}

			if tt.want == 1 {
				// Included segments keep their full beat span.
				if extractions[0].StartBeat != tt.startBeat || extractions[0].EndBeat != tt.endBeat {
					t.Errorf("beat range = [%d,%d), want [%d,%d)",
						extractions[0].StartBeat, extractions[0].EndBeat, tt.startBeat, tt.endBeat)
				}
			}
		})
	}
}

func TestPlanSnippets_DegenerateStretchDropsSegment(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	tm := mustTiming(t, 120, 0, 32)

	segments := []komposition.Segment{
		{
			ID:           "bad",
			SourceRef:    "city.mp4",
			StartBeat:    0,
			EndBeat:      16,
			SourceTiming: komposition.SourceTiming{OriginalDuration: 0},
			Method:       komposition.MethodTimeStretch,
		},
		{
			ID:        "good",
			SourceRef: "drive.mp4",
			StartBeat: 16,
			EndBeat:   32,
			Method:    komposition.MethodTrim,
		},
	}

	extractions, skipped, err := planSnippets(context.Background(), segments,
		RenderRange{StartBeat: 0, EndBeat: 32}, tm, catalog, nil)
	if err != nil {
		t.Fatalf("planSnippets() error = %v, want soft degradation", err)
	}

	if len(extractions) != 1 || extractions[0].SegmentID != "good" {
		t.Errorf("extractions = %+v, want only segment good", extractions)
	}
	if len(skipped) != 1 || skipped[0].SegmentID != "bad" {
		t.Fatalf("skipped = %v, want segment bad", skipped)
	}
	if !errors.Is(skipped[0].Reason, ErrDegenerateStretch) {
		t.Errorf("skip reason = %v, want ErrDegenerateStretch", skipped[0].Reason)
	}
}

func TestPlanSnippets_MissingSourceAborts(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	tm := mustTiming(t, 120, 0, 16)

	segments := []komposition.Segment{{
		ID:        "s1",
		SourceRef: "ghost.mp4",
		StartBeat: 0,
		EndBeat:   16,
		Method:    komposition.MethodTrim,
	}}

	_, _, err := planSnippets(context.Background(), segments,
		RenderRange{StartBeat: 0, EndBeat: 16}, tm, catalog, nil)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("error = %v, want ErrSourceNotFound", err)
	}

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if perr.Subject != "s1" {
		t.Errorf("error subject = %q, want s1", perr.Subject)
	}
}

func TestPlanSnippets_TrimDefaultsToSlotLength(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	tm := mustTiming(t, 120, 0, 16)

	segments := []komposition.Segment{{
		ID:        "s1",
		SourceRef: "city.mp4",
		StartBeat: 0,
		EndBeat:   16,
		Method:    komposition.MethodTrim,
	}}

	extractions, _, err := planSnippets(context.Background(), segments,
		RenderRange{StartBeat: 0, EndBeat: 16}, tm, catalog, nil)
	if err != nil {
		t.Fatalf("planSnippets() error = %v", err)
	}

	ex := extractions[0]
	if math.Abs(ex.OriginalDuration-8.0) > 1e-9 {
		t.Errorf("original duration = %g, want slot length 8.0", ex.OriginalDuration)
	}
	if ex.StretchFactor != 0 {
		t.Errorf("stretch factor = %g, want 0 for trim", ex.StretchFactor)
	}
}
