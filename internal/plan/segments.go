package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/logging"
	"github.com/komposer/komposer/internal/timing"
)

// SkippedSegment records one segment soft-dropped during planning and the
// reason it was excluded. Reason unwraps to the matching error kind.
type SkippedSegment struct {
	SegmentID string
	Reason    error
}

// planSnippets converts the document's segments into snippet extractions
// for everything that overlaps the render range. Segments that overlap the
// window only partially are included in full; the window filters, it does
// not clip.
//
// A segment with a degenerate stretch (zero or negative source duration) is
// dropped and reported in the skipped list rather than failing the build;
// one bad segment should not block an otherwise valid composition. All
// other failures abort.
func planSnippets(
	ctx context.Context,
	segments []komposition.Segment,
	renderRange RenderRange,
	tm timing.Timing,
	catalog *Catalog,
	logger *slog.Logger,
) ([]SnippetExtraction, []SkippedSegment, error) {
	var extractions []SnippetExtraction
	var skipped []SkippedSegment

	for _, seg := range segments {
		if !renderRange.Overlaps(seg.StartBeat, seg.EndBeat) {
			continue
		}

		segTiming, err := timing.NewTiming(tm.BPM, tm.BeatsPerMeasure, seg.StartBeat, seg.EndBeat)
		if err != nil {
			return nil, nil, fmt.Errorf("segment %q: %w", seg.ID, err)
		}

		source, err := catalog.Resolve(ctx, seg.SourceRef)
		if err != nil {
			var perr *Error
			if errors.As(err, &perr) && perr.Subject == "" {
				perr.Subject = seg.ID
			}
			return nil, nil, err
		}

		extraction := SnippetExtraction{
			ID:                    "extract_" + seg.ID,
			SegmentID:             seg.ID,
			SourceID:              source.ID,
			StartBeat:             seg.StartBeat,
			EndBeat:               seg.EndBeat,
			TargetStartSeconds:    segTiming.StartSeconds(),
			TargetDurationSeconds: segTiming.Duration(),
			OriginalStart:         seg.SourceTiming.OriginalStart,
			OriginalDuration:      seg.SourceTiming.OriginalDuration,
			Method:                seg.Method,
			OutputRef:             "snippet_" + seg.ID,
		}

		switch seg.Method {
		case komposition.MethodTimeStretch:
			if seg.SourceTiming.OriginalDuration <= 0 {
				// The stretch factor would divide by zero; drop just this
				// segment and keep building.
				reason := planErr(ErrDegenerateStretch, seg.ID,
					"original duration %g", seg.SourceTiming.OriginalDuration)
				if logger != nil {
					logging.WithSegmentID(logger, seg.ID).Warn(
						"dropping segment with degenerate stretch", "error", reason)
				}
				skipped = append(skipped, SkippedSegment{SegmentID: seg.ID, Reason: reason})
				continue
			}
			extraction.StretchFactor = segTiming.Duration() / seg.SourceTiming.OriginalDuration

		default:
			// Trim and smart cut pull exactly the slot length when the
			// document does not say which slice to use.
			if extraction.OriginalDuration <= 0 {
				extraction.OriginalDuration = segTiming.Duration()
			}
		}

		extractions = append(extractions, extraction)
	}

	return extractions, skipped, nil
}
