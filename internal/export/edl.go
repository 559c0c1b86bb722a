// Package export renders build plans as CMX3600 edit decision lists so a
// planned cut can be picked up in an NLE before (or instead of) rendering.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/komposer/komposer/internal/plan"
)

// FromPlan generates a CMX3600 EDL for a plan's snippet extractions. Source
// in/out come from the original footage slice; record in/out follow the beat
// timeline relative to the render window. Effect operations have no EDL
// representation and are listed as comments at the end.
func FromPlan(p *plan.BuildPlan, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}
	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	title := SanitizeName(p.Title, 60)
	if title == "" {
		title = p.ID
	}

	sources := make(map[string]plan.Source, len(p.Sources))
	for _, src := range p.Sources {
		sources[src.ID] = src
	}

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	renderStart := float64(p.RenderRange.StartBeat) * p.Timing.SecondsPerBeat()
	for i, ex := range p.SnippetExtractions {
		srcIn := secondsToTimecode(ex.OriginalStart, fps)
		srcOut := secondsToTimecode(ex.OriginalStart+ex.OriginalDuration, fps)
		recIn := secondsToTimecode(ex.TargetStartSeconds-renderStart, fps)
		recOut := secondsToTimecode(ex.TargetStartSeconds-renderStart+ex.TargetDurationSeconds, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clipName(sources, ex)),
		)
		if src, ok := sources[ex.SourceID]; ok {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", src.Path))
		}
		if ex.Method != "" && ex.StretchFactor != 0 && ex.StretchFactor != 1 {
			lines = append(lines, fmt.Sprintf("* M2 SPEED:  %.2f%%", 100/ex.StretchFactor))
		}
	}

	for _, op := range p.EffectOperations {
		lines = append(lines, fmt.Sprintf("* EFFECT %s:  %s over %s",
			op.EffectID, op.Type, strings.Join(op.Inputs, ", ")))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func clipName(sources map[string]plan.Source, ex plan.SnippetExtraction) string {
	if src, ok := sources[ex.SourceID]; ok && src.Name != "" {
		return SanitizeName(src.Name, 60)
	}
	return ex.SegmentID
}

func secondsToTimecode(seconds float64, fps int) string {
	if seconds < 0 {
		seconds = 0
	}
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
