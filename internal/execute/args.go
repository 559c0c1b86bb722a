package execute

import (
	"fmt"
	"strings"

	"github.com/komposer/komposer/internal/komposition"
	"github.com/komposer/komposer/internal/plan"
)

// xfade transition names per effect type. Anything unlisted falls back to a
// plain fade.
var xfadeTransitions = map[komposition.EffectType]string{
	komposition.EffectCrossfade:    "fade",
	komposition.EffectGradientWipe: "wipeleft",
	komposition.EffectOpacity:      "fadeblack",
}

// extractionArgs builds the ffmpeg argument list for one snippet extraction.
// Trim re-encodes the exact slice, smart cut stream-copies from the nearest
// keyframe, and time stretch retimes both video and audio by the stored
// factor.
func extractionArgs(ex plan.SnippetExtraction, sourcePath, outputPath string) []string {
	args := []string{"-y", "-ss", formatSeconds(ex.OriginalStart)}

	switch ex.Method {
	case komposition.MethodSmartCut:
		args = append(args,
			"-t", formatSeconds(ex.OriginalDuration),
			"-i", sourcePath,
			"-c", "copy",
			"-avoid_negative_ts", "make_zero",
		)

	case komposition.MethodTimeStretch:
		args = append(args,
			"-t", formatSeconds(ex.OriginalDuration),
			"-i", sourcePath,
			"-filter:v", fmt.Sprintf("setpts=%s*PTS", formatSeconds(ex.StretchFactor)),
			"-filter:a", atempoChain(ex.StretchFactor),
		)

	default: // trim
		args = append(args,
			"-t", formatSeconds(ex.OriginalDuration),
			"-i", sourcePath,
			"-c:v", "libx264", "-preset", "fast",
			"-c:a", "aac",
		)
	}

	return append(args, outputPath)
}

// atempoChain builds the audio retiming filter for a stretch factor. ffmpeg
// caps a single atempo stage at [0.5, 2.0], so extreme factors chain stages.
func atempoChain(stretchFactor float64) string {
	// Audio tempo is the inverse of the video stretch.
	tempo := 1.0 / stretchFactor

	var stages []string
	for tempo > 2.0 {
		stages = append(stages, "atempo=2.0")
		tempo /= 2.0
	}
	for tempo < 0.5 {
		stages = append(stages, "atempo=0.5")
		tempo /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%s", formatSeconds(tempo)))
	return strings.Join(stages, ",")
}

// effectArgs builds the ffmpeg argument list for one effect operation over
// already-materialized input files. firstInputSeconds is the duration of
// inputs[0], which transitions need to place the crossover window.
func effectArgs(op plan.EffectOperation, inputs []string, firstInputSeconds float64, outputPath string) []string {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	switch {
	case op.Params.Transition != nil:
		tp := op.Params.Transition
		offset := firstInputSeconds - tp.DurationSeconds + tp.StartOffsetSeconds
		if offset < 0 {
			offset = 0
		}
		transition := xfadeTransitions[op.Type]
		if transition == "" {
			transition = "fade"
		}
		args = append(args,
			"-filter_complex",
			fmt.Sprintf("[0:v][1:v]xfade=transition=%s:duration=%s:offset=%s[v];[0:a][1:a]acrossfade=d=%s[a]",
				transition,
				formatSeconds(tp.DurationSeconds),
				formatSeconds(offset),
				formatSeconds(tp.DurationSeconds)),
			"-map", "[v]", "-map", "[a]",
		)

	case op.Params.Resize != nil:
		args = append(args,
			"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
				op.Params.Resize.Width, op.Params.Resize.Height,
				op.Params.Resize.Width, op.Params.Resize.Height),
			"-c:a", "copy",
		)

	case op.Params.ColorGrade != nil:
		cg := op.Params.ColorGrade
		args = append(args,
			"-vf", fmt.Sprintf("eq=brightness=%s:contrast=%s:saturation=%s",
				formatSeconds(cg.Brightness), formatSeconds(cg.Contrast), formatSeconds(cg.Saturation)),
			"-c:a", "copy",
		)

	default: // passthrough
		if len(inputs) == 1 {
			args = append(args, "-c", "copy")
		} else {
			args = append(args,
				"-filter_complex", concatFilter(len(inputs)),
				"-map", "[v]", "-map", "[a]",
			)
		}
	}

	return append(args, outputPath)
}

// composeArgs builds the final composition step: scale the last intermediate
// to the plan's output dimensions and write the deliverable.
func composeArgs(inputPath string, width, height int, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
			width, height, width, height),
		"-c:v", "libx264", "-preset", "medium", "-crf", "18",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		outputPath,
	}
}

// concatArgs joins multiple snippet files back to back, used when a plan has
// no effects tree.
func concatArgs(inputs []string, outputPath string) []string {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", concatFilter(len(inputs)),
		"-map", "[v]", "-map", "[a]",
	)
	return append(args, outputPath)
}

func concatFilter(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:v][%d:a]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[v][a]", n)
	return b.String()
}

// formatSeconds renders a float without trailing zeros, the way ffmpeg
// option values are usually written.
func formatSeconds(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
