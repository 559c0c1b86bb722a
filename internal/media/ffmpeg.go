package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/komposer/komposer/internal/logging"
)

const maxLogBytes = 8 * 1024 // tail of ffmpeg stderr kept for diagnostics

// FFmpegEngine is the production Engine backed by the ffmpeg and ffprobe
// binaries. Empty binary paths fall back to PATH lookup.
type FFmpegEngine struct {
	ffmpegPath   string
	ffprobePath  string
	probeTimeout time.Duration
	logger       *slog.Logger
}

func NewFFmpegEngine(ffmpegPath, ffprobePath string, probeTimeout time.Duration, logger *slog.Logger) *FFmpegEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if probeTimeout <= 0 {
		probeTimeout = 30 * time.Second
	}
	return &FFmpegEngine{
		ffmpegPath:   ffmpegPath,
		ffprobePath:  ffprobePath,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// probeOutput matches the ffprobe JSON shape we consume.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

func (e *FFmpegEngine) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", logging.SanitizePath(path), err)
	}

	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		result.DurationSeconds = d
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			result.Width = stream.Width
			result.Height = stream.Height
			result.Codec = stream.CodecName
			result.FrameRate = parseFrameRate(stream.RFrameRate)
		case "audio":
			result.HasAudio = true
		}
	}

	result.MediaType = classify(path, result)

	if e.logger != nil {
		e.logger.Debug("probed media file",
			"path", logging.SanitizePath(path),
			"duration", result.DurationSeconds,
			"type", result.MediaType,
		)
	}
	return result, nil
}

// Execute runs one ffmpeg invocation. Args is the complete argument list,
// output path included; OutputPath is carried for logging and bookkeeping.
func (e *FFmpegEngine) Execute(ctx context.Context, command Command) (*ExecResult, error) {
	args := append([]string{"-hide_banner"}, command.Args...)

	if e.logger != nil {
		e.logger.Debug("running ffmpeg", "command", shellquote.Join(append([]string{e.ffmpegPath}, args...)...))
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &ExecResult{
		Success:  err == nil,
		Log:      tail(stderr.String(), maxLogBytes),
		Duration: time.Since(start),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("ffmpeg invocation failed: %w", err)
	}
	return result, nil
}

// parseFrameRate converts an ffprobe rational like "30000/1001" to a float.
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

func classify(path string, r *ProbeResult) MediaType {
	if imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return TypeImage
	}
	if r.Width > 0 && r.Height > 0 {
		return TypeVideo
	}
	if r.HasAudio {
		return TypeAudio
	}
	return TypeVideo
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
