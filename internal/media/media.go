// Package media wraps the external ffmpeg/ffprobe binaries behind an
// Engine interface so the planning core never shells out directly.
package media

import (
	"context"
	"time"
)

// MediaType classifies a probed asset.
type MediaType string

const (
	TypeVideo MediaType = "video"
	TypeAudio MediaType = "audio"
	TypeImage MediaType = "image"
)

// ProbeResult is the metadata the planner needs about one asset.
type ProbeResult struct {
	DurationSeconds float64
	Width           int
	Height          int
	MediaType       MediaType
	Codec           string
	FrameRate       float64
	HasAudio        bool
}

// Command is one concrete ffmpeg invocation produced by the executor.
type Command struct {
	Args       []string
	OutputPath string
}

// ExecResult reports the outcome of one engine invocation.
type ExecResult struct {
	Success  bool
	ExitCode int
	Log      string
	Duration time.Duration
}

// Engine probes media metadata and executes transformation commands.
// Probe failures are deterministic input errors; callers fail fast rather
// than retry.
type Engine interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
	Execute(ctx context.Context, cmd Command) (*ExecResult, error)
}
