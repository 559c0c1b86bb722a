// Package config provides configuration management for the Komposer agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8791
	DefaultLogLevel = "info"
	DefaultDataDir  = ".komposer"

	// Environment variable names
	EnvPort     = "KOMPOSER_PORT"
	EnvLogLevel = "KOMPOSER_LOG_LEVEL"
	EnvDataDir  = "KOMPOSER_DATA_DIR"
	EnvHeadless = "KOMPOSER_HEADLESS"

	// Media tool environment variable names
	EnvFFmpegPath  = "KOMPOSER_FFMPEG"
	EnvFFprobePath = "KOMPOSER_FFPROBE"

	// Database filename
	DBFilename = "komposer.db"

	// Planning defaults
	DefaultOutputWidth       = 1920
	DefaultOutputHeight      = 1080
	DefaultMaxSegmentSeconds = 300.0

	// Render defaults
	DefaultRenderTimeout      = 1800 // seconds, whole-plan budget
	DefaultProbeTimeout       = 30   // seconds per ffprobe invocation
	DefaultExtractionWorkers  = 2
	DefaultInboxPollInterval  = 10 // seconds
	DefaultRunnerPollInterval = 5  // seconds
	EnvExtractionWorkers      = "KOMPOSER_EXTRACTION_WORKERS"
	EnvMaxSegmentSeconds      = "KOMPOSER_MAX_SEGMENT_SECONDS"
	EnvRenderTimeoutSeconds   = "KOMPOSER_RENDER_TIMEOUT"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	WorkDir() string
	InboxDir() string
	Headless() bool
	FFmpegPath() string
	FFprobePath() string
	OutputWidth() int
	OutputHeight() int
	MaxSegmentSeconds() float64
	ExtractionWorkers() int
	RenderTimeout() time.Duration
	ProbeTimeout() time.Duration
	InboxPollInterval() time.Duration
	RunnerPollInterval() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string

	extractionWorkers    int
	maxSegmentSeconds    float64
	renderTimeoutSeconds int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:                 DefaultPort,
		logLevel:             DefaultLogLevel,
		dataDir:              defaultDataDir(),
		extractionWorkers:    DefaultExtractionWorkers,
		maxSegmentSeconds:    DefaultMaxSegmentSeconds,
		renderTimeoutSeconds: DefaultRenderTimeout,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	if w := os.Getenv(EnvExtractionWorkers); w != "" {
		workers, err := strconv.Atoi(w)
		if err != nil || workers < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvExtractionWorkers)
		}
		cfg.extractionWorkers = workers
	}

	if m := os.Getenv(EnvMaxSegmentSeconds); m != "" {
		max, err := strconv.ParseFloat(m, 64)
		if err != nil || max <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number", EnvMaxSegmentSeconds)
		}
		cfg.maxSegmentSeconds = max
	}

	if rt := os.Getenv(EnvRenderTimeoutSeconds); rt != "" {
		secs, err := strconv.Atoi(rt)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvRenderTimeoutSeconds)
		}
		cfg.renderTimeoutSeconds = secs
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// WorkDir returns the directory for intermediate and final render outputs
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

// InboxDir returns the directory polled for dropped komposition documents
func (c *EnvConfig) InboxDir() string {
	return filepath.Join(c.dataDir, "inbox")
}

// Headless reports whether the system tray should be disabled
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// FFmpegPath returns the ffmpeg binary path; empty means look up in PATH
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// FFprobePath returns the ffprobe binary path; empty means look up in PATH
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

// OutputWidth returns the default output width in pixels
func (c *EnvConfig) OutputWidth() int {
	return DefaultOutputWidth
}

// OutputHeight returns the default output height in pixels
func (c *EnvConfig) OutputHeight() int {
	return DefaultOutputHeight
}

// MaxSegmentSeconds returns the validation ceiling for a single segment
func (c *EnvConfig) MaxSegmentSeconds() float64 {
	return c.maxSegmentSeconds
}

// ExtractionWorkers returns the extraction phase concurrency limit
func (c *EnvConfig) ExtractionWorkers() int {
	return c.extractionWorkers
}

func (c *EnvConfig) RenderTimeout() time.Duration {
	return time.Duration(c.renderTimeoutSeconds) * time.Second
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

func (c *EnvConfig) InboxPollInterval() time.Duration {
	return time.Duration(DefaultInboxPollInterval) * time.Second
}

func (c *EnvConfig) RunnerPollInterval() time.Duration {
	return time.Duration(DefaultRunnerPollInterval) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
