package media

import (
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseFrameRate(tt.input); got != tt.want {
				t.Errorf("parseFrameRate(%q) = %g, want %g", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		probe ProbeResult
		want  MediaType
	}{
		{"video with streams", "clip.mp4", ProbeResult{Width: 1920, Height: 1080}, TypeVideo},
		{"image by extension", "still.jpg", ProbeResult{Width: 800, Height: 600}, TypeImage},
		{"png uppercase", "STILL.PNG", ProbeResult{}, TypeImage},
		{"audio only", "track.flac", ProbeResult{HasAudio: true}, TypeAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.path, &tt.probe); got != tt.want {
				t.Errorf("classify(%s) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestTail(t *testing.T) {
	if got := tail("hello", 3); got != "llo" {
		t.Errorf("tail() = %s, want llo", got)
	}
	if got := tail("hi", 10); got != "hi" {
		t.Errorf("tail() = %s, want hi", got)
	}
}
