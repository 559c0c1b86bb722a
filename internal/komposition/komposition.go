// Package komposition defines the beat-timed composition document and its
// parser. A komposition describes segments, sources, and an optional effects
// tree, all positioned in musical beats rather than seconds.
package komposition

import (
	"fmt"
)

// ExtractionMethod selects how a source slice is fitted into its segment slot.
type ExtractionMethod string

const (
	MethodTrim        ExtractionMethod = "trim"
	MethodTimeStretch ExtractionMethod = "time_stretch"
	MethodSmartCut    ExtractionMethod = "smart_cut"
)

// ParseExtractionMethod validates an operation name from a document.
func ParseExtractionMethod(s string) (ExtractionMethod, error) {
	switch ExtractionMethod(s) {
	case MethodTrim, MethodTimeStretch, MethodSmartCut:
		return ExtractionMethod(s), nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// EffectType identifies one node kind in the effects tree.
type EffectType string

const (
	EffectPassthrough  EffectType = "passthrough"
	EffectGradientWipe EffectType = "gradient_wipe"
	EffectCrossfade    EffectType = "crossfade_transition"
	EffectOpacity      EffectType = "opacity_transition"
	EffectResize       EffectType = "resize"
	EffectColorGrade   EffectType = "color_grade"
)

// IsTransition reports whether the effect blends exactly two inputs.
func (t EffectType) IsTransition() bool {
	switch t {
	case EffectGradientWipe, EffectCrossfade, EffectOpacity:
		return true
	}
	return false
}

// RefKind distinguishes what an effect input reference points at.
type RefKind string

const (
	RefSegment      RefKind = "segment"
	RefEffectOutput RefKind = "effect_output"
)

// Ref is one resolved-at-plan-time input reference of an effect node.
type Ref struct {
	Kind RefKind `json:"type"`
	ID   string  `json:"id"`
}

// Metadata carries the document-level timing and identity fields.
type Metadata struct {
	Title           string  `json:"title"`
	BPM             float64 `json:"bpm"`
	BeatsPerMeasure int     `json:"beatsPerMeasure"`
	TotalBeats      int     `json:"totalBeats"`
}

// SourceTiming selects which slice of the source media a segment uses.
type SourceTiming struct {
	OriginalStart    float64 `json:"original_start"`
	OriginalDuration float64 `json:"original_duration"`
}

// Segment is one beat-positioned time slice of the final composition.
type Segment struct {
	ID           string           `json:"id"`
	SourceRef    string           `json:"sourceRef"`
	StartBeat    int              `json:"startBeat"`
	EndBeat      int              `json:"endBeat"`
	SourceTiming SourceTiming     `json:"source_timing"`
	Method       ExtractionMethod `json:"operation"`
}

// EffectNode is one node of the parsed effects tree. Config is the typed
// per-effect configuration; the raw parameter bag from the document does not
// survive parsing.
type EffectNode struct {
	EffectID  string        `json:"effect_id"`
	Type      EffectType    `json:"type"`
	Config    EffectConfig  `json:"config,omitempty"`
	AppliesTo []Ref         `json:"applies_to,omitempty"`
	Children  []*EffectNode `json:"children,omitempty"`
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *EffectNode) CountNodes() int {
	if n == nil {
		return 0
	}
	count := 1
	for _, c := range n.Children {
		count += c.CountNodes()
	}
	return count
}

// Komposition is the fully parsed document.
type Komposition struct {
	Metadata    Metadata    `json:"metadata"`
	Segments    []Segment   `json:"segments"`
	EffectsTree *EffectNode `json:"effects_tree,omitempty"`
}
