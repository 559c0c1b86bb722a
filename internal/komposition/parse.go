package komposition

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/komposer/komposer/internal/timing"
)

type rawDocument struct {
	Metadata    Metadata       `json:"metadata"`
	Segments    []rawSegment   `json:"segments"`
	EffectsTree *rawEffectNode `json:"effects_tree"`
}

type rawSegment struct {
	ID           string                     `json:"id"`
	SourceRef    string                     `json:"sourceRef"`
	StartBeat    int                        `json:"startBeat"`
	EndBeat      int                        `json:"endBeat"`
	SourceTiming SourceTiming               `json:"source_timing"`
	Operation    string                     `json:"operation"`
	Params       map[string]json.RawMessage `json:"params"`
}

type rawEffectNode struct {
	EffectID   string           `json:"effect_id"`
	Type       string           `json:"type"`
	Parameters json.RawMessage  `json:"parameters"`
	Children   []*rawEffectNode `json:"children"`
	AppliesTo  []Ref            `json:"applies_to"`
}

// Parse decodes and validates one komposition document. Timing fields,
// segment ranges, operation names, and effect parameters are all checked
// here; downstream planning assumes a Komposition is well-formed.
func Parse(data []byte) (*Komposition, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("komposition: invalid JSON: %w", err)
	}

	meta := raw.Metadata
	if meta.BPM <= 0 {
		return nil, fmt.Errorf("komposition: metadata.bpm: %w (got %g)", timing.ErrInvalidBPM, meta.BPM)
	}
	if meta.BeatsPerMeasure <= 0 {
		// The common case in authored documents is 4/4.
		meta.BeatsPerMeasure = 4
	}
	if meta.TotalBeats < 0 {
		return nil, fmt.Errorf("komposition: metadata.totalBeats must not be negative (got %d)", meta.TotalBeats)
	}

	doc := &Komposition{Metadata: meta}

	seen := make(map[string]bool, len(raw.Segments))
	for i, rs := range raw.Segments {
		seg, err := parseSegment(meta.BPM, i, rs)
		if err != nil {
			return nil, err
		}
		if seen[seg.ID] {
			return nil, fmt.Errorf("komposition: duplicate segment id %q", seg.ID)
		}
		seen[seg.ID] = true
		doc.Segments = append(doc.Segments, seg)
	}

	if raw.EffectsTree != nil {
		nextID := 0
		root, err := parseEffectNode(raw.EffectsTree, make(map[string]bool), &nextID)
		if err != nil {
			return nil, err
		}
		doc.EffectsTree = root
	}

	return doc, nil
}

func parseSegment(bpm float64, index int, rs rawSegment) (Segment, error) {
	id := rs.ID
	if id == "" {
		id = fmt.Sprintf("seg_%d", index)
	}

	if rs.SourceRef == "" {
		return Segment{}, fmt.Errorf("komposition: segment %q has no sourceRef", id)
	}
	if rs.EndBeat <= rs.StartBeat {
		return Segment{}, fmt.Errorf("komposition: segment %q: %w (beats [%d,%d))",
			id, timing.ErrInvalidRange, rs.StartBeat, rs.EndBeat)
	}
	if rs.StartBeat < 0 {
		return Segment{}, fmt.Errorf("komposition: segment %q startBeat must not be negative (got %d)", id, rs.StartBeat)
	}
	if rs.SourceTiming.OriginalStart < 0 {
		return Segment{}, fmt.Errorf("komposition: segment %q original_start must not be negative (got %g)",
			id, rs.SourceTiming.OriginalStart)
	}

	method, err := selectMethod(bpm, rs)
	if err != nil {
		return Segment{}, fmt.Errorf("komposition: segment %q: %w", id, err)
	}

	return Segment{
		ID:           id,
		SourceRef:    rs.SourceRef,
		StartBeat:    rs.StartBeat,
		EndBeat:      rs.EndBeat,
		SourceTiming: rs.SourceTiming,
		Method:       method,
	}, nil
}

// selectMethod applies the operation field when present, otherwise infers
// the method: stretch parameters imply time_stretch, a smart_cut marker
// implies smart_cut, and a source slice whose declared duration does not fit
// the beat slot at the document's tempo implies time_stretch (the slice must
// be retimed to fill the slot). Anything else is a plain trim.
func selectMethod(bpm float64, rs rawSegment) (ExtractionMethod, error) {
	if rs.Operation != "" {
		return ParseExtractionMethod(rs.Operation)
	}
	if _, ok := rs.Params["setpts"]; ok {
		return MethodTimeStretch, nil
	}
	if _, ok := rs.Params["stretch"]; ok {
		return MethodTimeStretch, nil
	}
	if _, ok := rs.Params["smart_cut"]; ok {
		return MethodSmartCut, nil
	}
	if rs.SourceTiming.OriginalDuration > 0 {
		slotSeconds := float64(rs.EndBeat-rs.StartBeat) * 60.0 / bpm
		if math.Abs(slotSeconds-rs.SourceTiming.OriginalDuration) > 1e-9 {
			return MethodTimeStretch, nil
		}
	}
	return MethodTrim, nil
}

func parseEffectNode(rn *rawEffectNode, seen map[string]bool, nextID *int) (*EffectNode, error) {
	id := rn.EffectID
	if id == "" {
		id = fmt.Sprintf("effect_%d", *nextID)
		*nextID++
	}
	if seen[id] {
		return nil, fmt.Errorf("komposition: duplicate effect id %q", id)
	}
	seen[id] = true

	effectType := EffectType(rn.Type)
	cfg, err := decodeEffectConfig(effectType, rn.Parameters)
	if err != nil {
		return nil, fmt.Errorf("komposition: effect %q: %w", id, err)
	}

	for _, ref := range rn.AppliesTo {
		if ref.Kind != RefSegment && ref.Kind != RefEffectOutput {
			return nil, fmt.Errorf("komposition: effect %q references unknown kind %q", id, ref.Kind)
		}
		if ref.ID == "" {
			return nil, fmt.Errorf("komposition: effect %q has a reference without an id", id)
		}
	}

	node := &EffectNode{
		EffectID:  id,
		Type:      effectType,
		Config:    cfg,
		AppliesTo: rn.AppliesTo,
	}

	for _, rc := range rn.Children {
		child, err := parseEffectNode(rc, seen, nextID)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}
